package service

import "strings"

const APIPrefix = "/api/v1/file"

// Links builds the absolute URLs handed out to clients.
type Links struct {
	base string
}

func NewLinks(baseURL string) Links {
	return Links{base: strings.TrimRight(baseURL, "/") + APIPrefix}
}

func (l Links) DownloadByID(id string) string     { return l.base + "/download/id/" + id }
func (l Links) DownloadByCode(code string) string { return l.base + "/download/code/" + code }
func (l Links) BulkDownload(bulkID string) string { return l.base + "/bulk/download/" + bulkID }
