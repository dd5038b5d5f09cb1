package controller

import (
	"io"
	"mime/multipart"
	"net/netip"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/service"
)

// multipartOverhead is headroom for boundaries and part headers on top of the file bytes.
const multipartOverhead int64 = 1 << 20

// links builds absolute URLs from PUBLIC_BASE_URL, or from the request when unset.
// Forwarded scheme and host are only taken from a trusted proxy.
func (ctrl *Controller) links(c *gin.Context) service.Links {
	if base := ctrl.Config.EnvConfig.PublicBaseURL; base != "" {
		return service.NewLinks(base)
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	host := c.Request.Host
	if ctrl.fromTrustedProxy(c) {
		if proto := firstHeaderValue(c.GetHeader("X-Forwarded-Proto")); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwd := firstHeaderValue(c.GetHeader("X-Forwarded-Host")); fwd != "" {
			host = fwd
		}
	}
	return service.NewLinks(scheme + "://" + host)
}

func (ctrl *Controller) fromTrustedProxy(c *gin.Context) bool {
	if len(ctrl.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range ctrl.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func firstHeaderValue(v string) string {
	return strings.TrimSpace(strings.Split(v, ",")[0])
}

// bodyLimit caps a request carrying up to files files. Anything past it is
// refused with 413 before the pipeline sees it; smaller oversize files still
// get the size message from the pipeline.
func (ctrl *Controller) bodyLimit(files int) int64 {
	return int64(files)*ctrl.Policy.MaxFileSize() + multipartOverhead
}

// stage wraps a multipart part for the pipelines. A missing or generic content
// type is replaced with the sniffed one.
func stage(fh *multipart.FileHeader) *service.StagedFile {
	mimeType := baseMime(fh.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if detected := sniff(fh); detected != "" {
			mimeType = detected
		}
	}

	return &service.StagedFile{
		OriginalName: fh.Filename,
		Size:         fh.Size,
		MimeType:     mimeType,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func sniff(fh *multipart.FileHeader) string {
	f, err := fh.Open()
	if err != nil {
		return ""
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return ""
	}
	return baseMime(detected.String())
}

func baseMime(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
