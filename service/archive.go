package service

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/tnqbao/gau-share-service/entity"
)

type archiveMember struct {
	name  string
	entry entity.FileEntry
	body  io.ReadCloser
}

// Archive is a set of opened member blobs waiting to be zipped onto the wire.
type Archive struct {
	FileName string

	members []archiveMember
	taken   map[string]int
}

func (a *Archive) add(entry entity.FileEntry, body io.ReadCloser) {
	if a.taken == nil {
		a.taken = make(map[string]int)
	}
	a.members = append(a.members, archiveMember{
		name:  a.uniqueName(memberName(entry.OriginalName)),
		entry: entry,
		body:  body,
	})
}

// uniqueName turns a second "a.txt" into "a (1).txt".
func (a *Archive) uniqueName(name string) string {
	n, seen := a.taken[name]
	a.taken[name] = n + 1
	if !seen {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, clash := a.taken[candidate]; !clash {
			a.taken[candidate] = 1
			return candidate
		}
		n++
	}
}

func (a *Archive) Len() int { return len(a.members) }

// Stream writes the zip at best compression straight into w, one member at a
// time. Every member body is closed whether or not streaming succeeds.
func (a *Archive) Stream(w io.Writer) error {
	defer a.Close()

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for i := range a.members {
		m := &a.members[i]
		header := &zip.FileHeader{
			Name:     m.name,
			Method:   zip.Deflate,
			Modified: m.entry.CreatedAt,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zip header %q: %w", m.name, err)
		}
		_, err = io.Copy(fw, m.body)
		_ = m.body.Close()
		m.body = nil
		if err != nil {
			return fmt.Errorf("zip member %q: %w", m.name, err)
		}
	}

	return zw.Close()
}

// Close releases member bodies that were not streamed.
func (a *Archive) Close() {
	for i := range a.members {
		if a.members[i].body != nil {
			_ = a.members[i].body.Close()
			a.members[i].body = nil
		}
	}
}

func (a *Archive) MemberNames() []string {
	names := make([]string, len(a.members))
	for i, m := range a.members {
		names[i] = m.name
	}
	return names
}
