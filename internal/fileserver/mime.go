package fileserver

import (
	"io"
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// contentType guesses the MIME type of name, first by extension and then by
// sniffing the content of f. f is rewound before returning.
func contentType(name string, f io.ReadSeeker) string {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		return ctype
	}

	mt, err := mimetype.DetectReader(f)
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return defaultContentType
	}
	return mt.String()
}
