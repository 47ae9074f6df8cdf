package fileserver

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

//go:embed assets/listing.html
var assets embed.FS

var listingTemplate = template.Must(template.ParseFS(assets, "assets/listing.html"))

// listingEntry is one row of a directory listing.
type listingEntry struct {
	Href    string
	Display string
	Size    string
}

type listingPage struct {
	Path    string
	Entries []listingEntry
}

func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, rc RequestContext) {
	dirEntries, err := os.ReadDir(rc.ResolvedPath)
	if err != nil {
		h.logger.Warn("directory listing failed",
			"request_id", rc.RequestID,
			"path", rc.ResolvedPath,
			"error", err,
		)
		http.Error(w, "No permission to list directory", http.StatusNotFound)
		return
	}

	displayPath, err := url.PathUnescape(rc.RawPath)
	if err != nil {
		displayPath = rc.RawPath
	}

	page := listingPage{
		Path:    displayPath,
		Entries: buildEntries(dirEntries),
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, page); err != nil {
		h.logger.Error("failed to render directory listing",
			"request_id", rc.RequestID,
			"path", rc.ResolvedPath,
			"error", err,
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("failed to write directory listing", "request_id", rc.RequestID, "error", err)
	}
}

// buildEntries converts directory entries into listing rows sorted by name,
// ignoring case. Directories get a trailing "/", symlinks an "@".
func buildEntries(dirEntries []fs.DirEntry) []listingEntry {
	sort.Slice(dirEntries, func(i, j int) bool {
		return strings.ToLower(dirEntries[i].Name()) < strings.ToLower(dirEntries[j].Name())
	})

	entries := make([]listingEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		display := name
		href := "./" + url.PathEscape(name)
		size := ""

		switch {
		case de.Type()&fs.ModeSymlink != 0:
			display += "@"
		case de.IsDir():
			display += "/"
			href += "/"
		default:
			if info, err := de.Info(); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
		}

		entries = append(entries, listingEntry{
			Href:    href,
			Display: display,
			Size:    size,
		})
	}
	return entries
}
