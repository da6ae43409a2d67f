package content

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
)

// ErrEntryMissing means the export has no entry document.
var ErrEntryMissing = errors.New("entry document missing")

// Static serves a static UI export. The export uses a trailing-slash
// layout: /about/ is stored as about/index.html.
type Static struct {
	fsys  fs.FS
	entry string
	label string
}

// NewStaticDir serves the export from a directory on disk.
func NewStaticDir(dir, entry string) *Static {
	return &Static{fsys: os.DirFS(dir), entry: cleanEntry(entry), label: dir}
}

// NewStaticFS serves the export from fsys (typically the embedded bundle).
func NewStaticFS(fsys fs.FS, entry, label string) *Static {
	return &Static{fsys: fsys, entry: cleanEntry(entry), label: label}
}

func cleanEntry(entry string) string {
	e := strings.TrimPrefix(path.Clean("/"+entry), "/")
	if e == "" {
		return "index.html"
	}
	return e
}

// Entry returns the entry document path inside the export.
func (s *Static) Entry() string { return s.entry }

func (s *Static) String() string { return s.label }

// Check verifies that the entry document exists.
func (s *Static) Check() error {
	fi, err := fs.Stat(s.fsys, s.entry)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s in %s", ErrEntryMissing, s.entry, s.label)
	}
	return nil
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := s.resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(s.fsys, rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	noCache(w)
	w.Header().Set("Content-Type", contentTypeForPath(rel, data))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

// resolve maps a request path onto a file in the export.
func (s *Static) resolve(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel == "" {
		return s.entry, true
	}
	if !fs.ValidPath(rel) {
		return "", false
	}

	if fi, err := fs.Stat(s.fsys, rel); err == nil {
		if !fi.IsDir() {
			return rel, true
		}
		idx := path.Join(rel, "index.html")
		if _, err := fs.Stat(s.fsys, idx); err == nil {
			return idx, true
		}
		return "", false
	}

	// Extensionless links to trailing-slash pages.
	if path.Ext(rel) == "" {
		idx := path.Join(rel, "index.html")
		if _, err := fs.Stat(s.fsys, idx); err == nil {
			return idx, true
		}
	}
	return "", false
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func contentTypeForPath(rel string, data []byte) string {
	ext := strings.ToLower(path.Ext(rel))

	// Hard rules for browser-enforced types
	switch ext {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js", ".mjs":
		return "application/javascript; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".json", ".webmanifest":
		return "application/json"
	case ".wasm":
		return "application/wasm"
	}

	if ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	return http.DetectContentType(data)
}
