// Package content serves the window's document: either a reverse proxy to
// the live development endpoint or the packaged static export.
package content

import (
	"net/http"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("content")

// Source labels, matching the window package's load sources.
const (
	SourceNone   = "none"
	SourceDev    = "dev"
	SourceStatic = "static"
)

// blankDocument is served while no source is active, e.g. after a failed
// production load.
const blankDocument = "<!doctype html><html><head><meta charset=\"utf-8\"><title></title></head><body></body></html>"

type active struct {
	name string
	h    http.Handler
}

// Switcher is the asset handler handed to the webview runtime. Its source
// can be replaced at any time; in-flight requests finish on the old one.
type Switcher struct {
	cur atomic.Pointer[active]
}

func NewSwitcher() *Switcher {
	return &Switcher{}
}

// Use makes h the active source.
func (s *Switcher) Use(name string, h http.Handler) {
	s.cur.Store(&active{name: name, h: h})
	log.Infow("content source", "source", name)
}

// Clear drops the active source; requests get an empty document.
func (s *Switcher) Clear() {
	s.cur.Store(nil)
}

// Active returns the name of the current source.
func (s *Switcher) Active() string {
	if a := s.cur.Load(); a != nil {
		return a.name
	}
	return SourceNone
}

func (s *Switcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a := s.cur.Load()
	if a == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(blankDocument))
		return
	}
	a.h.ServeHTTP(w, r)
}
