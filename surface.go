// surface.go
package main

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/petervdpas/deskhost/internal/content"
	"github.com/petervdpas/deskhost/internal/security"
	"github.com/petervdpas/deskhost/internal/window"
)

// nativeWindow is the part of the Wails runtime the host drives.
type nativeWindow interface {
	Show(ctx context.Context)
	Hide(ctx context.Context)
	Unminimise(ctx context.Context)
	SetTitle(ctx context.Context, title string)
	SetSize(ctx context.Context, width, height int)
	SetMinSize(ctx context.Context, width, height int)
	Reload(ctx context.Context)
	ExecJS(ctx context.Context, js string)
	Quit(ctx context.Context)
}

type wailsWindow struct{}

func (wailsWindow) Show(ctx context.Context) {
	runtime.WindowShow(ctx)
}

func (wailsWindow) Hide(ctx context.Context) {
	runtime.WindowHide(ctx)
}

func (wailsWindow) Unminimise(ctx context.Context) {
	runtime.WindowUnminimise(ctx)
}

func (wailsWindow) SetTitle(ctx context.Context, title string) {
	runtime.WindowSetTitle(ctx, title)
}

func (wailsWindow) SetSize(ctx context.Context, width, height int) {
	runtime.WindowSetSize(ctx, width, height)
}

func (wailsWindow) SetMinSize(ctx context.Context, width, height int) {
	runtime.WindowSetMinSize(ctx, width, height)
}

func (wailsWindow) Reload(ctx context.Context) {
	runtime.WindowReloadApp(ctx)
}

func (wailsWindow) ExecJS(ctx context.Context, js string) {
	runtime.WindowExecJS(ctx, js)
}

func (wailsWindow) Quit(ctx context.Context) {
	runtime.Quit(ctx)
}

// Wails owns exactly one native window for the life of the process. Each
// Surface is one "incarnation" of it: created hidden, loaded, shown on DOM
// ready, and retired when the user closes it.
type surfaceFactory struct {
	app *App
}

func (f *surfaceFactory) NewSurface(_ context.Context, opts window.Options) (window.Surface, error) {
	a := f.app
	ctx := a.context()
	if ctx == nil {
		return nil, errNotStarted
	}

	s := &wailsSurface{app: a, opts: opts}
	a.setSurface(s)
	if opts.Hidden {
		a.win.Hide(ctx)
	}
	a.win.SetTitle(ctx, opts.Title)
	a.win.SetMinSize(ctx, opts.MinWidth, opts.MinHeight)
	if opts.Width > 0 && opts.Height > 0 {
		a.win.SetSize(ctx, opts.Width, opts.Height)
	}
	return s, nil
}

type wailsSurface struct {
	app  *App
	opts window.Options

	mu           sync.Mutex
	ready        func()
	closed       func()
	windowOpen   func(string) bool
	willNavigate func(string) bool
}

func (s *wailsSurface) LoadURL(ctx context.Context, rawURL string) error {
	a := s.app
	if err := a.dev.Ping(ctx); err != nil {
		return err
	}
	log.Debugw("loading dev endpoint", "url", rawURL)
	a.switcher.Use(content.SourceDev, a.dev)
	a.reload()
	return nil
}

func (s *wailsSurface) LoadFile(_ context.Context, path string) error {
	a := s.app
	if err := a.static.Check(); err != nil {
		a.switcher.Clear()
		a.reload()
		return err
	}
	log.Debugw("loading static export", "entry", path)
	a.switcher.Use(content.SourceStatic, a.static)
	a.reload()
	return nil
}

func (s *wailsSurface) Show() {
	s.app.win.Show(s.app.context())
}

func (s *wailsSurface) Focus() {
	ctx := s.app.context()
	s.app.win.Unminimise(ctx)
	s.app.win.Show(ctx)
}

// The inspector can only be opened at startup (see options.Debug in main).
func (s *wailsSurface) OpenDevTools() {
	log.Debug("inspector requested")
}

func (s *wailsSurface) OnReadyToShow(fn func()) {
	s.mu.Lock()
	s.ready = fn
	s.mu.Unlock()
}

func (s *wailsSurface) OnClosed(fn func()) {
	s.mu.Lock()
	s.closed = fn
	s.mu.Unlock()
}

func (s *wailsSurface) SetWindowOpenHandler(fn func(url string) bool) {
	s.mu.Lock()
	s.windowOpen = fn
	s.mu.Unlock()
}

func (s *wailsSurface) OnWillNavigate(fn func(url string) bool) {
	s.mu.Lock()
	s.willNavigate = fn
	s.mu.Unlock()
}

func (s *wailsSurface) fireReady() {
	s.mu.Lock()
	fn := s.ready
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *wailsSurface) fireClosed() {
	s.mu.Lock()
	fn := s.closed
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// handleWindowOpen never creates a second window. The guard has already
// delegated the URL if it should leave the app.
func (s *wailsSurface) handleWindowOpen(rawURL string) {
	s.mu.Lock()
	fn := s.windowOpen
	s.mu.Unlock()
	if fn != nil && fn(rawURL) {
		log.Warnw("window-open allowed but multiple windows are unsupported", "url", rawURL)
	}
}

func (s *wailsSurface) handleWillNavigate(rawURL string) {
	s.mu.Lock()
	fn := s.willNavigate
	s.mu.Unlock()
	if fn == nil || !fn(rawURL) {
		return
	}
	s.app.navigate(rawURL)
}

// inWindowTarget maps an allowed URL onto the asset origin. Pages on the
// trusted dev origin are served through the dev proxy, so only the path is
// kept.
func inWindowTarget(c *security.Classifier, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if c.IsTrusted(rawURL) {
		return u.RequestURI()
	}
	return rawURL
}

func assignJS(target string) string {
	b, _ := json.Marshal(target)
	return "window.location.assign(" + string(b) + ");"
}
