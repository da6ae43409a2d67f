// app.go
package main

import (
	"context"
	"errors"
	goruntime "runtime"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/petervdpas/deskhost/internal/config"
	"github.com/petervdpas/deskhost/internal/content"
	"github.com/petervdpas/deskhost/internal/external"
	"github.com/petervdpas/deskhost/internal/host"
	"github.com/petervdpas/deskhost/internal/loopback"
	"github.com/petervdpas/deskhost/internal/security"
	"github.com/petervdpas/deskhost/internal/telemetry"
	"github.com/petervdpas/deskhost/internal/window"
)

var log = logging.Logger("app")

const watchDebounce = 300 * time.Millisecond

var errNotStarted = errors.New("runtime not started")

// App adapts the Wails lifecycle callbacks onto the host controller.
type App struct {
	win        nativeWindow
	cfg        config.Config
	ctrl       *host.Controller
	switcher   *content.Switcher
	dev        *content.DevProxy
	static     *content.Static
	staticDisk string // "" when serving the embedded bundle
	classifier *security.Classifier
	loopback   *loopback.Server

	mu        sync.Mutex
	ctx       context.Context
	surface   *wailsSurface
	domLoaded bool
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	runtime.EventsOn(ctx, content.EventWindowOpen, func(data ...any) {
		if s, u := a.current(), eventURL(data); s != nil && u != "" {
			s.handleWindowOpen(u)
		}
	})
	runtime.EventsOn(ctx, content.EventWillNavigate, func(data ...any) {
		if s, u := a.current(), eventURL(data); s != nil && u != "" {
			s.handleWillNavigate(u)
		}
	})

	if a.loopback != nil {
		if err := a.loopback.Start(); err != nil {
			log.Errorw("loopback bridge start", "err", err)
		} else {
			log.Infow("loopback bridge", "url", a.loopback.URL())
			a.ctrl.AddCleanup(a.loopback.Shutdown)
		}
	}

	if a.cfg.Mode.IsDev() && a.cfg.Dev.WatchStatic && a.staticDisk != "" {
		a.startWatch(ctx)
	}

	if err := a.ctrl.Ready(ctx); err != nil {
		log.Errorw("create window", "err", err)
	}
}

func (a *App) domReady(ctx context.Context) {
	a.mu.Lock()
	a.domLoaded = true
	s := a.surface
	a.mu.Unlock()

	if s != nil {
		s.fireReady()
	}
}

// beforeClose runs for a window close and for an application quit alike.
// It retires the current surface and, unless a quit was requested, applies
// the shutdown policy. Returning true keeps the process (and the hidden
// native window) alive.
func (a *App) beforeClose(ctx context.Context) (prevent bool) {
	if s := a.takeSurface(); s != nil {
		s.fireClosed()
	}
	if !a.ctrl.KeepAlive(ctx) {
		return false
	}
	a.win.Hide(ctx)
	return true
}

// quit ends the process even when the shutdown policy keeps it alive
// without windows.
func (a *App) quit() {
	a.ctrl.RequestQuit()
	if ctx := a.context(); ctx != nil {
		a.win.Quit(ctx)
	}
}

// activate brings back the window, re-creating it after a close.
func (a *App) activate() {
	ctx := a.context()
	if ctx == nil {
		return
	}
	if err := a.ctrl.Activate(ctx); err != nil {
		log.Errorw("activate", "err", err)
	}
}

// appMenu carries the only quit and re-activation entry points Wails
// offers on macOS, where the dock icon cannot reopen a closed window.
func (a *App) appMenu() *menu.Menu {
	m := menu.NewMenu()
	sub := m.AddSubmenu(a.cfg.App.Name)
	sub.AddText("Show Window", keys.CmdOrCtrl("n"), func(*menu.CallbackData) {
		a.activate()
	})
	sub.AddSeparator()
	sub.AddText("Quit "+a.cfg.App.Name, keys.CmdOrCtrl("q"), func(*menu.CallbackData) {
		a.quit()
	})
	if goruntime.GOOS == "darwin" {
		m.Append(menu.EditMenu())
		m.Append(menu.WindowMenu())
	}
	return m
}

func (a *App) shutdown(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.ctrl.BeforeQuit(cctx)
}

func (a *App) secondInstance(data options.SecondInstanceData) {
	log.Infow("second instance launched", "args", data.Args)
	a.activate()
}

func (a *App) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

func (a *App) setSurface(s *wailsSurface) {
	a.mu.Lock()
	a.surface = s
	a.mu.Unlock()
}

func (a *App) current() *wailsSurface {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.surface
}

// takeSurface detaches the current surface so a retired window is never
// closed twice.
func (a *App) takeSurface() *wailsSurface {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.surface
	a.surface = nil
	return s
}

// reload re-renders the window after a source switch. Before the first DOM
// load the webview has not fetched anything yet, so there is nothing to do.
func (a *App) reload() {
	a.mu.Lock()
	ctx, loaded := a.ctx, a.domLoaded
	a.mu.Unlock()
	if loaded && ctx != nil {
		a.win.Reload(ctx)
	}
}

func (a *App) navigate(rawURL string) {
	if ctx := a.context(); ctx != nil {
		a.win.ExecJS(ctx, assignJS(inWindowTarget(a.classifier, rawURL)))
	}
}

func (a *App) startWatch(ctx context.Context) {
	w, err := content.NewWatcher(a.staticDisk, watchDebounce, func() {
		if a.switcher.Active() == content.SourceStatic {
			a.win.Reload(ctx)
		}
	})
	if err != nil {
		log.Warnw("static watch disabled", "err", err)
		return
	}
	go w.Run(ctx)
	a.ctrl.AddCleanup(func(context.Context) error { return w.Close() })
}

// opener prefers the platform opener and falls back to the Wails runtime.
func (a *App) opener() external.Opener {
	return external.Chain{
		external.System(),
		external.Func(func(_ context.Context, rawURL string) error {
			ctx := a.context()
			if ctx == nil {
				return errNotStarted
			}
			runtime.BrowserOpenURL(ctx, rawURL)
			return nil
		}),
	}
}

func eventURL(data []any) string {
	if len(data) == 0 {
		return ""
	}
	s, _ := data[0].(string)
	return s
}

// newWindowManager builds the lifecycle manager over the Wails surface
// factory.
func (a *App) newWindowManager(staticEntry string, m *telemetry.Metrics) *window.Manager {
	return window.NewManager(window.Config{
		Mode:        a.cfg.Mode,
		DevURL:      a.cfg.Dev.URL,
		StaticEntry: staticEntry,
		Options: window.Options{
			Title:     a.cfg.Window.Title,
			Width:     a.cfg.Window.Width,
			Height:    a.cfg.Window.Height,
			MinWidth:  a.cfg.Window.MinWidth,
			MinHeight: a.cfg.Window.MinHeight,
		},
	}, &surfaceFactory{app: a}, m)
}
