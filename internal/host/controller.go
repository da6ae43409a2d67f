// Package host drives the application lifecycle: it creates the window
// when the host is ready, re-creates it on activation, applies the
// shutdown policy and runs cleanup before quitting.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/deskhost/internal/bridge"
	"github.com/petervdpas/deskhost/internal/security"
	"github.com/petervdpas/deskhost/internal/window"
)

var log = logging.Logger("host")

// ShutdownPolicy decides what happens when the last window closes.
type ShutdownPolicy struct {
	// PersistWithoutWindows keeps the process alive with no window, as is
	// customary on macOS.
	PersistWithoutWindows bool
}

// PolicyFor returns the platform default for goos.
func PolicyFor(goos string) ShutdownPolicy {
	return ShutdownPolicy{PersistWithoutWindows: goos == "darwin"}
}

// Cleanup runs before the host quits.
type Cleanup func(ctx context.Context) error

type Controller struct {
	windows *window.Manager
	bridge  *bridge.Bridge
	guard   *security.Guard
	policy  ShutdownPolicy

	// quitRequested is set by an explicit quit (menu item, shortcut).
	// Closes after that end the process whatever the policy says.
	quitRequested atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	ready    bool
	quitting bool
	cleanups []Cleanup
}

// New wires the controller as the window manager's observer.
func New(windows *window.Manager, b *bridge.Bridge, g *security.Guard, policy ShutdownPolicy) *Controller {
	c := &Controller{
		windows: windows,
		bridge:  b,
		guard:   g,
		policy:  policy,
		ctx:     context.Background(),
	}
	windows.SetObserver(c)
	return c
}

func (c *Controller) Policy() ShutdownPolicy { return c.policy }

// Ready is called once the host runtime can create windows.
func (c *Controller) Ready(ctx context.Context) error {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return nil
	}
	c.ready = true
	c.ctx = ctx
	c.mu.Unlock()

	log.Info("host ready")
	_, err := c.windows.Create(ctx)
	return err
}

// Activate re-creates the window if none is open. Before Ready it does
// nothing.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	ready, quitting := c.ready, c.quitting
	c.mu.Unlock()
	if !ready || quitting || c.quitRequested.Load() {
		return nil
	}

	if s := c.windows.Current(); s != nil {
		s.Focus()
		return nil
	}
	log.Info("activate: re-creating window")
	_, err := c.windows.Create(ctx)
	return err
}

// AllWindowsClosed reports whether the host should quit now.
func (c *Controller) AllWindowsClosed(ctx context.Context) (quit bool) {
	if c.policy.PersistWithoutWindows {
		log.Info("all windows closed, staying alive")
		return false
	}
	log.Info("all windows closed, quitting")
	return true
}

// RequestQuit marks the next shutdown as a quit rather than a window close.
func (c *Controller) RequestQuit() {
	if !c.quitRequested.Swap(true) {
		log.Info("quit requested")
	}
}

// QuitRequested reports whether RequestQuit was called.
func (c *Controller) QuitRequested() bool {
	return c.quitRequested.Load()
}

// KeepAlive decides a close request for the last window once it has been
// retired. True means the process stays up without a window.
func (c *Controller) KeepAlive(ctx context.Context) bool {
	if c.quitRequested.Load() {
		return false
	}
	return !c.AllWindowsClosed(ctx)
}

// AddCleanup registers fn to run in BeforeQuit. Cleanups run in reverse
// registration order.
func (c *Controller) AddCleanup(fn Cleanup) {
	c.mu.Lock()
	c.cleanups = append(c.cleanups, fn)
	c.mu.Unlock()
}

// BeforeQuit runs registered cleanups once. Errors are logged only.
func (c *Controller) BeforeQuit(ctx context.Context) {
	c.mu.Lock()
	if c.quitting {
		c.mu.Unlock()
		return
	}
	c.quitting = true
	cleanups := c.cleanups
	c.cleanups = nil
	c.mu.Unlock()

	c.bridge.Uninstall()
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			log.Warnw("cleanup failed", "err", err)
		}
	}
	log.Info("shutdown complete")
}

// SurfaceCreated installs the navigation guards and opens the bridge for
// every window the manager creates.
func (c *Controller) SurfaceCreated(s window.Surface) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	s.SetWindowOpenHandler(func(url string) bool {
		return c.guard.HandleWindowOpen(ctx, url) == security.Allow
	})
	s.OnWillNavigate(func(url string) bool {
		return c.guard.HandleWillNavigate(ctx, url) == security.Allow
	})
	c.bridge.Install()
}

// AllClosed closes the bridge while no window exists.
func (c *Controller) AllClosed() {
	c.bridge.Uninstall()
}
