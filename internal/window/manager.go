// Package window owns the single application window and its lifecycle.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/deskhost/internal/config"
	"github.com/petervdpas/deskhost/internal/telemetry"
)

var log = logging.Logger("window")

type State int

const (
	Uninitialized State = iota
	Creating
	Loading
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Creating:
		return "creating"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Content source labels for LoadError and metrics.
const (
	SourceDev    = "dev"
	SourceStatic = "static"
)

var ErrContentLoad = errors.New("content load failed")

// LoadError reports a content load that did not succeed.
type LoadError struct {
	Source string
	Target string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %s: %v", e.Source, e.Target, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrContentLoad, e.Err} }

// Observer is told about surfaces the manager creates and about the last
// window going away.
type Observer interface {
	SurfaceCreated(s Surface)
	AllClosed()
}

type Config struct {
	Mode config.Mode
	// DevURL is only ever loaded in development mode.
	DevURL string
	// StaticEntry is the absolute path of the packaged entry document.
	StaticEntry string
	Options     Options
}

// Manager holds at most one live Surface.
type Manager struct {
	cfg      Config
	factory  Factory
	metrics  *telemetry.Metrics
	observer Observer

	mu      sync.Mutex
	state   State
	current Surface
	loadErr error
}

func NewManager(cfg Config, f Factory, m *telemetry.Metrics) *Manager {
	return &Manager{cfg: cfg, factory: f, metrics: m}
}

// SetObserver must be called before the first Create.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the live surface or nil.
func (m *Manager) Current() Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastLoadError is the error from the most recent load, if any.
func (m *Manager) LastLoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// Create builds the window and loads its content. If a window is already
// live it is returned unchanged. Content load failures are logged and
// recorded, never returned: the window stays up (blank if nothing loaded).
func (m *Manager) Create(ctx context.Context) (Surface, error) {
	m.mu.Lock()
	if m.current != nil {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}
	m.state = Creating
	m.loadErr = nil
	m.mu.Unlock()

	opts := m.cfg.Options.normalize()
	opts.Hidden = true

	s, err := m.factory.NewSurface(ctx, opts)
	if err != nil {
		m.setState(Closed)
		return nil, fmt.Errorf("create window: %w", err)
	}
	m.metrics.WindowCreated()

	m.mu.Lock()
	m.current = s
	m.state = Loading
	m.mu.Unlock()

	s.OnReadyToShow(func() { m.readyToShow(s) })
	s.OnClosed(func() { m.closed(s) })

	if m.observer != nil {
		m.observer.SurfaceCreated(s)
	}

	log.Infow("window created", "mode", m.cfg.Mode, "width", opts.Width, "height", opts.Height)

	if err := m.load(ctx, s); err != nil {
		m.mu.Lock()
		m.loadErr = err
		m.mu.Unlock()
		log.Errorw("content load failed, window left empty", "err", err)
	}
	return s, nil
}

func (m *Manager) load(ctx context.Context, s Surface) error {
	if m.cfg.Mode.IsDev() {
		err := s.LoadURL(ctx, m.cfg.DevURL)
		if err == nil {
			m.metrics.ContentLoad(SourceDev, "ok")
			s.OpenDevTools()
			return nil
		}
		m.metrics.ContentLoad(SourceDev, "error")
		log.Warnw("dev endpoint unavailable, falling back to static assets",
			"url", m.cfg.DevURL, "err", err)
	}

	if err := s.LoadFile(ctx, m.cfg.StaticEntry); err != nil {
		m.metrics.ContentLoad(SourceStatic, "error")
		return &LoadError{Source: SourceStatic, Target: m.cfg.StaticEntry, Err: err}
	}
	m.metrics.ContentLoad(SourceStatic, "ok")
	return nil
}

func (m *Manager) readyToShow(s Surface) {
	m.mu.Lock()
	if m.current != s || m.state != Loading {
		m.mu.Unlock()
		return
	}
	m.state = Ready
	m.mu.Unlock()

	s.Show()
	if m.cfg.Mode.IsDev() {
		s.Focus()
	}
	log.Debug("window shown")
}

func (m *Manager) closed(s Surface) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.state = Closed
	m.mu.Unlock()

	log.Info("window closed")
	if m.observer != nil {
		m.observer.AllClosed()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
