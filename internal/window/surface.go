package window

import "context"

// Options are applied to the native window each time a surface is created.
// The surface has no host runtime access beyond the bound bridge methods;
// there is no isolation switch to set.
type Options struct {
	Title     string
	Width     int
	Height    int
	MinWidth  int
	MinHeight int
	Hidden    bool // until the content signals ready-to-show
}

// normalize keeps the initial size at or above the minimum size.
func (o Options) normalize() Options {
	if o.MinWidth < 0 {
		o.MinWidth = 0
	}
	if o.MinHeight < 0 {
		o.MinHeight = 0
	}
	o.Width = max(o.Width, o.MinWidth)
	o.Height = max(o.Height, o.MinHeight)
	return o
}

// Surface is one native window with its content process. Implementations
// adapt the webview runtime; tests use a fake.
type Surface interface {
	// LoadURL navigates to a network endpoint; it returns once the load
	// finished or failed.
	LoadURL(ctx context.Context, url string) error
	// LoadFile loads a packaged document from disk.
	LoadFile(ctx context.Context, path string) error

	Show()
	Focus()
	OpenDevTools()

	// OnReadyToShow registers a one-shot callback for the first paint of
	// loaded content.
	OnReadyToShow(fn func())
	// OnClosed registers a callback for window destruction.
	OnClosed(fn func())

	// SetWindowOpenHandler decides requests from content to open a new
	// top-level window.
	SetWindowOpenHandler(fn func(url string) bool)
	// OnWillNavigate decides in-place navigations; returning false cancels.
	OnWillNavigate(fn func(url string) bool)
}

// Factory creates surfaces.
type Factory interface {
	NewSurface(ctx context.Context, opts Options) (Surface, error)
}
