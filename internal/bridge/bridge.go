// Package bridge is the only crossing point between the UI content and the
// host process. Every capability the UI can reach is a named channel
// registered in New; nothing else is exposed.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/deskhost/internal/telemetry"
)

var log = logging.Logger("bridge")

// Channel names shared with the UI side. They must match exactly.
const (
	ChannelAppVersion = "get-app-version"
	ChannelPlatform   = "get-platform"
	ChannelAppInfo    = "get-app-info"
)

var (
	// ErrCapabilityUnavailable is returned when the bridge is not installed
	// or the call comes from outside a hosted context. Callers should treat
	// it as "feature not available".
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrUnknownChannel        = errors.New("unknown channel")
)

// Handler serves one channel. Handlers take no UI-supplied arguments.
type Handler func(ctx context.Context) (any, error)

type Bridge struct {
	handlers  map[string]Handler
	info      *InfoSource
	metrics   *telemetry.Metrics
	installed atomic.Bool
}

// New builds the bridge with its fixed capability list. It starts
// uninstalled; calls fail with ErrCapabilityUnavailable until Install.
func New(info *InfoSource, m *telemetry.Metrics) *Bridge {
	b := &Bridge{info: info, metrics: m}
	b.handlers = map[string]Handler{
		ChannelAppVersion: func(context.Context) (any, error) { return b.GetHostVersion(), nil },
		ChannelPlatform:   func(context.Context) (any, error) { return b.GetPlatformName(), nil },
		ChannelAppInfo:    func(context.Context) (any, error) { return b.GetHostInfo(), nil },
	}
	return b
}

// Install opens the bridge for calls. Called once the content surface exists.
func (b *Bridge) Install() {
	b.installed.Store(true)
	log.Debugw("installed", "channels", b.Channels())
}

// Uninstall closes the bridge again, e.g. while no window exists.
func (b *Bridge) Uninstall() {
	b.installed.Store(false)
}

func (b *Bridge) Installed() bool {
	return b != nil && b.installed.Load()
}

// Channels lists the exposed channel names, sorted.
func (b *Bridge) Channels() []string {
	out := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke dispatches a request on channel and returns its single value.
func (b *Bridge) Invoke(ctx context.Context, channel string) (any, error) {
	if !b.Installed() {
		if b != nil {
			b.metrics.BridgeCall(channel, "unavailable")
		}
		return nil, ErrCapabilityUnavailable
	}

	h, ok := b.handlers[channel]
	if !ok {
		b.metrics.BridgeCall("unknown", "error")
		log.Warnw("rejected call", "channel", channel)
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	v, err := h(ctx)
	if err != nil {
		b.metrics.BridgeCall(channel, "error")
		log.Warnw("call failed", "channel", channel, "err", err)
		return nil, err
	}
	b.metrics.BridgeCall(channel, "ok")
	log.Debugw("call", "channel", channel)
	return v, nil
}

// GetHostVersion returns the host application's own version string.
func (b *Bridge) GetHostVersion() string {
	return b.info.Version
}

// GetPlatformName returns the raw host operating-system identifier.
func (b *Bridge) GetPlatformName() string {
	return b.info.GOOS()
}

// GetHostInfo returns a fresh snapshot of the host environment.
func (b *Bridge) GetHostInfo() HostInfo {
	return b.info.Snapshot()
}
