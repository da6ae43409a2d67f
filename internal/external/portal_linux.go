//go:build linux

package external

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest   = "org.freedesktop.portal.Desktop"
	portalPath   = "/org/freedesktop/portal/desktop"
	portalMethod = "org.freedesktop.portal.OpenURI.OpenURI"
)

// Portal asks the desktop portal to open the URL. This works inside
// sandboxes (Flatpak, Snap) where spawning xdg-open does not.
type Portal struct{}

func (Portal) Open(ctx context.Context, rawURL string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(portalDest, dbus.ObjectPath(portalPath))
	call := obj.CallWithContext(ctx, portalMethod, 0, "", rawURL, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("portal OpenURI: %w", call.Err)
	}
	return nil
}

// System is the best opener for this platform.
func System() Opener {
	return Chain{Portal{}, Command{}}
}
