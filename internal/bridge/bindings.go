package bridge

import (
	"context"
	"fmt"
)

// Bindings is the struct handed to the webview runtime. Its exported
// method set is exactly the capability list; add nothing else here.
type Bindings struct {
	bridge *Bridge
}

func NewBindings(b *Bridge) *Bindings {
	return &Bindings{bridge: b}
}

func (x *Bindings) GetAppVersion() (string, error) {
	return invokeAs[string](x.bridge, ChannelAppVersion)
}

func (x *Bindings) GetPlatform() (string, error) {
	return invokeAs[string](x.bridge, ChannelPlatform)
}

func (x *Bindings) GetAppInfo() (HostInfo, error) {
	return invokeAs[HostInfo](x.bridge, ChannelAppInfo)
}

func invokeAs[T any](b *Bridge, channel string) (T, error) {
	var zero T
	v, err := b.Invoke(context.Background(), channel)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("channel %s returned %T", channel, v)
	}
	return out, nil
}
