package bridge

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Platform is the normalized host OS family.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformOther   Platform = "other"
)

func PlatformFor(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	}
	return PlatformOther
}

// HostInfo is built per call and never cached.
type HostInfo struct {
	Name                   string   `json:"name"`
	Version                string   `json:"version"`
	Platform               Platform `json:"platform"`
	Arch                   string   `json:"arch"`
	HostRuntimeVersion     string   `json:"hostRuntimeVersion"`
	EmbeddedRuntimeVersion string   `json:"embeddedRuntimeVersion"`
	RenderVersion          string   `json:"renderVersion"`
}

const unknown = "unknown"

// EmbeddedRuntimeModule is the webview runtime whose version is reported.
const EmbeddedRuntimeModule = "github.com/wailsapp/wails/v2"

// InfoSource reads HostInfo fields from the running process.
type InfoSource struct {
	Name    string
	Version string

	// RenderVersion reports the webview engine, e.g. "AppleWebKit/605.1.15".
	RenderVersion func() string
}

func (s *InfoSource) GOOS() string { return runtime.GOOS }

func (s *InfoSource) Snapshot() HostInfo {
	render := unknown
	if s.RenderVersion != nil {
		if v := s.RenderVersion(); v != "" {
			render = v
		}
	}
	return HostInfo{
		Name:                   s.Name,
		Version:                s.Version,
		Platform:               PlatformFor(runtime.GOOS),
		Arch:                   runtime.GOARCH,
		HostRuntimeVersion:     runtime.Version(),
		EmbeddedRuntimeVersion: embeddedRuntimeVersion(),
		RenderVersion:          render,
	}
}

// Build info is fixed for the life of the binary.
var embeddedRuntimeVersion = sync.OnceValue(func() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return unknown
	}
	for _, dep := range bi.Deps {
		if dep.Path != EmbeddedRuntimeModule {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return unknown
})
