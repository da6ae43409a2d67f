package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"

	"github.com/petervdpas/deskhost/internal/util"
)

// FileName is the default config file name, looked up next to the executable.
const FileName = "deskhost.json"

type Config struct {
	App      App      `json:"app"`
	Mode     Mode     `json:"mode"`
	Dev      Dev      `json:"dev"`
	Assets   Assets   `json:"assets"`
	Window   Window   `json:"window"`
	Security Security `json:"security"`
	Shutdown Shutdown `json:"shutdown"`
	Bridge   Bridge   `json:"bridge"`
	Log      Log      `json:"log"`
}

type App struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Dev struct {
	// Live development endpoint. Its origin is also the single trusted
	// origin for in-window navigation.
	URL string `json:"url"`

	// Reachability check for the dev endpoint before switching to it.
	PingTimeoutMs int `json:"ping_timeout_ms"`

	// Reload the window when the static export changes while the
	// development fallback is active.
	WatchStatic bool `json:"watch_static"`
}

type Assets struct {
	// Directory holding the static UI export. Relative paths resolve
	// against the executable's directory.
	StaticDir string `json:"static_dir"`
	Entry     string `json:"entry"`
}

type Window struct {
	Title     string `json:"title"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	MinWidth  int    `json:"min_width"`
	MinHeight int    `json:"min_height"`
}

type Security struct {
	// Additional sources appended to CSP directives, keyed by directive name
	// (e.g. "connect-src": ["https://api.example.org"]). object-src and
	// frame-ancestors cannot be widened.
	ExtraSources map[string][]string `json:"extra_sources"`
}

type Shutdown struct {
	// nil = platform default (persist on macOS, quit elsewhere).
	PersistWithoutWindows *bool `json:"persist_without_windows,omitempty"`
}

type Bridge struct {
	// Serve the bridge over a loopback WebSocket in addition to the
	// webview binding. Also exposes /metrics on the same listener.
	LoopbackEnabled bool `json:"loopback_enabled"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"` // color | plain | json
}

// envOverrides are applied on top of the file. Keys are prefixed with
// DESKHOST_; NODE_ENV is also honoured unprefixed.
type envOverrides struct {
	Mode     string
	NodeEnv  string `envconfig:"NODE_ENV"`
	DevURL   string `split_words:"true"`
	LogLevel string `split_words:"true"`
	Loopback string
}

func Default() Config {
	return Config{
		App: App{
			Name:    "deskhost",
			Version: "0.1.0",
		},
		Mode: Production,
		Dev: Dev{
			URL:            "http://localhost:3001",
			PingTimeoutMs: 1500,
			WatchStatic:    true,
		},
		Assets: Assets{
			StaticDir: "out",
			Entry:     "index.html",
		},
		Window: Window{
			Title:     "deskhost",
			Width:     1200,
			Height:    800,
			MinWidth:  800,
			MinHeight: 600,
		},
		Log: Log{
			Level:  "info",
			Format: "color",
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Name) == "" {
		return errors.New("app.name is required")
	}
	if strings.TrimSpace(c.App.Version) == "" {
		return errors.New("app.version is required")
	}

	if !c.Mode.Valid() {
		return fmt.Errorf("mode must be %q or %q", Development, Production)
	}

	if err := validateDevURL(c.Dev.URL); err != nil {
		return fmt.Errorf("dev.url: %w", err)
	}
	if c.Dev.PingTimeoutMs < 0 {
		return errors.New("dev.ping_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(c.Assets.StaticDir) == "" {
		return errors.New("assets.static_dir is required")
	}
	if strings.TrimSpace(c.Assets.Entry) == "" {
		return errors.New("assets.entry is required")
	}
	if strings.Contains(c.Assets.Entry, "..") {
		return errors.New("assets.entry must not contain '..'")
	}

	if c.Window.MinWidth <= 0 || c.Window.MinHeight <= 0 {
		return errors.New("window.min_width and window.min_height must be > 0")
	}
	if c.Window.Width < c.Window.MinWidth || c.Window.Height < c.Window.MinHeight {
		return errors.New("window size must not be smaller than its minimum size")
	}

	for directive := range c.Security.ExtraSources {
		if directive == "object-src" || directive == "frame-ancestors" {
			return fmt.Errorf("security.extra_sources: %s cannot be widened", directive)
		}
	}

	switch c.Log.Format {
	case "color", "plain", "json":
	default:
		return errors.New("log.format must be color, plain or json")
	}

	return nil
}

func validateDevURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	return nil
}

// TrustedOrigin is the one origin the navigation allow-list accepts. It is
// derived from dev.url so the two can never drift apart.
func (c *Config) TrustedOrigin() string {
	u, err := url.Parse(strings.TrimSpace(c.Dev.URL))
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// PersistWithoutWindows resolves the shutdown policy for the given GOOS.
func (c *Config) PersistWithoutWindows(goos string) bool {
	if c.Shutdown.PersistWithoutWindows != nil {
		return *c.Shutdown.PersistWithoutWindows
	}
	return goos == "darwin"
}

// StaticRoot resolves assets.static_dir against base (the executable dir).
func (c *Config) StaticRoot(base string) string {
	return util.ResolvePath(base, c.Assets.StaticDir)
}

// Load reads the config file (comments allowed), layers it over Default and
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without env overrides or validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	b = jsonc.ToJSON(stripBOM(b))

	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays DESKHOST_* variables (and NODE_ENV) onto cfg.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("deskhost", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	switch {
	case env.Mode != "":
		m, err := ParseMode(env.Mode)
		if err != nil {
			return fmt.Errorf("DESKHOST_MODE: %w", err)
		}
		cfg.Mode = m
	case strings.EqualFold(env.NodeEnv, "development"):
		cfg.Mode = Development
	}

	if env.DevURL != "" {
		cfg.Dev.URL = env.DevURL
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.Loopback != "" {
		cfg.Bridge.LoopbackEnabled = env.Loopback == "1" || strings.EqualFold(env.Loopback, "true")
	}
	return nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, cfg.Validate()
}
