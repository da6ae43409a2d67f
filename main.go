// main.go
package main

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	"github.com/petervdpas/deskhost/internal/bridge"
	"github.com/petervdpas/deskhost/internal/config"
	"github.com/petervdpas/deskhost/internal/content"
	"github.com/petervdpas/deskhost/internal/host"
	"github.com/petervdpas/deskhost/internal/logx"
	"github.com/petervdpas/deskhost/internal/loopback"
	"github.com/petervdpas/deskhost/internal/security"
	"github.com/petervdpas/deskhost/internal/telemetry"
	"github.com/petervdpas/deskhost/internal/util"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	cfgPath  = pflag.StringP("config", "c", "", "Path to config file (default: deskhost.json next to the executable)")
	modeFlag = pflag.String("mode", "", "Override mode: development or production")
	devURL   = pflag.String("dev-url", "", "Override the development endpoint")
	initCfg  = pflag.Bool("init", false, "Write a default config file if none exists, then exit")
	showHelp = pflag.BoolP("help", "h", false, "Show help")
	version  = pflag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	pflag.Usage = showUsage
	pflag.Parse()

	if *version {
		fmt.Printf("deskhost v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	path := *cfgPath
	if path == "" {
		path = filepath.Join(util.ExecutableDir(), config.FileName)
	}

	if *initCfg {
		_, created, err := config.Ensure(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Wrote %s\n", path)
		} else {
			fmt.Printf("%s already exists\n", path)
		}
		return
	}

	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logx.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runDesktopApp(cfg); err != nil {
		log.Fatalw("desktop host failed", "err", err)
	}
}

// loadConfig reads the config file if present, otherwise starts from
// defaults. Flags win over the environment, which wins over the file.
func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Default()
		if err := config.ApplyEnv(&cfg); err != nil {
			return config.Config{}, err
		}
	}

	if *modeFlag != "" {
		m, err := config.ParseMode(*modeFlag)
		if err != nil {
			return config.Config{}, fmt.Errorf("--mode: %w", err)
		}
		cfg.Mode = m
	}
	if *devURL != "" {
		cfg.Dev.URL = *devURL
	}
	if appVersion != "dev" {
		cfg.App.Version = appVersion
	}
	return cfg, cfg.Validate()
}

func runDesktopApp(cfg config.Config) error {
	metrics := telemetry.New()
	ua := content.NewUserAgentRecorder()

	b := bridge.New(&bridge.InfoSource{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		RenderVersion: ua.RenderVersion,
	}, metrics)

	dev, err := content.NewDevProxy(cfg.Dev.URL, time.Duration(cfg.Dev.PingTimeoutMs)*time.Millisecond)
	if err != nil {
		return err
	}

	app := &App{
		win:        wailsWindow{},
		cfg:        cfg,
		switcher:   content.NewSwitcher(),
		dev:        dev,
		classifier: security.NewClassifier(cfg.TrustedOrigin()),
	}

	staticEntry := app.selectStatic()

	guard := security.NewGuard(app.classifier, app.opener(), metrics)
	windows := app.newWindowManager(staticEntry, metrics)
	app.ctrl = host.New(windows, b, guard, host.ShutdownPolicy{
		PersistWithoutWindows: cfg.PersistWithoutWindows(goruntime.GOOS),
	})

	if cfg.Bridge.LoopbackEnabled {
		app.loopback = loopback.New(b, metrics, func(origin string) bool {
			return app.classifier.Classify(origin) == security.Local
		})
	}

	policy := security.NewPolicy(cfg.Security.ExtraSources)
	log.Infow("starting",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"mode", cfg.Mode,
		"trusted_origin", app.classifier.TrustedOrigin(),
		"static", app.static.String(),
	)
	log.Debugw("content security policy", "value", policy.String())

	return wails.Run(&options.App{
		Title:       cfg.Window.Title,
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		MinWidth:    cfg.Window.MinWidth,
		MinHeight:   cfg.Window.MinHeight,
		StartHidden: true,
		Menu:        app.appMenu(),

		AssetServer: &assetserver.Options{
			Handler: content.InjectGuard(app.switcher),
			Middleware: func(next http.Handler) http.Handler {
				return ua.Middleware(policy.Middleware(next))
			},
		},

		Linux: &linux.Options{
			ProgramName: cfg.App.Name,
		},

		Mac: macOptions(),

		Debug: options.Debug{
			OpenInspectorOnStartup: cfg.Mode.IsDev(),
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId:               "io.deskhost." + cfg.App.Name,
			OnSecondInstanceLaunch: app.secondInstance,
		},

		Logger:             logx.NewWailsLogger(),
		LogLevel:           logger.DEBUG,
		LogLevelProduction: logger.INFO,

		OnStartup:     app.startup,
		OnDomReady:    app.domReady,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,
		Bind:          []any{bridge.NewBindings(b)},
	})
}

// macOptions gives the window a hidden-inset title bar with the traffic
// lights over the content.
func macOptions() *mac.Options {
	return &mac.Options{
		TitleBar: mac.TitleBarHiddenInset(),
	}
}

// selectStatic serves the export from disk when the configured directory
// exists, otherwise from the bundle embedded in the binary. It returns the
// entry path the window manager reports.
func (a *App) selectStatic() string {
	root := a.cfg.StaticRoot(util.ExecutableDir())
	if fi, err := os.Stat(root); err == nil && fi.IsDir() {
		a.static = content.NewStaticDir(root, a.cfg.Assets.Entry)
		a.staticDisk = root
		return filepath.Join(root, a.static.Entry())
	}

	dist, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		panic(err)
	}
	a.static = content.NewStaticFS(dist, a.cfg.Assets.Entry, "embedded")
	log.Infow("static export not found on disk, using embedded bundle", "dir", root)
	return "embedded:" + a.static.Entry()
}

func showUsage() {
	fmt.Println("deskhost - desktop shell for a static web UI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  deskhost [options]")
	fmt.Println()
	fmt.Println("Options:")
	pflag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DESKHOST_MODE         development | production")
	fmt.Println("  DESKHOST_DEV_URL      development endpoint (also the trusted origin)")
	fmt.Println("  DESKHOST_LOG_LEVEL    debug | info | warn | error")
	fmt.Println("  DESKHOST_LOOPBACK     1 to expose the bridge on a loopback WebSocket")
	fmt.Println("  NODE_ENV=development  same as DESKHOST_MODE=development")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Run against a local dev server")
	fmt.Println("  deskhost --mode development --dev-url http://localhost:3001")
	fmt.Println()
	fmt.Println("  # Create deskhost.json with defaults")
	fmt.Println("  deskhost --init")
}
