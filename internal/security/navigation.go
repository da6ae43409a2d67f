// Package security holds the content security policy and the navigation
// guard for the window.
package security

import (
	"context"
	"net"
	"net/url"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/deskhost/internal/telemetry"
)

var log = logging.Logger("security")

// Target classifies a URL at decision time.
type Target int

const (
	External Target = iota
	Local
)

func (t Target) String() string {
	if t == Local {
		return "local"
	}
	return "external"
}

// Decision is the outcome of an interception hook.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Origins the webview runtime serves packaged assets from. These are the
// in-process equivalent of a packaged local file.
var assetOrigins = []string{
	"wails://wails",
	"http://wails.localhost",
	"https://wails.localhost",
}

// Classifier trusts exactly one configured origin plus packaged assets.
type Classifier struct {
	trusted string
	assets  map[string]bool
}

func NewClassifier(trustedOrigin string) *Classifier {
	c := &Classifier{assets: make(map[string]bool, len(assetOrigins))}
	if u, err := url.Parse(trustedOrigin); err == nil {
		c.trusted = origin(u)
	}
	for _, o := range assetOrigins {
		if u, err := url.Parse(o); err == nil {
			c.assets[origin(u)] = true
		}
	}
	return c
}

// TrustedOrigin returns the normalized trusted origin.
func (c *Classifier) TrustedOrigin() string { return c.trusted }

func (c *Classifier) Classify(raw string) Target {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return External
	}
	if strings.EqualFold(u.Scheme, "file") {
		return Local
	}
	o := origin(u)
	if o == "" {
		return External
	}
	if o == c.trusted || c.assets[o] {
		return Local
	}
	return External
}

// IsTrusted reports whether raw is on the trusted origin itself, as
// opposed to packaged assets.
func (c *Classifier) IsTrusted(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && c.trusted != "" && origin(u) == c.trusted
}

// origin renders scheme://host[:port] with default ports dropped.
func origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if scheme == "" || host == "" {
		return ""
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

// ExternalOpener hands a URL to the system browser.
type ExternalOpener interface {
	Open(ctx context.Context, rawURL string) error
}

// Guard implements the window-open and in-place navigation hooks.
type Guard struct {
	classifier *Classifier
	opener     ExternalOpener
	metrics    *telemetry.Metrics
}

func NewGuard(c *Classifier, opener ExternalOpener, m *telemetry.Metrics) *Guard {
	return &Guard{classifier: c, opener: opener, metrics: m}
}

const (
	HookWindowOpen   = "window-open"
	HookWillNavigate = "will-navigate"
)

// HandleWindowOpen denies every new in-process window and delegates the
// target to the external browser.
func (g *Guard) HandleWindowOpen(ctx context.Context, rawURL string) Decision {
	g.delegate(ctx, HookWindowOpen, rawURL)
	g.metrics.Navigation(HookWindowOpen, Deny.String())
	return Deny
}

// HandleWillNavigate lets local navigations proceed and redirects anything
// else to the external browser.
func (g *Guard) HandleWillNavigate(ctx context.Context, rawURL string) Decision {
	if g.classifier.Classify(rawURL) == Local {
		g.metrics.Navigation(HookWillNavigate, Allow.String())
		return Allow
	}
	g.delegate(ctx, HookWillNavigate, rawURL)
	g.metrics.Navigation(HookWillNavigate, Deny.String())
	return Deny
}

func (g *Guard) delegate(ctx context.Context, hook, rawURL string) {
	if !Openable(rawURL) {
		log.Warnw("dropped navigation target", "hook", hook, "url", rawURL)
		return
	}
	if g.opener == nil {
		log.Warnw("no external opener", "hook", hook, "url", rawURL)
		return
	}
	if err := g.opener.Open(ctx, rawURL); err != nil {
		log.Errorw("open external", "hook", hook, "url", rawURL, "err", err)
		return
	}
	log.Infow("opened externally", "hook", hook, "url", rawURL)
}

// Openable reports whether a URL may be handed to the system browser.
// Script and data URLs never leave the window.
func Openable(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto":
		return true
	}
	return false
}
