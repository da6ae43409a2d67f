package security

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/petervdpas/deskhost/internal/telemetry"
)

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (o *recordingOpener) Open(_ context.Context, u string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, u)
	return o.err
}

func TestClassify(t *testing.T) {
	c := NewClassifier("http://localhost:3001")

	local := []string{
		"http://localhost:3001",
		"http://localhost:3001/about/",
		"HTTP://LOCALHOST:3001/x?y=1#z",
		"file:///opt/app/out/index.html",
		"wails://wails/index.html",
		"http://wails.localhost/about/",
	}
	external := []string{
		"http://localhost:3000/",
		"https://localhost:3001/",
		"http://localhost/",
		"https://example.org/",
		"http://127.0.0.1:3001/",
		"javascript:alert(1)",
		"mailto:someone@example.org",
		"/relative/path",
		"",
		"%zz",
	}

	for _, u := range local {
		assert.Equal(t, Local, c.Classify(u), u)
	}
	for _, u := range external {
		assert.Equal(t, External, c.Classify(u), u)
	}
}

func TestClassifyDefaultPorts(t *testing.T) {
	c := NewClassifier("https://app.example.test")
	assert.Equal(t, Local, c.Classify("https://app.example.test:443/x"))
	assert.Equal(t, External, c.Classify("https://app.example.test:8443/x"))

	v6 := NewClassifier("http://[::1]:3001")
	assert.Equal(t, "http://[::1]:3001", v6.TrustedOrigin())
	assert.Equal(t, Local, v6.Classify("http://[::1]:3001/page"))
}

func TestIsTrusted(t *testing.T) {
	c := NewClassifier("http://localhost:3001")
	assert.True(t, c.IsTrusted("http://LOCALHOST:3001/about/"))
	assert.False(t, c.IsTrusted("wails://wails/about/"))
	assert.False(t, c.IsTrusted("file:///opt/app/out/index.html"))
	assert.False(t, NewClassifier("").IsTrusted("http://localhost:3001/"))
}

func TestWindowOpenAlwaysDeniedAndDelegatedOnce(t *testing.T) {
	m := telemetry.New()
	opener := &recordingOpener{}
	g := NewGuard(NewClassifier("http://localhost:3001"), opener, m)

	targets := []string{"https://example.org/docs", "http://localhost:3001/about/"}
	for _, u := range targets {
		assert.Equal(t, Deny, g.HandleWindowOpen(context.Background(), u))
	}

	assert.Equal(t, targets, opener.urls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NavigationDecisions.WithLabelValues(HookWindowOpen, "deny")))
}

func TestWillNavigate(t *testing.T) {
	opener := &recordingOpener{}
	g := NewGuard(NewClassifier("http://localhost:3001"), opener, nil)

	assert.Equal(t, Allow, g.HandleWillNavigate(context.Background(), "http://localhost:3001/about/"))
	assert.Equal(t, Allow, g.HandleWillNavigate(context.Background(), "file:///opt/app/out/about/index.html"))
	assert.Empty(t, opener.urls)

	assert.Equal(t, Deny, g.HandleWillNavigate(context.Background(), "https://github.com/"))
	assert.Equal(t, []string{"https://github.com/"}, opener.urls)
}

func TestUnsafeSchemesAreNeverOpened(t *testing.T) {
	opener := &recordingOpener{}
	g := NewGuard(NewClassifier("http://localhost:3001"), opener, nil)

	for _, u := range []string{"javascript:alert(1)", "data:text/html,<b>x</b>", "vbscript:x", "ms-settings:"} {
		assert.Equal(t, Deny, g.HandleWillNavigate(context.Background(), u))
		assert.Equal(t, Deny, g.HandleWindowOpen(context.Background(), u))
	}
	assert.Empty(t, opener.urls)
}

func TestOpenerFailureStillDenies(t *testing.T) {
	opener := &recordingOpener{err: errors.New("no browser")}
	g := NewGuard(NewClassifier("http://localhost:3001"), opener, nil)

	assert.Equal(t, Deny, g.HandleWillNavigate(context.Background(), "https://example.org"))
	assert.Len(t, opener.urls, 1)
}

func TestOpenable(t *testing.T) {
	assert.True(t, Openable("https://example.org"))
	assert.True(t, Openable("mailto:a@b.c"))
	assert.False(t, Openable("https://"))
	assert.False(t, Openable("file:///etc/passwd"))
	assert.False(t, Openable("javascript:void(0)"))
}
