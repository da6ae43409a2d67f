package content

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func exportFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":       {Data: []byte("<html><head><title>home</title></head><body>home</body></html>")},
		"about/index.html": {Data: []byte("<html><head></head><body>about</body></html>")},
		"_next/app.js":     {Data: []byte("console.log(1)")},
		"style.css":        {Data: []byte("body{}")},
	}
}

func TestSwitcherBlankUntilSourceSet(t *testing.T) {
	s := NewSwitcher()
	assert.Equal(t, SourceNone, s.Active())

	rec := get(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.NotContains(t, rec.Body.String(), "home")

	s.Use(SourceStatic, NewStaticFS(exportFS(), "index.html", "test"))
	assert.Equal(t, SourceStatic, s.Active())
	assert.Contains(t, get(t, s, "/").Body.String(), "home")

	s.Clear()
	assert.Equal(t, SourceNone, s.Active())
	assert.NotContains(t, get(t, s, "/").Body.String(), "home")
}

func TestStaticTrailingSlashLayout(t *testing.T) {
	st := NewStaticFS(exportFS(), "index.html", "test")

	cases := map[string]string{
		"/":             "home",
		"/index.html":   "home",
		"/about/":       "about",
		"/about":        "about",
		"/_next/app.js": "console.log(1)",
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			rec := get(t, st, path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), want)
			assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		})
	}

	assert.Equal(t, "application/javascript; charset=utf-8", get(t, st, "/_next/app.js").Header().Get("Content-Type"))
	assert.Equal(t, "text/css; charset=utf-8", get(t, st, "/style.css").Header().Get("Content-Type"))
	assert.Equal(t, http.StatusNotFound, get(t, st, "/missing/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, st, "/../../etc/passwd").Code)
}

func TestStaticRejectsWrites(t *testing.T) {
	st := NewStaticFS(exportFS(), "index.html", "test")
	rec := httptest.NewRecorder()
	st.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticCheck(t *testing.T) {
	assert.NoError(t, NewStaticFS(exportFS(), "index.html", "test").Check())

	err := NewStaticFS(exportFS(), "missing.html", "test").Check()
	assert.ErrorIs(t, err, ErrEntryMissing)

	err = NewStaticDir(filepath.Join(t.TempDir(), "out"), "index.html").Check()
	assert.ErrorIs(t, err, ErrEntryMissing)
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>disk</p>"), 0o644))

	st := NewStaticDir(dir, "/index.html")
	assert.Equal(t, "index.html", st.Entry())
	require.NoError(t, st.Check())
	assert.Contains(t, get(t, st, "/").Body.String(), "disk")
}

func TestDevProxyPing(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()

	d, err := NewDevProxy(up.URL, time.Second)
	require.NoError(t, err)
	assert.NoError(t, d.Ping(context.Background()), "any HTTP answer counts as reachable")

	up.Close()
	err = d.Ping(context.Background())
	assert.ErrorIs(t, err, ErrDevUnreachable)
}

func TestDevProxyRejectsBadURL(t *testing.T) {
	_, err := NewDevProxy("ftp://localhost:3001", time.Second)
	assert.Error(t, err)
}

func TestDevProxyForwards(t *testing.T) {
	var gotEncoding atomic.Value
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding.Store(r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Security-Policy", "default-src *")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "dev:"+r.URL.Path)
	}))
	defer up.Close()

	d, err := NewDevProxy(up.URL, time.Second)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assert.Equal(t, "dev:/dashboard/", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "identity", gotEncoding.Load())
}

func TestDevProxyUpstreamDown(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	u := up.URL
	up.Close()

	d, err := NewDevProxy(u, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, get(t, d, "/").Code)
}

func TestInjectGuard(t *testing.T) {
	h := InjectGuard(NewStaticFS(exportFS(), "index.html", "test"))

	rec := get(t, h, "/")
	body := rec.Body.String()
	assert.Contains(t, body, `<head><script src="/__host/guard.js"></script><title>`)
	assert.Equal(t, 1, strings.Count(body, GuardPath))

	rec = get(t, h, "/style.css")
	assert.Equal(t, "body{}", rec.Body.String())

	rec = get(t, h, GuardPath)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, GuardScript(), rec.Body.Bytes())
}

func TestInsertGuard(t *testing.T) {
	tag := string(guardTag)

	assert.Equal(t, `<html><head lang="en">`+tag+`</head>`,
		string(insertGuard([]byte(`<html><head lang="en"></head>`))))

	// <header> is not <head>
	assert.Equal(t, tag+`<body><header>x</header></body>`,
		string(insertGuard([]byte(`<body><header>x</header></body>`))))

	once := insertGuard([]byte(`<head></head>`))
	assert.Equal(t, once, insertGuard(once))
}

func TestInsertGuardWithoutHead(t *testing.T) {
	tag := string(guardTag)

	// never ahead of the doctype
	assert.Equal(t, `<!DOCTYPE html>`+tag+`<p>hi</p>`,
		string(insertGuard([]byte(`<!DOCTYPE html><p>hi</p>`))))
	assert.Equal(t, `<!DOCTYPE html><html lang="en">`+tag+`<body></body></html>`,
		string(insertGuard([]byte(`<!DOCTYPE html><html lang="en"><body></body></html>`))))

	// markup inside a script is text
	doc := `<script>var s = "<head>";</script><head></head>`
	assert.Equal(t, `<script>var s = "<head>";</script><head>`+tag+`</head>`,
		string(insertGuard([]byte(doc))))
}

func TestInsertGuardDisarmsRefresh(t *testing.T) {
	doc := `<html><head><META HTTP-EQUIV="Refresh" content="0; url=https://example.com/?a=1&amp;b=2"><meta charset="utf-8"></head></html>`
	out := string(insertGuard([]byte(doc)))

	assert.NotContains(t, strings.ToLower(out), "http-equiv")
	assert.Contains(t, out, `<meta `+RefreshAttr+`="0; url=https://example.com/?a=1&amp;b=2">`)
	assert.Contains(t, out, `<meta charset="utf-8">`)
	assert.Equal(t, 1, strings.Count(out, GuardPath))
}

func TestGuardScriptHooks(t *testing.T) {
	raw, err := guardFS.ReadFile("guard/guard.js")
	require.NoError(t, err)
	src := string(raw)

	for _, hook := range []string{
		`window.open = function`,
		`addEventListener(
    "click"`,
		`addEventListener(
    "submit"`,
		`HTMLFormElement.prototype.submit = function`,
		`REFRESH_ATTR = "` + RefreshAttr + `"`,
	} {
		assert.Contains(t, src, hook)
	}

	script := string(GuardScript())
	assert.Contains(t, script, "HTMLFormElement.prototype.submit")
	assert.Contains(t, script, RefreshAttr)
}

func TestGuardScriptMinified(t *testing.T) {
	script := string(GuardScript())
	assert.NotEmpty(t, script)
	assert.Contains(t, script, EventWindowOpen)
	assert.Contains(t, script, EventWillNavigate)
	assert.NotContains(t, script, "// Forwards")
}

func TestUserAgentRecorder(t *testing.T) {
	u := NewUserAgentRecorder()
	assert.Equal(t, "", u.RenderVersion())

	h := u.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/605.1.15 (KHTML, like Gecko)")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "AppleWebKit/605.1.15", u.RenderVersion())
}

func TestEngineVersion(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			want: "Edg/120.0.2210.91",
		},
		{
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko)",
			want: "AppleWebKit/605.1.15",
		},
		{ua: "curl/8.0", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EngineVersion(tc.ua), tc.ua)
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := NewWatcher(dir, 50*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte{byte('a' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), time.Millisecond, func() {})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEntryMissing))
}
