package content

import (
	"bytes"
	"embed"
	"net/http"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"golang.org/x/net/html"
)

// Events the guard script emits towards the host.
const (
	EventWindowOpen   = "host:window-open"
	EventWillNavigate = "host:will-navigate"
)

// GuardPath is where the guard script is served on the asset origin.
const GuardPath = "/__host/guard.js"

// RefreshAttr replaces http-equiv="refresh" on served documents. The guard
// script reads it and performs or forwards the refresh itself.
const RefreshAttr = "data-host-refresh"

//go:embed guard/guard.js
var guardFS embed.FS

var guardScript []byte

func init() {
	raw, err := guardFS.ReadFile("guard/guard.js")
	if err != nil {
		panic(err)
	}

	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)

	out, err := m.Bytes("application/javascript", raw)
	if err != nil {
		log.Warnw("guard script minify failed, using original", "err", err)
		guardScript = raw
		return
	}
	guardScript = out
}

// GuardScript returns the (minified) guard script.
func GuardScript() []byte { return guardScript }

var guardTag = []byte(`<script src="` + GuardPath + `"></script>`)

// InjectGuard serves the guard script and inserts it into every HTML
// document passing through next.
func InjectGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == GuardPath {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			noCache(w)
			_, _ = w.Write(guardScript)
			return
		}

		bw := &bufferedWriter{header: http.Header{}, status: http.StatusOK}
		next.ServeHTTP(bw, r)

		body := bw.buf.Bytes()
		if isHTML(bw.header.Get("Content-Type")) && r.Method != http.MethodHead {
			body = insertGuard(body)
			bw.header.Set("Content-Length", strconv.Itoa(len(body)))
		}

		dst := w.Header()
		for k, v := range bw.header {
			dst[k] = v
		}
		w.WriteHeader(bw.status)
		_, _ = w.Write(body)
	})
}

func isHTML(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "text/html")
}

// insertGuard places the script tag right after <head>. Without a head
// element it goes after <html> or the doctype, else at the very start.
// Refresh meta tags are disarmed on the way so the guard can route them.
func insertGuard(doc []byte) []byte {
	if bytes.Contains(doc, guardTag) {
		return doc
	}

	var out bytes.Buffer
	out.Grow(len(doc) + len(guardTag))

	z := html.NewTokenizer(bytes.NewReader(doc))
	at, injected := 0, false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.DoctypeToken:
			out.Write(raw)
			at = out.Len()
			continue
		case html.StartTagToken, html.SelfClosingTagToken:
		default:
			out.Write(raw)
			continue
		}

		name, hasAttr := z.TagName()
		switch string(name) {
		case "html":
			out.Write(raw)
			at = out.Len()
		case "head":
			out.Write(raw)
			if !injected {
				out.Write(guardTag)
				injected = true
			}
		case "meta":
			if target, ok := refreshContent(z, hasAttr); ok {
				out.WriteString(`<meta ` + RefreshAttr + `="` + html.EscapeString(target) + `">`)
				continue
			}
			out.Write(raw)
		default:
			out.Write(raw)
		}
	}

	body := out.Bytes()
	if injected {
		return body
	}
	res := make([]byte, 0, len(body)+len(guardTag))
	res = append(res, body[:at]...)
	res = append(res, guardTag...)
	res = append(res, body[at:]...)
	return res
}

// refreshContent reads the attributes of a meta tag and returns its content
// when the tag is an http-equiv refresh.
func refreshContent(z *html.Tokenizer, more bool) (string, bool) {
	var refresh bool
	var content string
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		switch string(k) {
		case "http-equiv":
			refresh = strings.EqualFold(strings.TrimSpace(string(v)), "refresh")
		case "content":
			content = string(v)
		}
	}
	return content, refresh
}

type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.buf.Write(p)
}
