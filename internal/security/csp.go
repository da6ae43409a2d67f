package security

import (
	"net/http"
	"strings"
)

const HeaderCSP = "Content-Security-Policy"

// Directive is one CSP directive and its source list.
type Directive struct {
	Name    string
	Sources []string
}

func (d Directive) String() string {
	if len(d.Sources) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Sources, " ")
}

// DefaultDirectives is the policy attached to every response in the window.
// The rendered string is a compatibility surface for UI assets.
func DefaultDirectives() []Directive {
	return []Directive{
		{"default-src", []string{"'self'"}},
		{"script-src", []string{"'self'", "'unsafe-eval'", "'unsafe-inline'"}},
		{"style-src", []string{"'self'", "'unsafe-inline'"}},
		{"img-src", []string{"'self'", "data:", "blob:"}},
		{"font-src", []string{"'self'", "data:"}},
		{"connect-src", []string{"'self'"}},
		{"media-src", []string{"'self'"}},
		{"object-src", []string{"'none'"}},
		{"child-src", []string{"'self'"}},
		{"frame-src", []string{"'self'"}},
		{"worker-src", []string{"'self'", "blob:"}},
		{"frame-ancestors", []string{"'none'"}},
		{"form-action", []string{"'self'"}},
		{"base-uri", []string{"'self'"}},
		{"manifest-src", []string{"'self'"}},
	}
}

// locked directives are always rendered as 'none', whatever extras say.
var locked = map[string]bool{
	"object-src":      true,
	"frame-ancestors": true,
}

// Policy is static for the life of the process; the header value is
// rendered once in NewPolicy.
type Policy struct {
	directives []Directive
	header     string
}

// NewPolicy builds the default policy, appending extra sources per
// directive. Unknown directive names are added at the end.
func NewPolicy(extra map[string][]string) *Policy {
	dirs := DefaultDirectives()
	index := make(map[string]int, len(dirs))
	for i, d := range dirs {
		index[d.Name] = i
	}

	for name, sources := range extra {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || locked[name] {
			if name != "" {
				log.Warnw("ignoring extra sources for locked directive", "directive", name)
			}
			continue
		}
		clean := cleanSources(sources)
		if i, ok := index[name]; ok {
			dirs[i].Sources = appendUnique(dirs[i].Sources, clean...)
			continue
		}
		index[name] = len(dirs)
		dirs = append(dirs, Directive{Name: name, Sources: clean})
	}

	for i := range dirs {
		if locked[dirs[i].Name] {
			dirs[i].Sources = []string{"'none'"}
		}
	}

	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = d.String()
	}
	return &Policy{directives: dirs, header: strings.Join(parts, "; ")}
}

func (p *Policy) String() string { return p.header }

func (p *Policy) Directives() []Directive {
	out := make([]Directive, len(p.directives))
	copy(out, p.directives)
	return out
}

// Middleware attaches the policy to every response, replacing whatever the
// upstream handler (static files or the dev proxy) set.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pw := &policyWriter{ResponseWriter: w, policy: p}
		next.ServeHTTP(pw, r)
		// handlers that never write still get the header
		pw.apply()
	})
}

// Headers are fixed at WriteHeader time because a reverse proxy copies the
// upstream headers after our handler has run.
type policyWriter struct {
	http.ResponseWriter
	policy      *Policy
	wroteHeader bool
}

func (w *policyWriter) apply() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.ResponseWriter.Header()
	h.Del("Content-Security-Policy-Report-Only")
	h.Set(HeaderCSP, w.policy.header)
	h.Set("X-Content-Type-Options", "nosniff")
}

func (w *policyWriter) WriteHeader(code int) {
	w.apply()
	w.ResponseWriter.WriteHeader(code)
}

func (w *policyWriter) Write(b []byte) (int, error) {
	w.apply()
	return w.ResponseWriter.Write(b)
}

func (w *policyWriter) Flush() {
	w.apply()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer (used by
// the dev proxy for protocol upgrades).
func (w *policyWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func cleanSources(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		// a source may not smuggle in another directive
		if s == "" || strings.ContainsAny(s, ";,") {
			continue
		}
		out = append(out, s)
	}
	return out
}

func appendUnique(dst []string, src ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
