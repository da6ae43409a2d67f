package content

import (
	"net/http"
	"regexp"
	"sync/atomic"
)

// UserAgentRecorder remembers the last user agent the webview sent, which
// is the only place the render engine version is visible to the host.
type UserAgentRecorder struct {
	ua atomic.Value // string
}

func NewUserAgentRecorder() *UserAgentRecorder {
	return &UserAgentRecorder{}
}

func (u *UserAgentRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.UserAgent(); ua != "" {
			u.ua.Store(ua)
		}
		next.ServeHTTP(w, r)
	})
}

// UserAgent returns the raw recorded user agent, or "".
func (u *UserAgentRecorder) UserAgent() string {
	s, _ := u.ua.Load().(string)
	return s
}

// RenderVersion returns the engine token of the recorded user agent,
// e.g. "Chrome/120.0.2210.91" or "AppleWebKit/605.1.15".
func (u *UserAgentRecorder) RenderVersion() string {
	return EngineVersion(u.UserAgent())
}

// Order matters: Edge WebView2 also claims Chrome, and Chrome claims
// AppleWebKit.
var enginePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Edg/[0-9.]+`),
	regexp.MustCompile(`Chrome/[0-9.]+`),
	regexp.MustCompile(`AppleWebKit/[0-9.]+`),
	regexp.MustCompile(`Gecko/[0-9.]+`),
}

// EngineVersion extracts the render engine token from a user agent.
func EngineVersion(ua string) string {
	for _, re := range enginePatterns {
		if m := re.FindString(ua); m != "" {
			return m
		}
	}
	return ""
}
