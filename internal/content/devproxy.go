package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

// ErrDevUnreachable means the development endpoint did not answer.
var ErrDevUnreachable = errors.New("dev endpoint unreachable")

// DevProxy forwards asset requests to the live development server so the
// window keeps the asset origin while showing dev content.
type DevProxy struct {
	target       *url.URL
	proxy        *httputil.ReverseProxy
	client       *http.Client
	pingTimeout time.Duration
}

func NewDevProxy(rawURL string, pingTimeout time.Duration) (*DevProxy, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("dev url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dev url: unsupported scheme %q", u.Scheme)
	}

	d := &DevProxy{
		target:       u,
		client:       &http.Client{},
		pingTimeout: pingTimeout,
	}

	d.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.Host = u.Host
			// Bodies are rewritten by the guard injector.
			pr.Out.Header.Set("Accept-Encoding", "identity")
		},
		ModifyResponse: func(resp *http.Response) error {
			// The host's policy is the only one that applies.
			resp.Header.Del("Content-Security-Policy")
			resp.Header.Del("Content-Security-Policy-Report-Only")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warnw("dev proxy", "path", r.URL.Path, "err", err)
			http.Error(w, "dev server unavailable", http.StatusBadGateway)
		},
	}
	return d, nil
}

// URL returns the development endpoint.
func (d *DevProxy) URL() string { return d.target.String() }

// Ping makes a single request to the endpoint. Any HTTP response counts
// as reachable; only transport failures do not.
func (d *DevProxy) Ping(ctx context.Context) error {
	if d.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.pingTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.target.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDevUnreachable, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDevUnreachable, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (d *DevProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.proxy.ServeHTTP(w, r)
}
