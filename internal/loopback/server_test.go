package loopback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petervdpas/deskhost/internal/bridge"
	"github.com/petervdpas/deskhost/internal/telemetry"
)

func newServer(t *testing.T, installed bool) (*Server, *httptest.Server) {
	t.Helper()
	m := telemetry.New()
	b := bridge.New(&bridge.InfoSource{Name: "deskhost", Version: "1.2.3"}, m)
	if installed {
		b.Install()
	}
	s := New(b, m, func(origin string) bool { return origin == "http://localhost:3001" })
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ipc?token=" + token
}

func call(t *testing.T, c *websocket.Conn, id, channel string) Response {
	t.Helper()
	require.NoError(t, c.WriteJSON(Request{ID: id, Channel: channel}))
	var resp Response
	require.NoError(t, c.ReadJSON(&resp))
	return resp
}

func TestIPCRoundTrip(t *testing.T) {
	s, ts := newServer(t, true)

	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts, s.Token()), nil)
	require.NoError(t, err)
	defer c.Close()

	resp := call(t, c, "1", bridge.ChannelAppVersion)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "1.2.3", resp.Result)
	assert.Empty(t, resp.Error)

	resp = call(t, c, "2", bridge.ChannelAppInfo)
	info, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "deskhost", info["name"])
	assert.Contains(t, info, "hostRuntimeVersion")

	resp = call(t, c, "3", "read-file")
	assert.Equal(t, "unknown-channel", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestIPCUnavailableBeforeInstall(t *testing.T) {
	s, ts := newServer(t, false)

	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts, s.Token()), nil)
	require.NoError(t, err)
	defer c.Close()

	resp := call(t, c, "1", bridge.ChannelPlatform)
	assert.Equal(t, "unavailable", resp.Error)
}

func TestIPCRejectsBadToken(t *testing.T) {
	_, ts := newServer(t, true)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIPCChecksOrigin(t *testing.T) {
	s, ts := newServer(t, true)

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, s.Token()), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "http://localhost:3001")
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts, s.Token()), h)
	require.NoError(t, err)
	_ = c.Close()
}

func TestHealthzAndMetrics(t *testing.T) {
	s, ts := newServer(t, true)

	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts, s.Token()), nil)
	require.NoError(t, err)
	call(t, c, "1", bridge.ChannelPlatform)
	_ = c.Close()

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	var health struct {
		OK       bool     `json:"ok"`
		Bridge   bool     `json:"bridge"`
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.True(t, health.OK)
	assert.True(t, health.Bridge)
	assert.Len(t, health.Channels, 3)

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `deskhost_bridge_calls_total{channel="get-platform",result="ok"} 1`)
}

func TestStartAndShutdown(t *testing.T) {
	b := bridge.New(&bridge.InfoSource{Name: "deskhost", Version: "1"}, nil)
	s := New(b, nil, nil)
	assert.Empty(t, s.URL())

	require.NoError(t, s.Start())
	assert.True(t, strings.HasPrefix(s.URL(), "ws://127.0.0.1:"))
	assert.Contains(t, s.URL(), "token="+s.Token())

	require.NoError(t, s.Shutdown(context.Background()))
}
