package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/registry"
	"github.com/soyeahso/switchboard/internal/routing"
	"github.com/soyeahso/switchboard/internal/spawn"
	"github.com/soyeahso/switchboard/internal/store"
)

// testServer spins up a fully wired gateway on an in-memory store: agents
// main (default, may spawn coder) and coder (may spawn sub1), one telegram
// binding to coder.
func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth.Mode = "token"
	cfg.Gateway.Auth.Token = "test-token-123"

	log := logging.New(nil, "silent")

	mainAllowed := []string{"coder"}
	coderAllowed := []string{"sub1"}
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(store.State{
		Agents: []domain.Agent{
			{ID: "main", IsDefault: true, AllowedSubagents: &mainAllowed},
			{ID: "coder", AllowedSubagents: &coderAllowed},
			{ID: "sub1"},
		},
		Bindings: []domain.Binding{
			{Match: domain.MatchRule{Channel: "telegram", AccountID: "bot1"}, AgentID: "coder"},
		},
	}))

	reg := registry.New(mem, log)
	require.NoError(t, reg.Load())

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 18920,
			"bind": "loopback",
		},
	}

	srv := New(cfg, log,
		WithConfigRaw(raw),
		WithRegistry(reg),
		WithResolver(routing.NewResolver(reg, log)),
		WithGovernor(spawn.NewGovernor(reg, log)),
	)

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

// authenticatedConn returns a WebSocket connection that has completed the handshake.
func authenticatedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	_, ts := testServer(t)
	return dialAndConnect(t, ts)
}

func dialAndConnect(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	// Read challenge
	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	// Send connect
	connectReq, _ := NewRequest("auth-req", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client: ClientInfo{
			ID:       "test-client",
			Version:  "1.0.0",
			Platform: "linux",
		},
		Auth: &ConnectAuth{Token: "test-token-123"},
	})
	require.NoError(t, conn.WriteJSON(connectReq))

	// Read hello-ok
	var helloResp Frame
	require.NoError(t, conn.ReadJSON(&helloResp))
	require.NotNil(t, helloResp.OK)
	require.True(t, *helloResp.OK, "handshake should succeed")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// call performs one RPC round-trip over an authenticated connection.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	// Skip broadcast events interleaved with the response.
	for {
		var resp Frame
		require.NoError(t, conn.ReadJSON(&resp))
		if resp.Type == FrameTypeResponse && resp.ID == id {
			return resp
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	// Public endpoint only returns status; no version or client count
	assert.Empty(t, health.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	_, ts := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Read challenge event
	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, "connect.challenge", challenge.Event)

	connectReq, err := NewRequest("req-1", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
		Auth:        &ConnectAuth{Token: "test-token-123"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(connectReq))

	var helloResp Frame
	require.NoError(t, conn.ReadJSON(&helloResp))
	assert.Equal(t, FrameTypeResponse, helloResp.Type)
	assert.Equal(t, "req-1", helloResp.ID)
	require.NotNil(t, helloResp.OK)
	assert.True(t, *helloResp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(helloResp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Features.Methods, "agents.list")
	assert.Contains(t, hello.Features.Methods, "spawn.acquire")
	assert.Contains(t, hello.Features.Events, "spawn.denied")
	assert.Greater(t, hello.Policy.MaxPayload, 0)
}

func TestWebSocketHandshakeWrongToken(t *testing.T) {
	_, ts := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	connectReq, _ := NewRequest("req-1", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
		Auth:        &ConnectAuth{Token: "wrong-token"},
	})
	require.NoError(t, conn.WriteJSON(connectReq))

	var errResp Frame
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Equal(t, FrameTypeResponse, errResp.Type)
	require.NotNil(t, errResp.OK)
	assert.False(t, *errResp.OK)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, "unauthorized", errResp.Error.Code)
}

func TestWebSocketRPCHealth(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-2", "health", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
}

func TestWebSocketRPCStatus(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-3", "status", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var status map[string]any
	require.NoError(t, json.Unmarshal(resp.Payload, &status))
	assert.Equal(t, float64(3), status["agents"])
	assert.Equal(t, float64(1), status["bindings"])
	assert.Equal(t, "main", status["defaultAgent"])
	assert.NotNil(t, status["spawn"])
}

func TestWebSocketRPCUnknownMethod(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-6", "nonexistent.method", nil)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

func TestResolveAuth(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{
		Mode:  "token",
		Token: "my-token",
	})
	assert.Equal(t, "token", auth.Mode)
	assert.Equal(t, "my-token", auth.Token)
}

func TestResolveAuthDefaultsToPassword(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{
		Password: "my-pass",
	})
	assert.Equal(t, "password", auth.Mode)
	assert.Equal(t, "my-pass", auth.Password)
}

func TestResolveAuthEnvOverride(t *testing.T) {
	t.Setenv("SWITCHBOARD_GATEWAY_TOKEN", "env-token")
	auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
	assert.Equal(t, "env-token", auth.Token)
}

func TestAuthorizeTokenSuccess(t *testing.T) {
	result := Authorize(
		ResolvedAuth{Mode: "token", Token: "secret"},
		&ConnectAuth{Token: "secret"},
	)
	assert.True(t, result.OK)
	assert.Equal(t, "token", result.Method)
}

func TestAuthorizeTokenFail(t *testing.T) {
	result := Authorize(
		ResolvedAuth{Mode: "token", Token: "secret"},
		&ConnectAuth{Token: "wrong"},
	)
	assert.False(t, result.OK)
	assert.Equal(t, "token_mismatch", result.Reason)
}

func TestAuthorizePasswordSuccess(t *testing.T) {
	result := Authorize(
		ResolvedAuth{Mode: "password", Password: "pass123"},
		&ConnectAuth{Password: "pass123"},
	)
	assert.True(t, result.OK)
	assert.Equal(t, "password", result.Method)
}

func TestAuthorizeNoCredentials(t *testing.T) {
	result := Authorize(
		ResolvedAuth{Mode: "token", Token: "secret"},
		nil,
	)
	assert.False(t, result.OK)
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.False(t, safeEqual("secret", "Secret"))
	assert.False(t, safeEqual("secret", "secret2"))
	assert.False(t, safeEqual("", "secret"))
	assert.True(t, safeEqual("", ""))
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		port int
		want string
	}{
		{"loopback", 18920, "127.0.0.1:18920"},
		{"lan", 9999, "0.0.0.0:9999"},
		{"auto", 8080, "0.0.0.0:8080"},
		{"custom", 3000, "0.0.0.0:3000"},
		{"unknown", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			addr := resolveBindAddr(config.GatewayConfig{Bind: tt.bind, Port: tt.port})
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestServerStart(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 0 // let OS pick a port
	cfg.Gateway.Auth.Mode = "token"
	cfg.Gateway.Auth.Token = "test-token"

	log := logging.New(nil, "silent")
	srv := New(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Give it a moment to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	err := <-errCh
	assert.NoError(t, err)
}
