package backend

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Y3rnur/sitesrv/backend/store"
	"github.com/Y3rnur/sitesrv/backend/ws"
)

const testSecret = "test-secret"

func TestAdminHealthNeedsNoToken(t *testing.T) {
	mux := NewAdminMux(zap.NewNop(), Auth{Secret: testSecret}, nil, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API Status: OK", w.Body.String())
}

func TestAdminAccessAuth(t *testing.T) {
	auth := Auth{Secret: testSecret}
	mux := NewAdminMux(zap.NewNop(), auth, nil, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/access", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := Auth{Secret: "other"}.GenerateJWT("ops", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/access", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// valid token, but no store configured
	tok, err := auth.GenerateJWT("ops", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/access?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminLiveFeed(t *testing.T) {
	auth := Auth{Secret: testSecret}
	hub := ws.NewHub(nil, nil)
	defer hub.Close()

	core, logs := observer.New(zap.InfoLevel)
	srv := httptest.NewServer(NewAdminMux(zap.New(core), auth, nil, hub))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/access"

	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()

	tok, err := auth.GenerateJWT("ops", time.Minute)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	requested := logs.FilterMessage("live feed requested").All()
	require.Len(t, requested, 1)
	assert.Equal(t, "ops", requested[0].ContextMap()["subject"])

	ev := store.AccessEvent{ID: uuid.New(), Method: http.MethodGet, Path: "/search", Status: http.StatusOK}
	hub.Record(ev)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(b), ev.ID.String())
	assert.Contains(t, string(b), `"path":"/search"`)
}
