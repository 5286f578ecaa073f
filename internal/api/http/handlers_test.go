package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/session"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/protocol"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

type nopTransport struct{}

func (nopTransport) Send(protocol.Frame) error { return nil }
func (nopTransport) Close() error              { return nil }

func setupRouter(t *testing.T, count int) (*gin.Engine, *registry.Registry[*session.Session]) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := registry.New[*session.Session](nil)
	for i := 0; i < count; i++ {
		sessions.Register(func(id registry.ID) *session.Session {
			return session.New(session.Options{
				ID:           id,
				ConnectionID: "conn_test",
				RemoteAddr:   "127.0.0.1:5000",
				Transport:    nopTransport{},
				Spawner:      shell.NewPipeSpawner(shell.Options{}),
			})
		})
	}

	h := NewHandlers(sessions, shell.ModePipe, func() time.Duration { return 90 * time.Second })
	router := gin.New()
	h.Register(router)
	return router, sessions
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, 2)

	w := get(t, router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{
		Status:        "healthy",
		Mode:          "pipe",
		Sessions:      2,
		UptimeSeconds: 90,
	}, resp)
}

func TestListSessions(t *testing.T) {
	router, sessions := setupRouter(t, 3)
	sessions.Unregister(2)

	w := get(t, router, "/sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []session.Info `json:"sessions"`
		Count    int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, registry.ID(1), resp.Sessions[0].ID)
	assert.Equal(t, registry.ID(3), resp.Sessions[1].ID)
	assert.Equal(t, "idle", resp.Sessions[0].State)
	assert.Equal(t, "conn_test", resp.Sessions[0].ConnectionID)
	assert.Equal(t, "127.0.0.1:5000", resp.Sessions[0].RemoteAddr)
}

func TestListSessionsEmpty(t *testing.T) {
	router, _ := setupRouter(t, 0)

	w := get(t, router, "/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[],"count":0}`, w.Body.String())
}

func TestGetSession(t *testing.T) {
	router, _ := setupRouter(t, 1)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"found", "/sessions/1", http.StatusOK},
		{"unknown id", "/sessions/42", http.StatusNotFound},
		{"not a number", "/sessions/abc", http.StatusBadRequest},
		{"zero", "/sessions/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var info session.Info
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
				assert.Equal(t, registry.ID(1), info.ID)
			}
		})
	}
}
