package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"content-graph/backend/internal/api"
	"content-graph/backend/internal/bootstrap"
	"content-graph/backend/pkg/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{Port: "9090", StoreTimeout: 2 * time.Second}

	srv := newHTTPServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 13*time.Second, srv.WriteTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestServerWiring_MemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Port:                 "0",
		GraphStore:           config.StoreMemory,
		StoreTimeout:         time.Second,
		SimilarityThreshold:  0.7,
		SimilarityCandidates: 5,
		MaxTraversalDepth:    5,
	}

	app, err := bootstrap.Build(t.Context(), cfg)
	require.NoError(t, err)
	defer app.Close(t.Context())

	srv := httptest.NewServer(newHTTPServer(cfg, api.NewRouter(app.Engine, app.Metrics, zap.NewNop())).Handler)
	defer srv.Close()

	body := []byte(`{"type":"game_session_completed","data":{"gameType":"chess","userId":"u1","score":500}}`)
	resp, err := http.Post(srv.URL+"/api/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	statsResp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()

	var stats struct {
		Nodes struct {
			Total int64 `json:"total"`
		} `json:"nodes"`
	}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.Nodes.Total)
}
