package management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/cache"
	"github.com/chrissnell/snowline/pkg/config"
)

const token = "test-token"

func newSQLiteController(t *testing.T, store *cache.Store) (*Controller, *config.SQLiteProvider) {
	t.Helper()
	p, err := config.NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ctrl, err := NewController(ctx, &sync.WaitGroup{}, p, config.ManagementData{AuthToken: token}, store, zap.NewNop().Sugar())
	require.NoError(t, err)
	return ctrl, p
}

func do(ctrl *Controller, method, target, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDefaults(t *testing.T) {
	ctrl, _ := newSQLiteController(t, nil)
	assert.Equal(t, "127.0.0.1:8081", ctrl.Server.Addr)
}

func TestGeneratedTokenIsStored(t *testing.T) {
	p, err := config.NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, p, config.ManagementData{}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotEmpty(t, ctrl.managementConfig.AuthToken)

	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Management)
	assert.Equal(t, ctrl.managementConfig.AuthToken, cfg.Management.AuthToken)
}

func TestAuthRequired(t *testing.T) {
	ctrl, _ := newSQLiteController(t, nil)

	assert.Equal(t, http.StatusUnauthorized, do(ctrl, http.MethodGet, "/api/aois", "", false).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/aois", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(ctrl, http.MethodGet, "/auth/status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ctrl, _ := newSQLiteController(t, nil)

	rec := do(ctrl, http.MethodPost, "/auth/login", `{"token":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(ctrl, http.MethodPost, "/auth/login", `{"token":"`+token+`"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/aois", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAOILifecycle(t *testing.T) {
	ctrl, p := newSQLiteController(t, nil)

	rec := do(ctrl, http.MethodPost, "/api/aois", `{"name":"rhone","bbox":[0,0,5000,5000]}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	aois, err := p.GetAOIs()
	require.NoError(t, err)
	require.Len(t, aois, 1)
	assert.Equal(t, []float64{0, 0, 5000, 5000}, aois[0].BBox)

	rec = do(ctrl, http.MethodGet, "/api/aois", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []config.AOIData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "rhone", listed[0].Name)

	rec = do(ctrl, http.MethodDelete, "/api/aois/rhone", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(ctrl, http.MethodDelete, "/api/aois/rhone", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutAOIRejectsBadInput(t *testing.T) {
	ctrl, _ := newSQLiteController(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no name", `{"bbox":[0,0,1,1]}`},
		{"no geometry", `{"name":"x"}`},
		{"inverted bbox", `{"name":"x","bbox":[10,10,0,0]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(ctrl, http.MethodPost, "/api/aois", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReadOnlyProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snowline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aois:\n  - name: rhone\n    bbox: [0, 0, 1, 1]\n"), 0o600))

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.NewYAMLProvider(path), config.ManagementData{AuthToken: token}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	rec := do(ctrl, http.MethodGet, "/api/aois", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(ctrl, http.MethodPost, "/api/aois", `{"name":"x","bbox":[0,0,1,1]}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(ctrl, http.MethodDelete, "/api/aois/rhone", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetConfigRedactsToken(t *testing.T) {
	ctrl, p := newSQLiteController(t, nil)
	require.NoError(t, p.UpdateManagement(&config.ManagementData{AuthToken: token}))

	rec := do(ctrl, http.MethodGet, "/api/config", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), token)
	assert.Contains(t, rec.Body.String(), `"analysis"`)
}

func TestPurgeCache(t *testing.T) {
	ctrl, _ := newSQLiteController(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(ctrl, http.MethodPost, "/api/cache/purge", "", true).Code)

	dir := t.TempDir()
	store, err := cache.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(cache.Key("rhone", "2021-01-01"), nil))

	ctrl, _ = newSQLiteController(t, store)
	rec := do(ctrl, http.MethodPost, "/api/cache/purge", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
