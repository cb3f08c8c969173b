package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/config"
	"github.com/ekaya-inc/herdwise/pkg/models"
)

func TestParseForce(t *testing.T) {
	for in, want := range map[string]models.ForceIntent{
		"":       models.ForceNone,
		"chart":  models.ForceChart,
		" TEXT ": models.ForceText,
	} {
		got, err := parseForce(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := parseForce("map")
	assert.Error(t, err)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LOCAL_STORE_PATH", t.TempDir()+"/swine.db")
	t.Setenv("CHART_SPECIFIER", "rubric")
	t.Setenv("MODERATION_DISABLED", "true")
	t.Setenv("JAILBREAK_DISABLED", "true")

	cfg, err := config.Load(config.DefaultPath, "test")
	require.NoError(t, err)
	return cfg
}

func TestNewApp_Router(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := newTestConfig(t)

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"default_backend":"local"`)

	rec = httptest.NewRecorder()
	body := `{"query":"Compare DC","sql":"SELECT 1;","results":[{"farm_code":"F001","avg_dc":4.1}]}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-chart-spec", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRunBootstrap_LocalSQLite(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := newTestConfig(t)

	logger = zap.NewNop()
	configPath = config.DefaultPath
	bootstrapBackend = ""

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	require.NoError(t, runBootstrap(cmd, nil))
	require.NoError(t, runBootstrap(cmd, nil), "bootstrap is idempotent")

	stores, err := newConnectionManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	executor, err := stores.Get(context.Background(), "local")
	require.NoError(t, err)
	rs, err := executor.Query(context.Background(), "SELECT COUNT(*) AS n FROM swine_alert;")
	require.NoError(t, err)
	require.Equal(t, 1, rs.RowCount())
}

func TestRunBootstrap_UnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	newTestConfig(t)

	logger = zap.NewNop()
	configPath = config.DefaultPath
	bootstrapBackend = "warehouse"
	t.Cleanup(func() { bootstrapBackend = "" })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	err := runBootstrap(cmd, nil)
	assert.ErrorContains(t, err, `backend "warehouse" is not configured`)
}
