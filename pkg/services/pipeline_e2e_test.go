package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/safety"
	"github.com/ekaya-inc/herdwise/pkg/testhelpers"
)

// warehouseSQL is written in the warehouse flavor the translator is asked
// for; the executor rewrites it for SQLite.
const warehouseSQL = "```sql\n" + `SELECT farm_code, AVG(dc_percent) AS avg_dc
FROM "SWINE_ALERT"
WHERE DATE(report_date) >= CURRENT_DATE - INTERVAL '7 days'
GROUP BY farm_code
ORDER BY farm_code` + "\n```"

func bootstrapLocalStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "swine.db")
	cfg, err := sqlite.FromMap(map[string]any{"path": path})
	require.NoError(t, err)

	adapter, err := sqlite.NewAdapter(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer adapter.Close()

	ctx := context.Background()
	require.NoError(t, adapter.EnsureSchema(ctx))
	_, err = adapter.InsertRecords(ctx, testhelpers.SampleRecords(t))
	require.NoError(t, err)
	return path
}

func TestPipeline_EndToEndLocalStore(t *testing.T) {
	path := bootstrapLocalStore(t)
	logger := zaptest.NewLogger(t)

	cm, err := datasource.NewConnectionManager([]datasource.Backend{
		{Name: "local", Type: sqlite.Type, Config: map[string]any{"path": path}},
	}, "local", logger)
	require.NoError(t, err)
	defer cm.Close()

	tests := []struct {
		name   string
		script scriptedLLM
		check  func(t *testing.T, result *models.PipelineResult)
	}{
		{
			name:   "text",
			script: scriptedLLM{Intent: textIntent, SQL: warehouseSQL, Narrative: "**F001** is in the high band at 4.15%."},
			check: func(t *testing.T, result *models.PipelineResult) {
				assert.Equal(t, "**F001** is in the high band at 4.15%.", result.Narrative)
			},
		},
		{
			name:   "chart",
			script: scriptedLLM{Intent: chartIntent, SQL: warehouseSQL},
			check: func(t *testing.T, result *models.PipelineResult) {
				require.NotNil(t, result.Chart)
				assert.Equal(t, models.ChartBar, result.Chart.ChartType)
				assert.Equal(t, "farm_code", result.Chart.XAxis)
				assert.Equal(t, []string{"avg_dc"}, result.Chart.YAxis)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := tt.script.client(t)
			p := NewPipeline(PipelineServices{
				Gate:        safety.NewGate(safety.DefaultGateConfig(), nil, nil, logger),
				Intent:      NewIntentClassifier(client, logger),
				Translator:  NewQueryTranslator(client, DefaultTranslatorConfig(), logger),
				Executor:    NewQueryExecutorService(cm, logger),
				Interpreter: NewResultInterpreter(client, logger),
				Specifier:   NewRubricChartSpecifier(),
			}, PipelineConfig{Timeouts: DefaultStageTimeouts(), Backends: []string{"local"}}, logger)

			result := p.Run(context.Background(), &models.AskRequest{Question: "Average mortality per farm this week"})
			assertTerminal(t, result)
			require.True(t, result.Success, "error: %+v", result.Error)

			assert.Equal(t, "local", result.Backend)
			assert.Contains(t, result.SQL, `"SWINE_ALERT"`, "the generated statement is reported, not the rewritten one")
			assert.Equal(t, []string{"farm_code", "avg_dc"}, result.Results.Columns)
			require.Equal(t, len(testhelpers.SampleFarmCodes()), result.Results.RowCount())
			assert.Equal(t, "F001", result.Results.Rows[0]["farm_code"])
			assert.InDelta(t, 4.15, result.Results.Rows[0]["avg_dc"], 0.001)

			tt.check(t, result)
		})
	}
}
