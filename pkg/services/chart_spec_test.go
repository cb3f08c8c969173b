package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
)

func resultSet(columns []string, rows ...[]any) *models.ResultSet {
	rs := &models.ResultSet{Columns: columns}
	for _, values := range rows {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

func TestRubricChartSpecifier(t *testing.T) {
	tests := []struct {
		name     string
		question string
		results  *models.ResultSet
		want     models.ChartSpec
	}{
		{
			name:     "single metric over time",
			question: "Show mortality trends over the last 30 days",
			results: resultSet([]string{"date", "avg_mortality_percent"},
				[]any{"2024-05-01", 2.1}, []any{"2024-05-02", 2.4}),
			want: models.ChartSpec{
				ChartType: models.ChartLine,
				XAxis:     "date",
				YAxis:     []string{"avg_mortality_percent"},
				Title:     "Avg Mortality Percent Over Time",
				XLabel:    "Date",
				YLabel:    "Avg Mortality Percent",
				Height:    models.DefaultChartHeight,
			},
		},
		{
			name:     "several metrics over time",
			question: "Visualize disease trends for the past 2 weeks",
			results: resultSet([]string{"date", "pneumonia", "diarrhea", "fever"},
				[]any{"2024-05-01", int64(3), int64(1), 2.5}, []any{"2024-05-02", int64(4), int64(0), 1.5}),
			want: models.ChartSpec{
				ChartType:  models.ChartMultiLine,
				XAxis:      "date",
				YAxis:      []string{"pneumonia", "diarrhea", "fever"},
				Title:      "Pneumonia, Diarrhea, Fever Over Time",
				XLabel:     "Date",
				YLabel:     "Pneumonia, Diarrhea, Fever",
				Height:     500,
				ShowLegend: true,
			},
		},
		{
			name:     "category with helper count",
			question: "Compare pneumonia rates across farms",
			results: resultSet([]string{"farm_name", "avg_pneumonia", "record_count"},
				[]any{"Green Valley", 1.2, int64(40)}, []any{"Hill Side", 0.8, int64(35)}),
			want: models.ChartSpec{
				ChartType: models.ChartBar,
				XAxis:     "farm_name",
				YAxis:     []string{"avg_pneumonia"},
				Title:     "Avg Pneumonia by Farm Name",
				XLabel:    "Farm Name",
				YLabel:    "Avg Pneumonia",
				Height:    models.DefaultChartHeight,
			},
		},
		{
			name:     "several metrics per category",
			question: "Compare temperature extremes by barn",
			results: resultSet([]string{"barn_name", "max_temp", "min_temp"},
				[]any{"B1", 33.5, 24.0}, []any{"B2", 30.0, 26.5}),
			want: models.ChartSpec{
				ChartType:  models.ChartGroupedBar,
				XAxis:      "barn_name",
				YAxis:      []string{"max_temp", "min_temp"},
				Title:      "Max Temp, Min Temp by Barn Name",
				XLabel:     "Barn Name",
				YLabel:     "Max Temp, Min Temp",
				Height:     500,
				ShowLegend: true,
			},
		},
		{
			name:     "correlation",
			question: "Is there a correlation between feed intake and mortality?",
			results: resultSet([]string{"farm_name", "feed_intake", "dc_percent"},
				[]any{"Green Valley", 1.8, 6.2}, []any{"Hill Side", 1.9, 3.7}),
			want: models.ChartSpec{
				ChartType:  models.ChartScatter,
				XAxis:      "feed_intake",
				YAxis:      []string{"dc_percent"},
				ColorBy:    "farm_name",
				Title:      "Feed Intake vs Dc Percent",
				XLabel:     "Feed Intake",
				YLabel:     "Dc Percent",
				Height:     500,
				ShowLegend: true,
			},
		},
		{
			name:     "composition",
			question: "What share of alerts does each alert type make up?",
			results: resultSet([]string{"alert_type", "alerts"},
				[]any{"critical", int64(4)}, []any{"warning", int64(9)}),
			want: models.ChartSpec{
				ChartType:  models.ChartPie,
				XAxis:      "alert_type",
				YAxis:      []string{"alerts"},
				Title:      "Alerts Distribution by Alert Type",
				XLabel:     "Alert Type",
				YLabel:     "Alerts",
				Height:     500,
				ShowLegend: true,
			},
		},
		{
			name:     "integer week bucket is a time axis",
			question: "Mortality per raise week",
			results: resultSet([]string{"raise_week", "avg_dc"},
				[]any{int64(1), 0.4}, []any{int64(2), 0.7}),
			want: models.ChartSpec{
				ChartType: models.ChartLine,
				XAxis:     "raise_week",
				YAxis:     []string{"avg_dc"},
				Title:     "Avg Dc Over Time",
				XLabel:    "Raise Week",
				YLabel:    "Avg Dc",
				Height:    models.DefaultChartHeight,
			},
		},
	}

	specifier := NewRubricChartSpecifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := specifier.Specify(context.Background(), ChartSpecRequest{Question: tt.question, Results: tt.results})
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, *got, cmpopts.IgnoreFields(models.ChartSpec{}, "Reasoning")); diff != "" {
				t.Errorf("spec mismatch (-want +got):\n%s", diff)
			}
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}

func TestRubricChartSpecifier_Rejects(t *testing.T) {
	specifier := NewRubricChartSpecifier()

	_, err := specifier.Specify(context.Background(), ChartSpecRequest{Results: &models.ResultSet{Columns: []string{"farm_name"}}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)

	_, err = specifier.Specify(context.Background(), ChartSpecRequest{
		Results: resultSet([]string{"farm_name"}, []any{"Green Valley"}),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidChartSpec)

	_, err = specifier.Specify(context.Background(), ChartSpecRequest{
		Results: resultSet([]string{"total_deaths"}, []any{int64(31)}),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidChartSpec)
}

func TestLLMChartSpecifier(t *testing.T) {
	mock := llm.NewMockLLMClientWithResponse("```json\n" + `{
  "chart_type": "line",
  "x_axis": "DATE",
  "y_axis": ["pneumonia", "diarrhea", "fever"],
  "title": "Disease Trends",
  "height": 900,
  "color_by": null,
  "reasoning": "several diseases over time"
}` + "\n```")
	specifier := NewLLMChartSpecifier(mock, zaptest.NewLogger(t))

	results := resultSet([]string{"date", "pneumonia", "diarrhea", "fever"},
		[]any{"2024-05-01", int64(3), int64(1), 2.5})
	spec, err := specifier.Specify(context.Background(), ChartSpecRequest{
		Question: "Visualize disease trends for the past 2 weeks",
		SQL:      "SELECT report_date AS date, SUM(pneumonia) AS pneumonia FROM swine_alert GROUP BY 1 LIMIT 50;",
		Results:  results,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ChartMultiLine, spec.ChartType, "several y columns promote line")
	assert.Equal(t, "date", spec.XAxis, "axis resolved to the result column's case")
	assert.Equal(t, []string{"pneumonia", "diarrhea", "fever"}, spec.YAxis)
	assert.Equal(t, models.MaxChartHeight, spec.Height)
	assert.Empty(t, spec.ColorBy)

	assert.Equal(t, prompts.ChartSpecTemperature, mock.LastTemperature)
	assert.Contains(t, mock.LastPrompt, "Result columns: [date, pneumonia, diarrhea, fever]")
}

func TestLLMChartSpecifier_InvalidSpec(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "A line chart would work best here."},
		{"unknown column", `{"chart_type": "bar", "x_axis": "farm", "y_axis": "deaths"}`},
		{"unknown type", `{"chart_type": "radar", "x_axis": "date", "y_axis": "pneumonia"}`},
	}

	results := resultSet([]string{"date", "pneumonia"}, []any{"2024-05-01", int64(3)})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specifier := NewLLMChartSpecifier(llm.NewMockLLMClientWithResponse(tt.response), zaptest.NewLogger(t))

			_, err := specifier.Specify(context.Background(), ChartSpecRequest{Question: "q", Results: results})
			assert.ErrorIs(t, err, apperrors.ErrInvalidChartSpec)
		})
	}
}

func TestRemoteChartClient_Generate(t *testing.T) {
	var payload ChartSpecPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChartSpecPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart_type": "bar", "x_axis": "farm_name", "y_axis": "avg_mortality", "height": "420"}`))
	}))
	defer srv.Close()

	rs := farmRows()
	for i := 0; i < 20; i++ {
		rs.Rows = append(rs.Rows, map[string]any{"farm_name": "Extra", "avg_mortality": 1.0})
	}

	client := NewRemoteChartClient(srv.Client())
	spec, err := client.Generate(context.Background(), srv.URL+"/", ChartSpecRequest{
		Question: "Mortality by farm",
		SQL:      "SELECT farm_name, AVG(dc_percent) AS avg_mortality FROM swine_alert GROUP BY farm_name LIMIT 50;",
		Results:  rs,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ChartBar, spec.ChartType)
	assert.Equal(t, []string{"avg_mortality"}, spec.YAxis)
	assert.Equal(t, 420, spec.Height)

	assert.Equal(t, "Mortality by farm", payload.Query)
	assert.Equal(t, []string{"farm_name", "avg_mortality"}, payload.Columns)
	assert.Len(t, payload.Results, RemoteChartRows)
}

func TestChartSpecifier_RemoteThenFallback(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantRemote bool
	}{
		{
			name: "remote answers",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"chart_type": "pie", "x_axis": "farm_name", "y_axis": "avg_mortality"}`))
			},
			wantRemote: true,
		},
		{
			name: "server error falls back",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model overloaded", http.StatusInternalServerError)
			},
		},
		{
			name: "invalid spec falls back",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"chart_type": "bar", "x_axis": "barn", "y_axis": "deaths"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			specifier, err := NewChartSpecifier(ChartSpecifierConfig{
				Mode:   SpecifierRubric,
				Remote: NewRemoteChartClient(srv.Client()),
			}, nil, zaptest.NewLogger(t))
			require.NoError(t, err)

			spec, err := specifier.Specify(context.Background(), ChartSpecRequest{
				Question:   "Mortality by farm",
				Results:    farmRows(),
				ServiceURL: srv.URL,
			})
			require.NoError(t, err)
			assert.Equal(t, int32(1), hits.Load())

			if tt.wantRemote {
				assert.Equal(t, models.ChartPie, spec.ChartType)
			} else {
				assert.Equal(t, models.ChartBar, spec.ChartType, "rubric result expected after fallback")
			}
		})
	}
}

func TestChartSpecifier_NoURLSkipsRemote(t *testing.T) {
	specifier, err := NewChartSpecifier(ChartSpecifierConfig{Mode: SpecifierRubric}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	spec, err := specifier.Specify(context.Background(), ChartSpecRequest{Question: "Mortality by farm", Results: farmRows()})
	require.NoError(t, err)
	assert.Equal(t, models.ChartBar, spec.ChartType)

	_, err = specifier.Specify(context.Background(), ChartSpecRequest{Results: &models.ResultSet{}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)
}

func TestNewChartSpecifier_Config(t *testing.T) {
	_, err := NewChartSpecifier(ChartSpecifierConfig{Mode: "vega"}, nil, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown chart specifier")

	_, err = NewChartSpecifier(ChartSpecifierConfig{Mode: SpecifierLLM}, nil, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "requires an LLM client")

	_, err = NewChartSpecifier(ChartSpecifierConfig{}, llm.NewMockLLMClient(), zaptest.NewLogger(t))
	assert.NoError(t, err)
}
