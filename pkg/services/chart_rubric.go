package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/models"
)

type columnKind int

const (
	kindCategorical columnKind = iota
	kindNumeric
	kindTemporal
)

var (
	temporalHints = []string{"date", "day", "week", "month", "year", "time", "period"}
	helperColumns = []string{"record_count", "records", "row_count", "num_records", "count", "cnt", "n"}

	pieWords     = []string{"pie", "proportion", "share", "composition", "breakdown", "distribution"}
	scatterWords = []string{"correlat", " vs ", " vs. ", "versus", "relationship", "scatter"}
	heatmapWords = []string{"heatmap", "heat map", "matrix"}
)

type rubricChartSpecifier struct{}

// NewRubricChartSpecifier returns a deterministic specifier that applies the
// chart-selection rubric to the result shape and the wording of the question.
func NewRubricChartSpecifier() ChartSpecifier {
	return rubricChartSpecifier{}
}

func (rubricChartSpecifier) Specify(_ context.Context, req ChartSpecRequest) (*models.ChartSpec, error) {
	rs := req.Results
	if rs.RowCount() == 0 {
		return nil, apperrors.ErrEmptyResult
	}

	var temporal string
	var cats, nums []string
	for _, col := range rs.Columns {
		switch classifyColumn(col, rs.Rows) {
		case kindTemporal:
			if temporal == "" {
				temporal = col
			} else {
				cats = append(cats, col)
			}
		case kindNumeric:
			nums = append(nums, col)
		default:
			cats = append(cats, col)
		}
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: no numeric column to plot", apperrors.ErrInvalidChartSpec)
	}

	metrics := withoutHelpers(nums)
	q := " " + strings.ToLower(req.Question) + " "
	dims := cats
	if temporal != "" {
		dims = append([]string{temporal}, cats...)
	}

	spec := &models.ChartSpec{Height: models.DefaultChartHeight}
	switch {
	case containsAny(q, heatmapWords) && len(dims) >= 2:
		spec.ChartType = models.ChartHeatmap
		spec.XAxis, spec.YAxis, spec.ColorBy = dims[0], []string{dims[1]}, metrics[0]
		spec.Reasoning = "Intensity of one metric across two dimensions"
	case containsAny(q, scatterWords) && len(nums) >= 2:
		spec.ChartType = models.ChartScatter
		spec.XAxis, spec.YAxis = nums[0], []string{nums[1]}
		spec.Reasoning = "Correlation between two numeric variables"
		if len(cats) > 0 {
			spec.ColorBy = cats[0]
		}
	case containsAny(q, pieWords) && len(cats) > 0:
		spec.ChartType = models.ChartPie
		spec.XAxis, spec.YAxis = cats[0], []string{metrics[0]}
		spec.Reasoning = "Composition of a whole across categories"
	case temporal != "":
		spec.XAxis = temporal
		if len(metrics) > 1 {
			spec.ChartType = models.ChartMultiLine
			spec.YAxis = metrics
			spec.Reasoning = "Several metrics over the same time axis"
		} else {
			spec.ChartType = models.ChartLine
			spec.YAxis = []string{metrics[0]}
			spec.Reasoning = "Single metric over time"
			if len(cats) > 0 {
				spec.ColorBy = cats[0]
			}
		}
	case len(cats) > 0:
		spec.XAxis = cats[0]
		if len(metrics) > 1 {
			spec.ChartType = models.ChartGroupedBar
			spec.YAxis = metrics
			spec.Reasoning = "Several metrics compared across categories"
		} else {
			spec.ChartType = models.ChartBar
			spec.YAxis = []string{metrics[0]}
			spec.Reasoning = "Categorical comparison of one metric"
		}
	case len(nums) >= 2:
		spec.ChartType = models.ChartScatter
		spec.XAxis, spec.YAxis = nums[0], []string{nums[1]}
		spec.Reasoning = "Two numeric variables without a category or time axis"
	default:
		return nil, fmt.Errorf("%w: a single numeric column has no axis to plot against", apperrors.ErrInvalidChartSpec)
	}

	spec.ShowLegend = spec.ChartType.IsMultiSeries() || spec.ChartType == models.ChartPie || spec.ColorBy != ""
	if spec.ShowLegend || spec.ChartType == models.ChartScatter {
		spec.Height = 500
	}
	spec.Title = chartTitle(spec, temporal != "" && spec.XAxis == temporal)
	spec.XLabel = humanize(spec.XAxis)
	spec.YLabel = humanize(strings.Join(spec.YAxis, ", "))

	if err := spec.Normalize(rs.Columns); err != nil {
		return nil, err
	}
	return spec, nil
}

// classifyColumn decides a column's kind from its values, using the name
// only when every sampled value is NULL.
func classifyColumn(name string, rows []map[string]any) columnKind {
	sawValue := false
	numeric, temporal := true, true
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		sawValue = true
		if !isNumber(v) {
			numeric = false
		}
		if !isTemporal(v) {
			temporal = false
		}
	}

	lower := strings.ToLower(name)
	switch {
	case !sawValue && containsAny(lower, temporalHints):
		return kindTemporal
	case !sawValue:
		return kindNumeric
	case temporal:
		return kindTemporal
	case numeric && containsAny(lower, []string{"year", "week", "month"}) && !containsAny(lower, []string{"avg", "sum", "total"}):
		// raise_week, report_year and similar integer buckets act as time axes
		return kindTemporal
	case numeric:
		return kindNumeric
	default:
		return kindCategorical
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func isTemporal(v any) bool {
	switch val := v.(type) {
	case time.Time:
		return true
	case string:
		for _, layout := range []string{time.DateOnly, time.RFC3339, time.DateTime} {
			if _, err := time.Parse(layout, val); err == nil {
				return true
			}
		}
	}
	return false
}

func withoutHelpers(nums []string) []string {
	var out []string
	for _, n := range nums {
		if !slices.Contains(helperColumns, strings.ToLower(n)) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nums
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func chartTitle(spec *models.ChartSpec, overTime bool) string {
	metrics := humanize(strings.Join(spec.YAxis, ", "))
	switch spec.ChartType {
	case models.ChartScatter:
		return humanize(spec.XAxis) + " vs " + metrics
	case models.ChartPie:
		return metrics + " Distribution by " + humanize(spec.XAxis)
	}
	if overTime {
		return metrics + " Over Time"
	}
	return metrics + " by " + humanize(spec.XAxis)
}

// humanize turns avg_mortality_percent into Avg Mortality Percent.
func humanize(col string) string {
	words := strings.FieldsFunc(col, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
