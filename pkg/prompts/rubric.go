package prompts

import (
	"fmt"
	"strings"
)

// Band is one severity range of a metric.
type Band struct {
	Level string
	Range string
}

// MetricRubric describes how one metric family is banded.
type MetricRubric struct {
	Family  string
	Metrics []string
	Bands   []Band
	Note    string
}

// SeverityRubric is the domain rubric the interpreter applies to results.
var SeverityRubric = []MetricRubric{
	{
		Family:  "Mortality",
		Metrics: []string{"dc_percent"},
		Bands: []Band{
			{"Excellent", "0-2%"},
			{"Good", "2-3%"},
			{"Concerning", "3-5%"},
			{"Critical", ">5% (urgent intervention)"},
		},
	},
	{
		Family:  "Year-to-date mortality",
		Metrics: []string{"ytd_percent"},
		Bands: []Band{
			{"Excellent", "0-3%"},
			{"Concerning", "3-6%"},
			{"Critical", ">6%"},
		},
	},
	{
		Family:  "Temperature stability",
		Metrics: []string{"max_indoor_temperature - min_indoor_temperature"},
		Bands: []Band{
			{"Ideal", "variance <5°C"},
			{"Concerning", "variance 5-10°C"},
			{"Critical", "variance >10°C"},
		},
		Note: "Optimal indoor range is 20-25°C. Compare against outdoor extremes.",
	},
	{
		Family: "Disease incidence",
		Metrics: []string{
			"pneumonia_percent", "diarrhea_percent", "sudden_death_percent", "fever_percent",
			"convulsion_percent", "arthritis_percent", "paralysis_percent",
		},
		Bands: []Band{
			{"Minimal", "<2%"},
			{"Concerning", "2-10%"},
			{"Outbreak", ">10% (veterinary intervention)"},
		},
	},
	{
		Family:  "Feed efficiency",
		Metrics: []string{"feed_intake_actual / feed_intake_std"},
		Bands: []Band{
			{"Good", "95-105% of standard"},
			{"Review", "85-95% or 105-115%"},
			{"Critical", "<85% or >115%"},
		},
		Note: "Check time_empty_feeder for feeding disruptions.",
	},
	{
		Family:  "Biosecurity",
		Metrics: []string{"r1_*", "r2_*", "rats_detected", "flies_mosquitoes_detected", "wild_animals_detected"},
		Bands: []Band{
			{"Compliant", "no failed checkpoints"},
			{"Attention", "1-2 failures"},
			{"Critical", "3+ failures"},
		},
	},
}

// RenderSeverityRubric renders the rubric as prompt text.
func RenderSeverityRubric(rubric []MetricRubric) string {
	var b strings.Builder
	for _, m := range rubric {
		fmt.Fprintf(&b, "%s (%s):\n", m.Family, strings.Join(m.Metrics, ", "))
		for _, band := range m.Bands {
			fmt.Fprintf(&b, "  - %s: %s\n", band.Level, band.Range)
		}
		if m.Note != "" {
			fmt.Fprintf(&b, "  Note: %s\n", m.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChartRule maps a chart type to the data shape it suits.
type ChartRule struct {
	ChartType string
	UseWhen   string
}

// ChartSelectionRubric is the fixed chart-selection contract shared by the
// LLM specifier, the rubric specifier and the remote specification service.
var ChartSelectionRubric = []ChartRule{
	{"line", "a single metric over a date/time column"},
	{"multi_line", "several metrics over the same time axis"},
	{"bar", "a categorical ranking or comparison of one metric"},
	{"grouped_bar", "several metrics compared across categories"},
	{"scatter", "correlation between two numeric variables, optionally colored by a category"},
	{"pie", "a proportion or composition breakdown, ideally 3-8 categories"},
	{"heatmap", "intensity across two categorical dimensions"},
}

// RenderChartRubric renders the chart-selection rubric as prompt text.
func RenderChartRubric(rules []ChartRule) string {
	var b strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&b, "- %s: %s\n", r.ChartType, r.UseWhen)
	}
	return strings.TrimRight(b.String(), "\n")
}
