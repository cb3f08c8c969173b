package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChartSpecTemperature is the sampling temperature for chart specification.
const ChartSpecTemperature = 0.3

// ChartSampleRows is the number of sample rows shown to the specifier.
const ChartSampleRows = 3

// BuildChartSpecSystemPrompt returns the specifier instructions with the
// chart-selection rubric embedded.
func BuildChartSpecSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a data visualization expert for livestock analytics. ")
	b.WriteString("Choose exactly one chart type for the query results.\n\n")
	b.WriteString("Chart selection rubric:\n")
	b.WriteString(RenderChartRubric(ChartSelectionRubric))
	b.WriteString("\n\nRespond with ONLY a JSON object:\n")
	b.WriteString("```json\n")
	b.WriteString(`{
  "chart_type": "line|bar|scatter|multi_line|grouped_bar|pie|heatmap",
  "x_axis": "column_name",
  "y_axis": "column_name" or ["column1", "column2"],
  "title": "Descriptive chart title",
  "x_label": "X-axis label",
  "y_label": "Y-axis label",
  "color_by": "column_name or null",
  "height": 400-600,
  "show_legend": true|false,
  "reasoning": "Why this chart type was chosen"
}`)
	b.WriteString("\n```\n\n")
	b.WriteString("y_axis is a list only for multi_line and grouped_bar. ")
	b.WriteString("Use only column names that appear in the results.\n\n")
	b.WriteString("Example: columns [date, pneumonia, diarrhea, fever] for \"Visualize disease trends for the past 2 weeks\" ")
	b.WriteString(`gives {"chart_type": "multi_line", "x_axis": "date", "y_axis": ["pneumonia", "diarrhea", "fever"], ...}.`)
	return b.String()
}

// BuildChartSpecPrompt renders the question, SQL, column names, row count
// and a sample of the first ChartSampleRows rows.
func BuildChartSpecPrompt(question, sql string, columns []string, rows []map[string]any) (string, error) {
	sample := rows
	if len(sample) > ChartSampleRows {
		sample = sample[:ChartSampleRows]
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sample rows: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "SQL:\n```sql\n%s\n```\n\n", strings.TrimSpace(sql))
	fmt.Fprintf(&b, "Result columns: [%s]\n", strings.Join(columns, ", "))
	fmt.Fprintf(&b, "Row count: %d\n\n", len(rows))
	fmt.Fprintf(&b, "Sample rows:\n%s\n\n", data)
	b.WriteString("Return the optimal chart specification.")
	return b.String(), nil
}
