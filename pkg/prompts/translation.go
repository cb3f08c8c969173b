package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Sampling temperatures for SQL generation.
const (
	AnalysisSQLTemperature = 0.0
	ChartSQLTemperature    = 0.2
)

// TranslationTemperature returns the sampling temperature for a mode.
func TranslationTemperature(mode models.TranslationMode) float64 {
	if mode == models.ModeChart {
		return ChartSQLTemperature
	}
	return AnalysisSQLTemperature
}

const analysisGuidance = `Analysis query rules:
- Return the rows and columns a farm manager needs to answer the question in prose.
- Order results by the most relevant column (for example dc_percent DESC for mortality questions).
- Include identifying context (farm_name, barn_name, report_date) alongside metrics.`

const chartGuidance = `Chart query rules:
- Time series: group by DATE(report_date) AS date and ORDER BY date ASC.
- Categorical comparisons: group by farm_name, barn_name or operation and aggregate with AVG, SUM, COUNT or MAX.
- Correlations: select two numeric columns plus farm_name for point labels.
- Multi-metric charts: select several related metrics with short, clear aliases for legend labels.
- Never SELECT *; choose the specific columns the chart needs.`

// BuildTranslationSystemPrompt returns the instructions for translating a
// question into one bounded SELECT over the ontology.
func BuildTranslationSystemPrompt(req models.TranslationRequest, policy sqlutil.LimitPolicy) string {
	var b strings.Builder

	b.WriteString("You translate natural-language questions about swine farm operations ")
	b.WriteString("(health, mortality, biosecurity, environment) into a single executable SQL query, ")
	b.WriteString("using only what is declared in the ontology below.\n\n")

	b.WriteString("<ontology>\n")
	b.WriteString(strings.TrimSpace(req.Ontology))
	b.WriteString("\n</ontology>\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Produce exactly one statement and it must be a SELECT.\n")
	b.WriteString("2. Never use INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, MERGE or TRUNCATE.\n")
	fmt.Fprintf(&b, "3. Always end with a LIMIT clause (default %d, maximum %d).\n", policy.Default, policy.Ceiling)
	b.WriteString("4. Handle NULLs with IS NULL / IS NOT NULL, never = NULL.\n")
	fmt.Fprintf(&b, "5. Read only from %s and use lower-case column names exactly as declared.\n", models.SwineAlertTable)
	b.WriteString("6. Use ANSI date arithmetic: CURRENT_DATE - INTERVAL 'N days', DATE(report_date), DATE_TRUNC('week', report_date).\n\n")

	if req.Mode == models.ModeChart {
		b.WriteString(chartGuidance)
	} else {
		b.WriteString(analysisGuidance)
	}

	b.WriteString("\n\nOutput only the SQL in a ```sql fenced block with no explanation.")
	return b.String()
}

// BuildTranslationPrompt wraps the user question for the translator.
func BuildTranslationPrompt(req models.TranslationRequest) string {
	return "Question: " + strings.TrimSpace(req.Question)
}
