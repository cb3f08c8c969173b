package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InterpretationTemperature is the sampling temperature for narratives.
const InterpretationTemperature = 0.3

// InterpretationRowLimit is the number of result rows shown to the model.
const InterpretationRowLimit = 20

// BuildInterpretationSystemPrompt returns the analyst instructions with the
// severity rubric embedded.
func BuildInterpretationSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an expert swine farm data analyst advising farm managers and veterinarians ")
	b.WriteString("on pig health, mortality, biosecurity and environmental management.\n\n")
	b.WriteString("Severity rubric:\n\n")
	b.WriteString(RenderSeverityRubric(SeverityRubric))
	b.WriteString("\n\nResponse structure:\n")
	b.WriteString("A. Direct answer: one sentence with specific numbers from the results.\n")
	b.WriteString("B. Key findings: 2-4 bullet points, severity-banded with the rubric.\n")
	b.WriteString("C. Recommendations: 1-3 actionable steps.\n")
	b.WriteString("D. Context: farm, barn, flock and report date where relevant.\n\n")
	b.WriteString("Keep it to 200-400 words of markdown. Use **bold** for farm names and critical metrics. ")
	b.WriteString("Note NULLs in critical fields and flag implausible outliers such as dc_percent above 50%. ")
	b.WriteString("Never invent data that is not in the results.")
	return b.String()
}

// BuildInterpretationPrompt renders the question, the executed SQL and up to
// InterpretationRowLimit rows. totalRows is the full result size.
func BuildInterpretationPrompt(question, sql string, rows []map[string]any, totalRows int) (string, error) {
	if len(rows) > InterpretationRowLimit {
		rows = rows[:InterpretationRowLimit]
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result rows: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "SQL executed:\n```sql\n%s\n```\n\n", strings.TrimSpace(sql))
	if totalRows > len(rows) {
		fmt.Fprintf(&b, "Results (first %d of %d rows):\n", len(rows), totalRows)
	} else {
		fmt.Fprintf(&b, "Results (%d rows):\n", totalRows)
	}
	b.Write(data)
	b.WriteString("\n\nAnalyze these results following the rubric.")
	return b.String(), nil
}
