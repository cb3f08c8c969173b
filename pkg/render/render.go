// Package render writes pipeline results to a terminal or as machine-readable
// envelopes.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

// Format selects the output encoding.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected pretty, json or yaml)", s)
	}
}

// MaxTableRows bounds the rows printed in pretty output.
const MaxTableRows = 20

// Options configures a Renderer.
type Options struct {
	// WordWrap is the narrative wrap width. Zero uses 80.
	WordWrap int
	// Plain disables terminal styling in narratives.
	Plain bool
}

// Renderer writes PipelineResults to out.
type Renderer struct {
	out    io.Writer
	format Format
	opts   Options
	styles styles
}

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	code    lipgloss.Style
	box     lipgloss.Style
	errBox  lipgloss.Style
	errHead lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
}

// New creates a Renderer. Colors follow the capabilities of out, so a pipe or
// buffer gets unstyled text.
func New(out io.Writer, format Format, opts Options) *Renderer {
	if opts.WordWrap <= 0 {
		opts.WordWrap = 80
	}
	r := lipgloss.NewRenderer(out)
	return &Renderer{
		out:    out,
		format: format,
		opts:   opts,
		styles: styles{
			title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
			label:   r.NewStyle().Bold(true),
			muted:   r.NewStyle().Foreground(lipgloss.Color("#8a8f98")),
			code:    r.NewStyle().Foreground(lipgloss.Color("#4db6ac")),
			box:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#2196F3")).Padding(0, 1),
			errBox:  r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#e53935")).Padding(0, 1),
			errHead: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935")),
			header:  r.NewStyle().Bold(true).Padding(0, 1),
			cell:    r.NewStyle().Padding(0, 1),
		},
	}
}

// Result writes one result in the configured format.
func (r *Renderer) Result(result *models.PipelineResult) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		return r.yaml(result)
	default:
		return r.pretty(result)
	}
}

// yaml encodes the JSON form so field names match the HTTP API.
func (r *Renderer) yaml(result *models.PipelineResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}

func (r *Renderer) pretty(result *models.PipelineResult) error {
	var b strings.Builder
	s := r.styles

	b.WriteString(s.title.Render(result.Question))
	b.WriteString("\n")
	meta := []string{"request " + result.RequestID}
	if result.Intent != nil {
		meta = append(meta, fmt.Sprintf("intent %s (%.2f, %s)", result.Intent.Kind, result.Intent.Confidence, result.Intent.Source))
	}
	if result.Backend != "" {
		meta = append(meta, "backend "+result.Backend)
	}
	meta = append(meta, result.Elapsed.Round(time.Millisecond).String())
	b.WriteString(s.muted.Render(strings.Join(meta, " · ")))
	b.WriteString("\n\n")

	if result.SQL != "" {
		b.WriteString(s.label.Render("SQL"))
		b.WriteString("\n")
		b.WriteString(s.code.Render(result.SQL))
		b.WriteString("\n\n")
	}

	if !result.Success {
		b.WriteString(r.errorBox(result))
		b.WriteString("\n")
		_, err := io.WriteString(r.out, b.String())
		return err
	}

	if result.Results != nil {
		b.WriteString(r.table(result.Results))
		b.WriteString("\n")
	}

	if result.Narrative != "" {
		narrative, err := r.markdown(result.Narrative)
		if err != nil {
			return err
		}
		b.WriteString(narrative)
	}
	if result.Chart != nil {
		b.WriteString(r.chartBox(result.Chart))
		b.WriteString("\n")
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) markdown(text string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(r.opts.WordWrap)}
	if r.opts.Plain {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := tr.Render(text)
	if err != nil {
		return "", fmt.Errorf("render narrative: %w", err)
	}
	return out, nil
}

func (r *Renderer) errorBox(result *models.PipelineResult) string {
	s := r.styles
	if result.Error == nil {
		return s.errBox.Render(s.errHead.Render("failed") + "\n" + string(result.State))
	}

	lines := []string{
		s.errHead.Render(string(result.Error.Category)),
		result.Error.Message,
	}
	if result.Error.Suggestion != "" {
		lines = append(lines, "", s.label.Render("Try: ")+result.Error.Suggestion)
	}
	if result.Safety != nil && result.Safety.Blocked && len(result.Safety.Categories) > 0 {
		lines = append(lines, s.muted.Render("flagged: "+strings.Join(result.Safety.Categories, ", ")))
	}
	return s.errBox.Width(r.opts.WordWrap).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) chartBox(spec *models.ChartSpec) string {
	s := r.styles
	lines := []string{
		s.label.Render(spec.Title),
		fmt.Sprintf("%s  x=%s  y=%s", spec.ChartType, spec.XAxis, strings.Join(spec.YAxis, ", ")),
	}
	if spec.ColorBy != "" {
		lines = append(lines, "color by "+spec.ColorBy)
	}
	lines = append(lines, s.muted.Render(fmt.Sprintf("%s / %s · height %d", spec.XLabel, spec.YLabel, spec.Height)))
	if spec.Reasoning != "" {
		lines = append(lines, s.muted.Render(spec.Reasoning))
	}
	return s.box.Render(strings.Join(lines, "\n"))
}

// table renders up to MaxTableRows rows with aligned columns.
func (r *Renderer) table(rs *models.ResultSet) string {
	s := r.styles
	if len(rs.Columns) == 0 {
		return s.muted.Render("(no columns)") + "\n"
	}

	rows := rs.Head(MaxTableRows)
	cells := make([][]string, len(rows))
	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		widths[i] = lipgloss.Width(col)
	}
	for i, row := range rows {
		cells[i] = make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			cells[i][j] = formatCell(row[col])
			if w := lipgloss.Width(cells[i][j]); w > widths[j] {
				widths[j] = w
			}
		}
	}

	var b strings.Builder
	for i, col := range rs.Columns {
		b.WriteString(s.header.Width(widths[i] + 2).Render(col))
	}
	b.WriteString("\n")
	for i := range rs.Columns {
		b.WriteString(" " + strings.Repeat("─", widths[i]) + " ")
	}
	b.WriteString("\n")
	for _, row := range cells {
		for j, cell := range row {
			b.WriteString(s.cell.Width(widths[j] + 2).Render(cell))
		}
		b.WriteString("\n")
	}

	switch n := rs.RowCount(); {
	case n == 0:
		b.WriteString(s.muted.Render("(0 rows)"))
		b.WriteString("\n")
	case n > len(rows):
		b.WriteString(s.muted.Render(fmt.Sprintf("(first %d of %d rows)", len(rows), n)))
		b.WriteString("\n")
	}
	return b.String()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
	default:
		return fmt.Sprint(val)
	}
}
