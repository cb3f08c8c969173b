package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/jsonutil"
)

// ChartType is one of the seven supported chart kinds.
type ChartType string

const (
	ChartLine       ChartType = "line"
	ChartBar        ChartType = "bar"
	ChartScatter    ChartType = "scatter"
	ChartMultiLine  ChartType = "multi_line"
	ChartGroupedBar ChartType = "grouped_bar"
	ChartPie        ChartType = "pie"
	ChartHeatmap    ChartType = "heatmap"
)

// AllChartTypes lists the chart types in rubric order.
var AllChartTypes = []ChartType{
	ChartLine, ChartMultiLine, ChartBar, ChartGroupedBar, ChartScatter, ChartPie, ChartHeatmap,
}

// IsMultiSeries reports whether the chart type carries a list of y columns.
func (t ChartType) IsMultiSeries() bool {
	return t == ChartMultiLine || t == ChartGroupedBar
}

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	return slices.Contains(AllChartTypes, t)
}

const (
	MinChartHeight     = 400
	MaxChartHeight     = 600
	DefaultChartHeight = 450
)

// ChartSpec is a declarative description of how to render a result set.
// YAxis always holds at least one column; it is serialized as a list only
// for multi-series chart types.
type ChartSpec struct {
	ChartType  ChartType `json:"chart_type"`
	XAxis      string    `json:"x_axis"`
	YAxis      []string  `json:"y_axis"`
	Title      string    `json:"title"`
	XLabel     string    `json:"x_label"`
	YLabel     string    `json:"y_label"`
	ColorBy    string    `json:"color_by,omitempty"`
	Height     int       `json:"height"`
	ShowLegend bool      `json:"show_legend"`
	Reasoning  string    `json:"reasoning"`
}

type chartSpecWire struct {
	ChartType  string `json:"chart_type"`
	XAxis      string `json:"x_axis"`
	YAxis      any    `json:"y_axis"`
	Title      string `json:"title"`
	XLabel     string `json:"x_label"`
	YLabel     string `json:"y_label"`
	ColorBy    string `json:"color_by,omitempty"`
	Height     int    `json:"height"`
	ShowLegend bool   `json:"show_legend"`
	Reasoning  string `json:"reasoning"`
}

// MarshalJSON emits y_axis as a string for single-series charts.
func (c ChartSpec) MarshalJSON() ([]byte, error) {
	w := chartSpecWire{
		ChartType:  string(c.ChartType),
		XAxis:      c.XAxis,
		Title:      c.Title,
		XLabel:     c.XLabel,
		YLabel:     c.YLabel,
		ColorBy:    c.ColorBy,
		Height:     c.Height,
		ShowLegend: c.ShowLegend,
		Reasoning:  c.Reasoning,
	}
	switch {
	case c.ChartType.IsMultiSeries():
		w.YAxis = c.YAxis
	case len(c.YAxis) > 0:
		w.YAxis = c.YAxis[0]
	default:
		w.YAxis = ""
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts y_axis as either a string or a list, and tolerates
// models that quote numbers or omit show_legend.
func (c *ChartSpec) UnmarshalJSON(data []byte) error {
	var w struct {
		ChartType  string                      `json:"chart_type"`
		XAxis      string                      `json:"x_axis"`
		YAxis      jsonutil.FlexibleStringList `json:"y_axis"`
		Title      string                      `json:"title"`
		XLabel     string                      `json:"x_label"`
		YLabel     string                      `json:"y_label"`
		ColorBy    json.RawMessage             `json:"color_by"`
		Height     jsonutil.FlexibleInt        `json:"height"`
		ShowLegend *bool                       `json:"show_legend"`
		Reasoning  string                      `json:"reasoning"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*c = ChartSpec{
		ChartType:  ChartType(strings.ToLower(strings.TrimSpace(w.ChartType))),
		XAxis:      strings.TrimSpace(w.XAxis),
		YAxis:      []string(w.YAxis),
		Title:      w.Title,
		XLabel:     w.XLabel,
		YLabel:     w.YLabel,
		ColorBy:    jsonutil.FlexibleStringValue(w.ColorBy),
		Height:     int(w.Height),
		ShowLegend: true,
		Reasoning:  w.Reasoning,
	}
	if w.ShowLegend != nil {
		c.ShowLegend = *w.ShowLegend
	}
	return nil
}

// Normalize validates the spec against the result columns and coerces it
// into canonical form:
//   - a single-series type given several y columns is promoted
//     (line to multi_line, bar to grouped_bar); other types are rejected
//   - a multi-series type given one y column is demoted to line or bar
//   - height is defaulted and clamped to [MinChartHeight, MaxChartHeight]
//   - axis columns must exist in columns when columns is non-empty
//
// color_by naming an unknown column is dropped rather than rejected.
func (c *ChartSpec) Normalize(columns []string) error {
	if !c.ChartType.Valid() {
		return fmt.Errorf("%w: unsupported chart_type %q", apperrors.ErrInvalidChartSpec, c.ChartType)
	}
	if c.XAxis == "" {
		return fmt.Errorf("%w: x_axis is required", apperrors.ErrInvalidChartSpec)
	}

	y := make([]string, 0, len(c.YAxis))
	for _, col := range c.YAxis {
		col = strings.TrimSpace(col)
		if col != "" && !slices.Contains(y, col) {
			y = append(y, col)
		}
	}
	if len(y) == 0 {
		return fmt.Errorf("%w: y_axis is required", apperrors.ErrInvalidChartSpec)
	}
	c.YAxis = y

	switch {
	case len(y) > 1 && c.ChartType == ChartLine:
		c.ChartType = ChartMultiLine
	case len(y) > 1 && c.ChartType == ChartBar:
		c.ChartType = ChartGroupedBar
	case len(y) > 1 && !c.ChartType.IsMultiSeries():
		return fmt.Errorf("%w: %s takes a single y column, got %d", apperrors.ErrInvalidChartSpec, c.ChartType, len(y))
	case len(y) == 1 && c.ChartType == ChartMultiLine:
		c.ChartType = ChartLine
	case len(y) == 1 && c.ChartType == ChartGroupedBar:
		c.ChartType = ChartBar
	}

	if len(columns) > 0 {
		if resolved, ok := matchColumn(columns, c.XAxis); ok {
			c.XAxis = resolved
		} else {
			return fmt.Errorf("%w: x_axis %q not in results", apperrors.ErrInvalidChartSpec, c.XAxis)
		}
		for i, col := range c.YAxis {
			resolved, ok := matchColumn(columns, col)
			if !ok {
				return fmt.Errorf("%w: y_axis %q not in results", apperrors.ErrInvalidChartSpec, col)
			}
			c.YAxis[i] = resolved
		}
		if c.ColorBy != "" {
			if resolved, ok := matchColumn(columns, c.ColorBy); ok {
				c.ColorBy = resolved
			} else {
				c.ColorBy = ""
			}
		}
	}

	switch {
	case c.Height == 0:
		c.Height = DefaultChartHeight
	case c.Height < MinChartHeight:
		c.Height = MinChartHeight
	case c.Height > MaxChartHeight:
		c.Height = MaxChartHeight
	}

	if c.Title == "" {
		c.Title = strings.Join(c.YAxis, ", ") + " by " + c.XAxis
	}
	if c.XLabel == "" {
		c.XLabel = c.XAxis
	}
	if c.YLabel == "" {
		c.YLabel = strings.Join(c.YAxis, ", ")
	}
	return nil
}

// matchColumn resolves name against columns, ignoring case since stores
// disagree on identifier folding.
func matchColumn(columns []string, name string) (string, bool) {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
