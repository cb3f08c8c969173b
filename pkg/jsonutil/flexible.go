package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleStringList decodes either a single string or a list of strings.
// Models asked for "a column or list of columns" produce both shapes, and
// occasionally a comma-separated string.
type FlexibleStringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *FlexibleStringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(FlexibleStringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}

	s := FlexibleStringValue(data)
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// FlexibleFloat decodes a number that may arrive quoted, e.g. "0.85" or "85%".
type FlexibleFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(FlexibleStringValue(data))
	if s == "" {
		*f = 0
		return nil
	}

	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	if percent {
		v /= 100
	}
	*f = FlexibleFloat(v)
	return nil
}

// FlexibleInt decodes an integer that may arrive quoted or as a float.
type FlexibleInt int

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(FlexibleStringValue(data))
	if s == "" {
		*i = 0
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*i = FlexibleInt(math.Round(v))
	return nil
}
