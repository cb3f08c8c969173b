package models

import (
	"fmt"
	"strings"
)

// IntentKind is the answer modality a caller wants.
type IntentKind string

const (
	IntentChart IntentKind = "chart"
	IntentText  IntentKind = "text"
)

// IntentSource records how an intent was decided.
type IntentSource string

const (
	IntentSourceModel    IntentSource = "model"
	IntentSourceOverride IntentSource = "override"
	IntentSourceFallback IntentSource = "fallback"
)

// Intent is the routing decision for one request.
type Intent struct {
	Kind       IntentKind   `json:"intent"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Source     IntentSource `json:"source"`
}

// ParseIntentKind accepts the model's spelling of an intent.
func ParseIntentKind(s string) (IntentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chart", "visualization", "visualisation", "graph", "plot":
		return IntentChart, nil
	case "text", "analysis", "table":
		return IntentText, nil
	default:
		return "", fmt.Errorf("unknown intent %q", s)
	}
}

// ForceIntent is the caller-supplied override. The zero value means no override.
type ForceIntent string

const (
	ForceNone  ForceIntent = ""
	ForceChart ForceIntent = "chart"
	ForceText  ForceIntent = "text"
)

// TranslationMode biases SQL generation toward prose or chart data.
type TranslationMode string

const (
	ModeAnalysis TranslationMode = "analysis"
	ModeChart    TranslationMode = "chart"
)

// ModeFor returns the translation mode that serves an intent.
func ModeFor(kind IntentKind) TranslationMode {
	if kind == IntentChart {
		return ModeChart
	}
	return ModeAnalysis
}

// TranslationRequest is the ephemeral input to the query translator.
type TranslationRequest struct {
	Question string          `json:"question"`
	Ontology string          `json:"ontology"`
	Mode     TranslationMode `json:"mode"`
}
