// Package safety screens user questions before any model or store is
// touched. Two independent classifiers run in order: harmful-content
// moderation, then prompt-injection/jailbreak detection.
package safety

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Reason names why a request was blocked.
type Reason string

const (
	ReasonNone           Reason = "none"
	ReasonHarmfulContent Reason = "harmful_content"
	ReasonJailbreak      Reason = "jailbreak_attempt"
	// ReasonClassifierUnavailable marks a fail-closed block: the check could
	// not run, so nothing is known about the question itself.
	ReasonClassifierUnavailable Reason = "classifier_unavailable"
)

// ErrorPolicy decides what a classifier failure means for the request.
type ErrorPolicy string

const (
	// OnErrorAllow treats a failed check as passed (fail-open).
	OnErrorAllow ErrorPolicy = "allow"
	// OnErrorDeny blocks the request when the check cannot run (fail-closed).
	OnErrorDeny ErrorPolicy = "deny"
)

// ParseErrorPolicy validates a configured policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case OnErrorAllow:
		return OnErrorAllow, nil
	case OnErrorDeny:
		return OnErrorDeny, nil
	default:
		return "", fmt.Errorf("invalid on_error policy %q (expected allow or deny)", s)
	}
}

// Verdict is one classifier's opinion of a text.
type Verdict struct {
	Flagged bool
	// Confidence is the probability the text is unsafe.
	Confidence float64
	// SafeProbability is the classifier's probability for the safe label, when it reports one.
	SafeProbability float64
	Categories      []string
	Detail          string
}

// Classifier is an external or local safety check.
type Classifier interface {
	Name() string
	// Classify judges text. threshold is the unsafe probability at or above
	// which the text is flagged; classifiers without a score may ignore it.
	Classify(ctx context.Context, text string, threshold float64) (*Verdict, error)
}

// ClassifierFunc constructs a classifier on first use.
type ClassifierFunc func() (Classifier, error)

// lazyClassifier builds its classifier at most once per process and reuses it.
// A construction error is remembered and reported on every call.
type lazyClassifier struct {
	name  string
	build ClassifierFunc

	once sync.Once
	c    Classifier
	err  error
}

// Lazy wraps a constructor so the classifier is created on first Classify.
func Lazy(name string, build ClassifierFunc) Classifier {
	return &lazyClassifier{name: name, build: build}
}

func (l *lazyClassifier) Name() string { return l.name }

func (l *lazyClassifier) Classify(ctx context.Context, text string, threshold float64) (*Verdict, error) {
	l.once.Do(func() {
		l.c, l.err = l.build()
		if l.err == nil && l.c == nil {
			l.err = fmt.Errorf("%s: constructor returned no classifier", l.name)
		}
	})
	if l.err != nil {
		return nil, fmt.Errorf("initialize %s: %w", l.name, l.err)
	}
	return l.c.Classify(ctx, text, threshold)
}
