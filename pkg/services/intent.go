package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/jsonutil"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
)

// IntentClassifier decides whether a question wants a chart or a text answer.
type IntentClassifier interface {
	// Classify returns the intent for question. A non-empty force skips the
	// model call and fixes the intent with confidence 1.0. Parse failures are
	// returned as errors; the caller decides the fallback.
	Classify(ctx context.Context, question string, force models.ForceIntent) (*models.Intent, error)
}

type intentClassifier struct {
	llmClient llm.LLMClient
	logger    *zap.Logger
}

// NewIntentClassifier creates an intent classifier backed by llmClient.
func NewIntentClassifier(llmClient llm.LLMClient, logger *zap.Logger) IntentClassifier {
	return &intentClassifier{
		llmClient: llmClient,
		logger:    logger.Named("intent"),
	}
}

var _ IntentClassifier = (*intentClassifier)(nil)

// intentResponse is the JSON object the classifier prompt asks for.
type intentResponse struct {
	Intent     string                 `json:"intent"`
	Confidence jsonutil.FlexibleFloat `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
}

func (s *intentClassifier) Classify(ctx context.Context, question string, force models.ForceIntent) (*models.Intent, error) {
	switch force {
	case models.ForceChart:
		return &models.Intent{Kind: models.IntentChart, Confidence: 1.0, Reasoning: "forced by caller", Source: models.IntentSourceOverride}, nil
	case models.ForceText:
		return &models.Intent{Kind: models.IntentText, Confidence: 1.0, Reasoning: "forced by caller", Source: models.IntentSourceOverride}, nil
	case models.ForceNone:
	default:
		return nil, fmt.Errorf("invalid force intent %q", force)
	}

	start := time.Now()
	result, err := s.llmClient.GenerateResponse(ctx, prompts.BuildIntentPrompt(question), prompts.IntentSystemPrompt, prompts.IntentTemperature)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}

	parsed, err := llm.ParseJSONResponse[intentResponse](result.Content)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}

	kind, err := models.ParseIntentKind(parsed.Intent)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}

	intent := &models.Intent{
		Kind:       kind,
		Confidence: clampUnit(float64(parsed.Confidence)),
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
		Source:     models.IntentSourceModel,
	}

	s.logger.Debug("Intent classified",
		zap.String("intent", string(intent.Kind)),
		zap.Float64("confidence", intent.Confidence),
		zap.Duration("elapsed", time.Since(start)))
	return intent, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
