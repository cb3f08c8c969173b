package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const DefaultModerationModel = "omni-moderation-latest"

// ModerationConfig configures the OpenAI moderation classifier.
type ModerationConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

// ModerationClassifier flags harmful content through the OpenAI moderation API.
type ModerationClassifier struct {
	client *openai.Client
	model  string
}

// NewModerationClassifier creates a moderation classifier.
func NewModerationClassifier(cfg ModerationConfig) (*ModerationClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("moderation requires an OpenAI API key")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModerationModel
	}

	return &ModerationClassifier{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (m *ModerationClassifier) Name() string { return "moderation" }

// Classify flags text when the moderation API does. Confidence is the
// highest category score; threshold is not used since the provider decides.
func (m *ModerationClassifier) Classify(ctx context.Context, text string, _ float64) (*Verdict, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("moderation response has no results")
	}

	result := resp.Results[0]
	verdict := &Verdict{Flagged: result.Flagged}

	categories, err := flaggedCategories(result.Categories)
	if err != nil {
		return nil, err
	}
	verdict.Categories = categories

	scores, err := categoryScores(result.CategoryScores)
	if err != nil {
		return nil, err
	}
	for _, s := range scores {
		verdict.Confidence = max(verdict.Confidence, s)
	}
	verdict.SafeProbability = 1 - verdict.Confidence

	if verdict.Flagged {
		verdict.Detail = "flagged categories: " + strings.Join(categories, ", ")
	}
	return verdict, nil
}

// flaggedCategories lists the true fields of the SDK's category struct by
// their JSON names so new categories show up without code changes.
func flaggedCategories(categories any) ([]string, error) {
	data, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode moderation categories: %w", err)
	}
	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("decode moderation categories: %w", err)
	}

	var out []string
	for name, flagged := range flags {
		if flagged {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

func categoryScores(scores any) (map[string]float64, error) {
	data, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("encode moderation scores: %w", err)
	}
	var out map[string]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode moderation scores: %w", err)
	}
	return out, nil
}
