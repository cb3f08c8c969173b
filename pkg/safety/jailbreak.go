package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

const (
	DefaultJailbreakModel    = "qualifire/prompt-injection-jailbreak-sentinel-v2"
	DefaultJailbreakEndpoint = "https://api-inference.huggingface.co/models"
	// JailbreakTimeout bounds the remote detector call.
	JailbreakTimeout = 10 * time.Second
)

// JailbreakConfig configures the prompt-injection detector.
type JailbreakConfig struct {
	// Endpoint is the inference API base; the model name is appended.
	Endpoint string
	Model    string
	Token    string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// InjectionClassifier detects prompt injection and jailbreak attempts.
// A local libinjection pass catches SQL injection payloads without a network
// call; everything else goes to a hosted sequence classifier.
type InjectionClassifier struct {
	endpoint string
	model    string
	token    string
	client   *http.Client
}

// NewInjectionClassifier creates a detector. Without a token only the local
// SQL injection pass runs.
func NewInjectionClassifier(cfg JailbreakConfig) *InjectionClassifier {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultJailbreakEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultJailbreakModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: JailbreakTimeout}
	}

	return &InjectionClassifier{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		token:    cfg.Token,
		client:   client,
	}
}

func (c *InjectionClassifier) Name() string { return "jailbreak" }

// Classify flags text whose injection probability is at or above threshold.
func (c *InjectionClassifier) Classify(ctx context.Context, text string, threshold float64) (*Verdict, error) {
	if hit := sqlutil.CheckTextForInjection(text); hit != nil {
		return &Verdict{
			Flagged:    true,
			Confidence: 1,
			Categories: []string{"sql_injection"},
			Detail:     fmt.Sprintf("SQL injection pattern (fingerprint %s)", hit.Fingerprint),
		}, nil
	}

	if c.token == "" {
		return &Verdict{Detail: "remote detector not configured; local check only"}, nil
	}

	unsafe, safe, err := c.score(ctx, text)
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{
		Flagged:         unsafe >= threshold,
		Confidence:      unsafe,
		SafeProbability: safe,
	}
	if verdict.Flagged {
		verdict.Categories = []string{"prompt_injection"}
		verdict.Detail = fmt.Sprintf("injection probability %.2f at threshold %.2f", unsafe, threshold)
	}
	return verdict, nil
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *InjectionClassifier) score(ctx context.Context, text string) (unsafe, safe float64, err error) {
	body, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return 0, 0, fmt.Errorf("encode detector request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, JailbreakTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+c.model, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("detector request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, 0, fmt.Errorf("read detector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("detector returned HTTP %d", resp.StatusCode)
	}

	scores, err := decodeLabelScores(data)
	if err != nil {
		return 0, 0, err
	}

	found := false
	for _, s := range scores {
		switch strings.ToLower(s.Label) {
		case "jailbreak", "injection", "unsafe", "label_1":
			unsafe, found = s.Score, true
		case "benign", "safe", "label_0":
			safe = s.Score
		}
	}
	if !found {
		if safe == 0 {
			return 0, 0, fmt.Errorf("detector response has no known labels")
		}
		unsafe = 1 - safe
	}
	return unsafe, safe, nil
}

// decodeLabelScores accepts both the batched [[...]] and flat [...] shapes
// the inference API returns for text classification.
func decodeLabelScores(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	return flat, nil
}
