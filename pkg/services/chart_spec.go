package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
)

// Chart specifier modes.
const (
	SpecifierLLM    = "llm"
	SpecifierRubric = "rubric"
)

// ChartSpecRequest is the input to a chart specifier.
type ChartSpecRequest struct {
	Question string
	SQL      string
	Results  *models.ResultSet
	// ServiceURL overrides the configured remote specification service.
	ServiceURL string
}

// ChartSpecifier chooses a chart for a non-empty result set.
type ChartSpecifier interface {
	Specify(ctx context.Context, req ChartSpecRequest) (*models.ChartSpec, error)
}

// ChartSpecifierConfig configures NewChartSpecifier.
type ChartSpecifierConfig struct {
	// Mode selects the local specifier: SpecifierLLM or SpecifierRubric.
	Mode string
	// ServiceURL is the default remote specification service. Empty disables it.
	ServiceURL string
	Remote     *RemoteChartClient
}

// NewChartSpecifier builds the local specifier named by cfg.Mode and puts the
// remote specification service in front of it.
func NewChartSpecifier(cfg ChartSpecifierConfig, llmClient llm.LLMClient, logger *zap.Logger) (ChartSpecifier, error) {
	var local ChartSpecifier
	switch strings.ToLower(cfg.Mode) {
	case "", SpecifierLLM:
		if llmClient == nil {
			return nil, fmt.Errorf("llm chart specifier requires an LLM client")
		}
		local = NewLLMChartSpecifier(llmClient, logger)
	case SpecifierRubric:
		local = NewRubricChartSpecifier()
	default:
		return nil, fmt.Errorf("unknown chart specifier %q (expected %s or %s)", cfg.Mode, SpecifierLLM, SpecifierRubric)
	}

	remote := cfg.Remote
	if remote == nil {
		remote = NewRemoteChartClient(nil)
	}
	return &chartSpecifier{
		local:      local,
		remote:     remote,
		serviceURL: cfg.ServiceURL,
		logger:     logger.Named("chart-spec"),
	}, nil
}

// chartSpecifier tries the remote service when a URL is known and falls back
// to the local specifier on any failure. The fallback is logged, never
// surfaced.
type chartSpecifier struct {
	local      ChartSpecifier
	remote     *RemoteChartClient
	serviceURL string
	logger     *zap.Logger
}

var _ ChartSpecifier = (*chartSpecifier)(nil)

func (s *chartSpecifier) Specify(ctx context.Context, req ChartSpecRequest) (*models.ChartSpec, error) {
	if req.Results.RowCount() == 0 {
		return nil, apperrors.ErrEmptyResult
	}

	url := req.ServiceURL
	if url == "" {
		url = s.serviceURL
	}
	if url != "" {
		start := time.Now()
		spec, err := s.remote.Generate(ctx, url, req)
		if err == nil {
			s.logger.Debug("Chart spec from remote service",
				zap.String("chart_type", string(spec.ChartType)),
				zap.Duration("elapsed", time.Since(start)))
			return spec, nil
		}
		s.logger.Warn("Chart spec service failed, falling back to local specifier",
			zap.String("url", url),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}

	return s.local.Specify(ctx, req)
}

type llmChartSpecifier struct {
	llmClient llm.LLMClient
	logger    *zap.Logger
}

// NewLLMChartSpecifier creates a specifier that asks the model to apply the
// chart-selection rubric.
func NewLLMChartSpecifier(llmClient llm.LLMClient, logger *zap.Logger) ChartSpecifier {
	return &llmChartSpecifier{
		llmClient: llmClient,
		logger:    logger.Named("chart-llm"),
	}
}

func (s *llmChartSpecifier) Specify(ctx context.Context, req ChartSpecRequest) (*models.ChartSpec, error) {
	if req.Results.RowCount() == 0 {
		return nil, apperrors.ErrEmptyResult
	}

	prompt, err := prompts.BuildChartSpecPrompt(req.Question, req.SQL, req.Results.Columns, req.Results.Rows)
	if err != nil {
		return nil, err
	}

	result, err := s.llmClient.GenerateResponse(ctx, prompt, prompts.BuildChartSpecSystemPrompt(), prompts.ChartSpecTemperature)
	if err != nil {
		return nil, fmt.Errorf("generate chart spec: %w", err)
	}

	spec, err := llm.ParseJSONResponse[models.ChartSpec](result.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidChartSpec, err)
	}
	if err := spec.Normalize(req.Results.Columns); err != nil {
		return nil, err
	}

	s.logger.Debug("Chart spec generated",
		zap.String("chart_type", string(spec.ChartType)),
		zap.Strings("y_axis", spec.YAxis))
	return &spec, nil
}
