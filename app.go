package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/config"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/retry"
	"github.com/ekaya-inc/herdwise/pkg/safety"
	"github.com/ekaya-inc/herdwise/pkg/services"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	stores   *datasource.ConnectionManager
	pipeline services.Pipeline
	// local answers /generate-chart-spec without consulting a remote service.
	local services.ChartSpecifier
}

// newApp wires the pipeline. Nothing is dialed here: the LLM provider client
// is created eagerly but stores and safety classifiers open on first use.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries

	llmClient, err := llm.NewGuardedClientFromConfig(ctx, cfg.LLM.ClientConfig(), cfg.LLM.Breaker, retryCfg, logger)
	if err != nil {
		return nil, err
	}

	gate, err := newSafetyGate(cfg, logger)
	if err != nil {
		return nil, err
	}

	stores, err := newConnectionManager(cfg, logger)
	if err != nil {
		return nil, err
	}

	specifier, err := services.NewChartSpecifier(services.ChartSpecifierConfig{
		Mode:       cfg.Chart.Specifier,
		ServiceURL: cfg.Chart.ServiceURL,
	}, llmClient, logger)
	if err != nil {
		return nil, errors.Join(err, stores.Close())
	}

	var local services.ChartSpecifier
	if cfg.Chart.Specifier == services.SpecifierRubric {
		local = services.NewRubricChartSpecifier()
	} else {
		local = services.NewLLMChartSpecifier(llmClient, logger)
	}

	p := cfg.Pipeline
	translatorCfg := services.TranslatorConfig{
		Analysis: sqlutil.LimitPolicy{Default: p.AnalysisDefaultLimit, Ceiling: p.AnalysisMaxLimit},
		Chart:    sqlutil.LimitPolicy{Default: p.ChartDefaultLimit, Ceiling: p.ChartMaxLimit},
	}

	pipeline := services.NewPipeline(services.PipelineServices{
		Gate:        gate,
		Intent:      services.NewIntentClassifier(llmClient, logger),
		Translator:  services.NewQueryTranslator(llmClient, translatorCfg, logger),
		Executor:    services.NewQueryExecutorService(stores, logger),
		Interpreter: services.NewResultInterpreter(llmClient, logger),
		Specifier:   specifier,
	}, services.PipelineConfig{
		Timeouts: services.StageTimeouts{
			Safety:    p.Timeouts.Safety,
			Intent:    p.Timeouts.Intent,
			Translate: p.Timeouts.Translate,
			Execute:   p.Timeouts.Execute,
			Interpret: p.Timeouts.Interpret,
			Specify:   p.Timeouts.Specify,
		},
		JailbreakThreshold: cfg.Safety.Jailbreak.Threshold,
		Backends:           cfg.Store.BackendNames(),
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		stores:   stores,
		pipeline: pipeline,
		local:    local,
	}, nil
}

// Close releases every opened store.
func (a *app) Close() error {
	return a.stores.Close()
}

// newSafetyGate builds the two screening checks. Classifiers are constructed
// on the first question so a missing key only fails that check, under its
// configured error policy.
func newSafetyGate(cfg *config.Config, logger *zap.Logger) (safety.Gate, error) {
	mod := cfg.Safety.Moderation
	jb := cfg.Safety.Jailbreak

	modPolicy, err := safety.ParseErrorPolicy(mod.OnError)
	if err != nil {
		return nil, fmt.Errorf("safety.moderation: %w", err)
	}
	jbPolicy, err := safety.ParseErrorPolicy(jb.OnError)
	if err != nil {
		return nil, fmt.Errorf("safety.jailbreak: %w", err)
	}

	var moderation, jailbreak safety.Classifier
	if !mod.Disabled {
		moderation = safety.Lazy("moderation", func() (safety.Classifier, error) {
			return safety.NewModerationClassifier(safety.ModerationConfig{
				APIKey:   mod.APIKey,
				Endpoint: mod.Endpoint,
				Model:    mod.Model,
			})
		})
	} else {
		logger.Warn("Content moderation is disabled")
	}
	if !jb.Disabled {
		jailbreak = safety.Lazy("jailbreak", func() (safety.Classifier, error) {
			return safety.NewInjectionClassifier(safety.JailbreakConfig{
				Endpoint: jb.Endpoint,
				Model:    jb.Model,
				Token:    jb.Token,
			}), nil
		})
	} else {
		logger.Warn("Jailbreak detection is disabled")
	}

	return safety.NewGate(safety.GateConfig{
		Moderation:         safety.CheckPolicy{OnError: modPolicy, Timeout: mod.Timeout},
		Jailbreak:          safety.CheckPolicy{OnError: jbPolicy, Timeout: jb.Timeout},
		JailbreakThreshold: jb.Threshold,
	}, moderation, jailbreak, logger), nil
}

func newConnectionManager(cfg *config.Config, logger *zap.Logger) (*datasource.ConnectionManager, error) {
	backends := make([]datasource.Backend, 0, len(cfg.Store.Backends))
	for i := range cfg.Store.Backends {
		b := &cfg.Store.Backends[i]
		backends = append(backends, datasource.Backend{
			Name:   b.Name,
			Type:   b.Type,
			Config: b.Settings(),
		})
	}
	return datasource.NewConnectionManager(backends, cfg.Store.Default, logger)
}
