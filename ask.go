package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/config"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/render"
)

// errQuestionFailed signals a failed pipeline run whose result was already printed.
var errQuestionFailed = errors.New("question could not be answered")

var (
	askForce   string
	askBackend string
	askOutput  string
	askSpecURL string
	askPlain   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and print the result",
	Example: `  herdwise ask "Which farm has the highest average DC% this month?"
  herdwise ask --force chart "Compare feed intake by farm"
  herdwise ask -o json --backend local "List barns with fever above 3%"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askForce, "force", "", "Force the intent: chart or text")
	askCmd.Flags().StringVarP(&askBackend, "backend", "b", "", "Store to query (default from config)")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", string(render.FormatPretty), "Output format: pretty, json or yaml")
	askCmd.Flags().StringVar(&askSpecURL, "spec-url", "", "Remote chart specification service for this question")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Disable terminal styling")
}

func runAsk(cmd *cobra.Command, args []string) error {
	force, err := parseForce(askForce)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(askOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close stores", zap.Error(err))
		}
	}()

	result := a.pipeline.Run(ctx, &models.AskRequest{
		Question:       strings.Join(args, " "),
		Force:          force,
		Backend:        askBackend,
		SpecServiceURL: askSpecURL,
	})

	r := render.New(os.Stdout, format, render.Options{Plain: askPlain})
	if err := r.Result(result); err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	if !result.Success {
		return errQuestionFailed
	}
	return nil
}

func parseForce(s string) (models.ForceIntent, error) {
	switch f := models.ForceIntent(strings.ToLower(strings.TrimSpace(s))); f {
	case models.ForceNone, models.ForceChart, models.ForceText:
		return f, nil
	default:
		return "", fmt.Errorf("--force %q must be chart or text", s)
	}
}
