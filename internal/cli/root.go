package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/difyrun/internal/batch"
	"github.com/vietddude/difyrun/internal/batch/metrics"
	"github.com/vietddude/difyrun/internal/batch/retry"
	"github.com/vietddude/difyrun/internal/core/config"
	"github.com/vietddude/difyrun/internal/infra/dify"
	"github.com/vietddude/difyrun/internal/infra/input"
	"github.com/vietddude/difyrun/internal/infra/ledger"
)

const logFileName = "difyrun.log"

var (
	inputPath    string
	outputPath   string
	retryMode    bool
	waitSeconds  float64
	validateOnly bool
	isDebug      bool
	cfgPath      string
)

var rootCmd = &cobra.Command{
	Use:   "difyrun",
	Short: "Batch executor for the Dify workflow API",
	Long: `difyrun executes a Dify workflow once per row of an input CSV,
appending successes to a JSONL output log and tracking failed ids in a
companion .retry ledger for later re-execution.`,
	Run: runBatch,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input CSV file path")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output JSONL file path")
	rootCmd.Flags().BoolVar(&retryMode, "retry", false, "reprocess only the ids in the .retry ledger")
	rootCmd.Flags().Float64VarP(&waitSeconds, "wait", "w", 0, "wait time between requests in seconds")
	rootCmd.Flags().BoolVar(&validateOnly, "validate", false, "validate configuration only")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "optional YAML config file (env vars take over when unset)")
}

// loadConfig resolves configuration from the YAML file when --config is
// given, from the environment otherwise.
func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	return config.FromEnv()
}

// setupLogging initializes slog with a tint handler, mirroring output to
// difyrun.log next to the working directory.
func setupLogging() {
	slogLevel := slog.LevelInfo
	if isDebug {
		slogLevel = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if logFile, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		w = io.MultiWriter(os.Stderr, logFile)
	}

	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	setupLogging()

	if validateOnly {
		slog.Info("Configuration is valid",
			"base_url", cfg.BaseURL,
			"workflow_id", cfg.WorkflowID,
			"max_retries", cfg.MaxRetries,
			"timeout", cfg.Timeout)
		return
	}

	if inputPath == "" || outputPath == "" {
		slog.Error("--input and --output are required (unless --validate is specified)")
		os.Exit(2)
	}

	ctx := context.Background()

	var metricsServer *metrics.Server
	if cfg.MetricsPort > 0 {
		metricsServer = metrics.NewServer(cfg.MetricsPort)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("Metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(shutdownCtx)
		}()
		slog.Info("Metrics server listening", "port", cfg.MetricsPort)
	}

	reader, err := input.NewReader(inputPath)
	if err != nil {
		slog.Error("Failed to open input", "error", err)
		os.Exit(1)
	}

	lgr, err := ledger.Open(outputPath)
	if err != nil {
		slog.Error("Failed to open output ledger", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = lgr.Close()
	}()

	rows, err := reader.Rows()
	if err != nil {
		slog.Error("Failed to read input rows", "error", err)
		os.Exit(1)
	}

	client := dify.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	executor := batch.NewExecutor(client, cfg.MaxRetries, retry.Policy{
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
		Jitter:       retry.DefaultPolicy.Jitter,
	})
	processor := batch.NewProcessor(executor, lgr)

	summary, err := processor.Run(ctx, rows, batch.Options{
		RetryMode: retryMode,
		Wait:      time.Duration(waitSeconds * float64(time.Second)),
	})
	if err != nil {
		slog.Error("Batch aborted",
			"run_id", summary.RunID,
			"processed", summary.Processed,
			"remaining", summary.Remaining,
			"error", err)
		os.Exit(1)
	}

	slog.Info("Batch complete",
		"run_id", summary.RunID,
		"total", summary.Total,
		"success", summary.Success,
		"skipped", summary.Skipped,
		"exhausted", summary.Exhausted,
		"elapsed", summary.Elapsed.Round(time.Second))
}
