// Command convocue runs the ConvoCue coaching server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomwolfe/ConvoCue/internal/app"
	"github.com/tomwolfe/ConvoCue/internal/config"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	envFile    string
	watch      time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "convocue: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "convocue",
		Short:         "Real-time conversational coaching server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVarP(&envFile, "env", "e", ".env", "dotenv file loaded before the config (missing file is ignored)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve coaching sessions over WebSocket",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serve.Flags().DurationVar(&watch, "watch", 2*time.Second, "config reload poll interval (0 disables reloading)")

	classify := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify an utterance and print the scores as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}

	root.AddCommand(serve, classify)
	return root
}

// loadEnv reads envFile into the process environment so ${VAR} references
// in the config resolve.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found (copy configs/example.yaml to get started)", configPath)
	}
	return cfg, err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("convocue starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"llm", cfg.Providers.LLM.Name,
		"stt", cfg.Providers.STT.Name,
		"personas", len(cfg.Personas),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "convocue",
		ServiceVersion: version,
		SetGlobal:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts := []app.Option{
		app.WithLevelVar(level),
		app.WithMetrics(metrics),
		app.WithTelemetry(tel),
	}
	if watch > 0 {
		opts = append(opts, app.WithConfigWatch(configPath, watch))
	}
	application, err := app.New(cfg, reg, opts...)
	if err != nil {
		return err
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// classification is the JSON printed by the classify command.
type classification struct {
	Text     string                   `json:"text"`
	Label    intent.Label             `json:"label"`
	Score    float64                  `json:"score"`
	Scores   map[intent.Label]float64 `json:"scores"`
	Eligible bool                     `json:"eligible"`
	Shortcut string                   `json:"shortcut,omitempty"`
}

// runClassify scores text with the configured intent table, or the built-in
// one when no config file exists.
func runClassify(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{}
	if _, err := os.Stat(configPath); err == nil {
		if cfg, err = loadConfig(); err != nil {
			return err
		}
	} else {
		config.ApplyDefaults(cfg)
	}

	classifier, err := intent.New(*cfg.Intents)
	if err != nil {
		return err
	}
	shortcuts := intent.NewShortcuts(cfg.Shortcuts)

	text := strings.Join(args, " ")
	res := classifier.Classify(text)
	out := classification{
		Text:     text,
		Label:    res.Label,
		Score:    res.Score,
		Scores:   res.Scores,
		Eligible: intent.ShouldSuggest(text),
	}
	if sc, ok := shortcuts.Lookup(text); ok {
		out.Label = sc.Intent
		out.Eligible = true
		out.Shortcut = sc.Suggestion
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
