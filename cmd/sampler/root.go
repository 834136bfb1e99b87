package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oraraka-deko/sampler/sampler"
)

// options holds the persistent flags shared by all subcommands.
type options struct {
	ConfigPath string
	Model      string
	EnvFile    string
	LogLevel   string

	// Used when no config file is given.
	BaseURL string
	ModelID string
	APIKey  string

	DryRun   bool
	MaxBatch int
	Metrics  bool
	Timeout  time.Duration

	registry *prometheus.Registry
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sampler",
		Short:         "Request multiple completions from an OpenAI-compatible inference server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.EnvFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", envOr("SAMPLER_CONFIG", ""), "Config file (.json, .yaml, .toml) mapping model names to sections")
	pf.StringVar(&opts.Model, "model", envOr("SAMPLER_MODEL", "vllm"), "Section of the config file to use")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "Dotenv file loaded before running; missing file is ignored")
	pf.StringVar(&opts.LogLevel, "log-level", envOr("SAMPLER_LOG_LEVEL", "warn"), "Log level: debug|info|warn|error")
	pf.StringVar(&opts.BaseURL, "base-url", "", "Server base URL when no config file is used")
	pf.StringVar(&opts.ModelID, "model-id", "", "Model id when no config file is used")
	pf.StringVar(&opts.APIKey, "api-key", "", "API key; defaults to SAMPLER_API_KEY or OPENAI_API_KEY")
	pf.BoolVar(&opts.DryRun, "dry-run", false, "Use the offline lorem backend instead of a server")
	pf.IntVar(&opts.MaxBatch, "dry-run-max-batch", 0, "With --dry-run, reject batches larger than this (0 = no limit)")
	pf.BoolVar(&opts.Metrics, "metrics", false, "Print Prometheus metrics after the command")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "Per-request HTTP timeout (0 = none)")

	root.AddCommand(newQueryCmd(opts), newCheckCmd(opts), newVersionCmd())
	return root
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}

// resolveConfig builds the client config from the config file or the flags.
func resolveConfig(opts *options) (sampler.Config, error) {
	var cfg sampler.Config
	if opts.ConfigPath != "" {
		c, err := sampler.LoadConfig(opts.ConfigPath, opts.Model)
		if err != nil {
			return cfg, err
		}
		cfg = c
	} else {
		cfg = sampler.Config{
			ModelID:   opts.ModelID,
			BaseURL:   opts.BaseURL,
			DetectEnv: true,
		}
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.DryRun {
		cfg.Backend = sampler.BackendLorem
		if cfg.ModelID == "" {
			cfg.ModelID = "lorem"
		}
	}
	return cfg, nil
}

func buildClient(cmd *cobra.Command, opts *options, cache bool) (*sampler.Client, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	if cache {
		cfg.Cache = true
	}
	logger, err := newLogger(cmd.ErrOrStderr(), opts.LogLevel)
	if err != nil {
		return nil, err
	}

	clientOpts := []sampler.Option{sampler.WithLogger(logger)}
	if opts.Metrics {
		opts.registry = prometheus.NewRegistry()
		m, err := sampler.NewMetrics(opts.registry)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, sampler.WithMetrics(m))
	}
	if opts.DryRun {
		clientOpts = append(clientOpts, sampler.WithTransport(sampler.NewLoremTransport(sampler.LoremOptions{
			Model:     cfg.ModelID,
			MaxTokens: cfg.MaxTokens,
			MaxBatch:  opts.MaxBatch,
		})))
	}
	return sampler.New(cfg, clientOpts...)
}

// printMetrics writes the gathered registry in the text exposition format.
func printMetrics(w io.Writer, opts *options) error {
	if !opts.Metrics || opts.registry == nil {
		return nil
	}
	mfs, err := opts.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
