package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errSourcesFailed = errors.New("some log sources could not be processed")

type options struct {
	configPath string
	cachePath  string
	repoURL    string
	statsDir   string
	logLevel   string
	logJSON    bool
	jsonOut    bool
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	stdout io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "flathub-stats [log]...",
		Short: "Extract download statistics from Flathub CDN logs",
		Long: `flathub-stats reads CDN access logs for an OSTree repository and prints
one line per counted download: commit, date, ref, libostree and flatpak
versions, delta and update flags, and country.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.cachePath, "cache", "", "commit cache location, local path or s3://bucket/key")
	flags.StringVar(&opts.repoURL, "repo", "", "base URL of the OSTree repository")
	flags.StringVar(&opts.statsDir, "stats-dir", "", "write daily aggregates under this path or s3:// prefix")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")

	parse := newParseCmd(opts, stdout, stderr)
	root.Flags().AddFlagSet(parse.Flags())
	root.RunE = parse.RunE

	root.AddCommand(parse, newServeCmd(opts, stdout, stderr))
	return root
}

func newApp(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) (*app, error) {
	cfg := config.Load()
	configPath := opts.configPath
	if configPath == "" {
		configPath = os.Getenv("FLATHUB_STATS_CONFIG")
	}
	if configPath != "" {
		if err := config.LoadFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("cache") {
		cfg.CachePath = opts.cachePath
	}
	if flags.Changed("repo") {
		cfg.RepoURL = opts.repoURL
	}
	if flags.Changed("stats-dir") {
		cfg.StatsDir = opts.statsDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-json") && opts.logJSON {
		cfg.LogFormat = "json"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, stdout: stdout}, nil
}

func newLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
