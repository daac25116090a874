package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/osbuild/fedora-bot/internal/bodhi"
	"github.com/osbuild/fedora-bot/internal/cfg"
	"github.com/osbuild/fedora-bot/internal/cmdexec"
	"github.com/osbuild/fedora-bot/internal/distgit"
	"github.com/osbuild/fedora-bot/internal/fedpkg"
	"github.com/osbuild/fedora-bot/internal/koji"
	"github.com/osbuild/fedora-bot/internal/logfields"
	"github.com/osbuild/fedora-bot/internal/mergetrain"
	"github.com/osbuild/fedora-bot/internal/pagureclt"
	"github.com/osbuild/fedora-bot/internal/retry"
	"github.com/osbuild/fedora-bot/internal/slack"
	"github.com/osbuild/fedora-bot/internal/updates"
)

const appName = "fedora-bot"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught, terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startMetricsServer(listenAddr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating metrics server",
			logfields.Event("metrics_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down metrics server failed",
				logfields.Event("metrics_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"metrics server started",
			logfields.Event("metrics_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("metrics server terminated", logfields.Event("metrics_server_terminated"))
			return
		}

		logger.Fatal(
			"metrics server terminated unexpectedly",
			logfields.Event("metrics_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/fedora-bot/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the fedora-bot configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nMerge eligible pull requests and publish missing updates.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s\n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main").With(logfields.RunID(uuid.NewString()))
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

// mergeComponents converts the configured components to their merge train
// representation, compiling the optional pull request filter queries.
func mergeComponents(config *cfg.Config) ([]*mergetrain.Component, error) {
	result := make([]*mergetrain.Component, 0, len(config.Components))

	for _, comp := range config.Components {
		var filter *mergetrain.PRFilter

		if comp.PRFilterQuery != "" {
			var err error

			filter, err = mergetrain.NewPRFilter(comp.PRFilterQuery)
			if err != nil {
				return nil, fmt.Errorf("component %s: invalid pr_filter_query: %w", comp.Name, err)
			}
		}

		result = append(result, &mergetrain.Component{
			Name: comp.Name,
			Policy: mergetrain.Policy{
				ExpectedFlags: comp.ExpectedFlags,
				RequiredFlags: comp.RequiredFlags,
			},
			Filter: filter,
		})
	}

	return result, nil
}

// runMergeTrain processes all components sequentially and reports whether
// all runs succeeded.
func runMergeTrain(ctx context.Context, config *cfg.Config, retryer *retry.Retryer, notifier *slack.Notifier) bool {
	clt, err := pagureclt.New(config.PagureBaseURL, config.PagureAPIToken)
	exitOnErr("could not create pagure client", err)

	components, err := mergeComponents(config)
	exitOnErr("could not parse components from configuration file", err)

	train := mergetrain.New(clt, retryer, config.BotAuthor)

	ok := true

	for _, comp := range components {
		stat, err := train.Run(ctx, comp)
		if err != nil {
			logger.Error(
				"merge train run failed",
				logfields.Event("merge_train_run_failed"),
				logfields.Component(comp.Name),
				zap.Error(err),
			)

			ok = false

			continue
		}

		logger.Info(
			"merge train run finished",
			append([]zap.Field{
				logfields.Event("merge_train_run_finished"),
				logfields.Component(comp.Name),
			}, stat.LogFields()...)...,
		)

		if stat.Merged > 0 {
			notifier.Notify(ctx, fmt.Sprintf(
				"%s: merged %d pull request(s) :tada:", comp.Name, stat.Merged,
			))
		}

		if stat.Failures > 0 {
			ok = false
		}
	}

	return ok
}

// distGitCloner adapts distgit.DistGit to the updates.Cloner interface.
type distGitCloner struct {
	dg *distgit.DistGit
}

func (c *distGitCloner) Clone(ctx context.Context, component string) (updates.WorkingCopy, error) {
	wc, err := c.dg.Clone(ctx, component)
	if err != nil {
		return nil, err
	}

	return wc, nil
}

// runUpdates detects missing updates for all components and publishes them.
// It reports whether all runs succeeded.
func runUpdates(ctx context.Context, config *cfg.Config, retryer *retry.Retryer, notifier *slack.Notifier) bool {
	runner := cmdexec.NewRunner()

	bodhiClt, err := bodhi.New(bodhi.DefaultBaseURL, runner)
	exitOnErr("could not create bodhi client", err)

	var releases []string

	err = retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		releases, err = bodhiClt.ActiveReleases(ctx)
		return err
	}, []zap.Field{logfields.Event("bodhi_active_releases")})
	if err != nil {
		logger.Error(
			"could not retrieve active releases from bodhi",
			logfields.Event("bodhi_active_releases_failed"),
			zap.Error(err),
		)

		return false
	}

	workDir, err := os.MkdirTemp("", appName+"-*")
	exitOnErr("could not create work directory", err)

	defer os.RemoveAll(workDir)

	manager := updates.NewManager(
		&distGitCloner{dg: distgit.New(runner, config.PagureBaseURL, workDir)},
		koji.New(runner),
		bodhiClt,
		fedpkg.New(runner),
		notifier,
	)

	ok := true

	for _, comp := range config.Components {
		stat, err := manager.Run(ctx, comp.Name, comp.RPMRelease, releases)
		if err != nil {
			logger.Error(
				"update detection run failed",
				logfields.Event("updates_run_failed"),
				logfields.Component(comp.Name),
				zap.Error(err),
			)

			ok = false

			continue
		}

		logger.Info(
			"update detection run finished",
			logfields.Event("updates_run_finished"),
			logfields.Component(comp.Name),
			logfields.Version(stat.Version),
			zap.Strings("missing", stat.Missing),
			zap.Uint("published", stat.Published),
			zap.Uint("failures", stat.Failures),
		)

		if stat.Failures > 0 {
			ok = false
		}
	}

	return ok
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("pagure_base_url", config.PagureBaseURL),
		zap.String("pagure_api_token", hide(config.PagureAPIToken)),
		zap.String("bot_author", config.BotAuthor),
		zap.String("slack_webhook_url", hide(config.SlackWebhookURL)),
		zap.String("fedora_user", config.FedoraUser),
		zap.String("fedora_password", hide(config.FedoraPassword)),
		zap.String("metrics_listen_addr", config.MetricsListenAddr),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Int("components", len(config.Components)),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	if config.MetricsListenAddr != "" {
		startMetricsServer(config.MetricsListenAddr)
	}

	retryer := retry.NewRetryer()
	goodbye.Register(func(context.Context, os.Signal) { retryer.Stop() })

	notifier := slack.NewNotifier(config.SlackWebhookURL, appName)

	ctx := context.Background()
	ok := true

	if config.PagureAPIToken != "" {
		ok = runMergeTrain(ctx, config, retryer, notifier) && ok
	} else {
		logger.Info(
			"pagure_api_token is unset, skipping the merge train",
			logfields.Event("merge_train_skipped"),
		)
	}

	if config.FedoraUser != "" && config.FedoraPassword != "" {
		ok = runUpdates(ctx, config, retryer, notifier) && ok
	} else {
		logger.Info(
			"fedora_user or fedora_password is unset, skipping update publishing",
			logfields.Event("updates_skipped"),
		)
	}

	if !ok {
		goodbye.Exit(ctx, 1)
	}

	goodbye.Exit(ctx, 0)
}
