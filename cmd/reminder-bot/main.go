package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/osbuild/fedora-bot/internal/logfields"
	"github.com/osbuild/fedora-bot/internal/reminder"
	"github.com/osbuild/fedora-bot/internal/slack"
)

const appName = "reminder-bot"

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

type arguments struct {
	Verbose     *bool
	ShowVersion *bool

	CalendarDir *string
	Components  *[]string
	NicksFile   *string

	PlanYear *int
	Monthly  *bool
}

var args arguments

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
		CalendarDir: pflag.StringP(
			"calendar-dir",
			"d",
			".",
			"directory containing the yearly release plan files",
		),
		Components: pflag.StringSliceP(
			"components",
			"c",
			[]string{"osbuild", "osbuild-composer"},
			"components the release calendar covers",
		),
		NicksFile: pflag.StringP(
			"nicks-file",
			"n",
			"",
			"path to a YAML file mapping real names to chat user ids",
		),
		PlanYear: pflag.Int(
			"year",
			0,
			"create the release plan files for the given year and exit",
		),
		Monthly: pflag.Bool(
			"monthly",
			false,
			"send the monthly release overview instead of the due reminders",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nSend chat reminders for scheduled component releases.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustInitLogger() {
	logLevel := zapcore.InfoLevel
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.LevelKey = "loglevel"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	logger = zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	).Named("main")

	zap.ReplaceGlobals(logger)
}

func main() {
	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0)
	}

	mustInitLogger()
	defer func() { _ = logger.Sync() }()

	if *args.PlanYear != 0 {
		err := reminder.WritePlan(*args.CalendarDir, *args.Components, *args.PlanYear)
		exitOnErr("could not write release plan files", err)

		logger.Info(
			"release plan files written",
			logfields.Event("release_plan_written"),
			zap.Int("year", *args.PlanYear),
			zap.Strings("components", *args.Components),
		)

		return
	}

	nicks, err := reminder.LoadNicks(*args.NicksFile)
	exitOnErr("could not load nicks file", err)

	notifier := slack.NewNotifier(os.Getenv("SLACK_WEBHOOK_URL"), appName)
	bot := reminder.New(*args.CalendarDir, *args.Components, nicks, notifier)

	ctx := context.Background()
	today := time.Now()

	if *args.Monthly {
		err := bot.MonthlyOverview(ctx, today)
		exitOnErr("could not send the monthly overview", err)

		return
	}

	err = bot.RemindUpcoming(ctx, today)
	exitOnErr("could not send release reminders", err)
}
