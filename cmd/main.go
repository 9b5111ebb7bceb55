package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

// Version will be set at build time
var Version = "development"

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	// Create context that will be canceled on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{
		Name:    "ll-opinit-bots",
		Usage:   "executor, challenger and output submitter for an opinit bridge",
		Version: Version,
		Flags:   globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "executor",
				Usage:  "finalize deposits on L2 and cut outputs from L2 withdrawals",
				Flags:  executorFlags,
				Action: runExecutor,
			},
			{
				Name:   "challenger",
				Usage:  "record L1 deposits and withdrawal finalizations",
				Flags:  challengerFlags,
				Action: runChallenger,
			},
			{
				Name:   "output-submitter",
				Usage:  "propose cut outputs to the L1 bridge",
				Flags:  outputSubmitterFlags,
				Action: runOutputSubmitter,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

// loadEnv loads .env, or .env.<WORKER_NAME> when WORKER_NAME is set. A
// missing file is not an error, real environment variables still apply.
func loadEnv() error {
	file := ".env"
	if name := os.Getenv("WORKER_NAME"); name != "" {
		file = ".env." + name
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// newLogger builds the root logger and sets it as the slog default.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
	slog.SetDefault(logger)

	logger.Info("Starting ll-opinit-bots ("+Version+")",
		"Go Version", runtime.Version(),
		"Operating System", runtime.GOOS,
		"Architecture", runtime.GOARCH)

	return logger, nil
}
