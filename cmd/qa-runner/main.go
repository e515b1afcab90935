// Command qa-runner drives the chat storage engine's scenario library
// against a real SQLite database, writes each scenario's key=value lines
// to stdout for CI consumption, and prints a colored PASS/FAIL line to
// stderr.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nstogner/chatvault/pkg/qa"
)

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	defaultDB := os.Getenv("CHATVAULT_DB")
	if defaultDB == "" {
		defaultDB = filepath.Join(".", "data", "chatvault-qa.db")
	}

	var (
		dbPath   = pflag.String("db", defaultDB, "path to the SQLite database file")
		scenario = pflag.String("scenario", "all", "scenario name to run, or \"all\"")
	)
	pflag.Parse()

	os.Exit(run(*dbPath, *scenario))
}

func run(dbPath, scenario string) int {
	env, err := qa.OpenEnv(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err, "db", dbPath)
		return 1
	}
	defer env.Close()

	rep := qa.NewReporter(os.Stdout)
	ctx := context.Background()

	var runErr error
	if scenario == "all" {
		runErr = qa.RunAll(ctx, env, rep)
	} else {
		sc, ok := qa.Lookup(scenario)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown scenario %q\n", scenario)
			return 1
		}
		runErr = sc.Run(ctx, env, rep)
	}

	if runErr != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "FAIL")
		fmt.Fprintf(os.Stderr, " %s: %v\n", scenario, runErr)
		return 1
	}

	color.New(color.FgGreen, color.Bold).Fprintf(os.Stderr, "PASS")
	fmt.Fprintf(os.Stderr, " %s\n", scenario)
	return 0
}
