// Command sync runs one weekly stats sync cycle and prints the outcome as
// JSON. It exits non-zero when the cycle fails, which makes it usable from
// plain cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/raceweek-stats/internal/app"
	"github.com/riskibarqy/raceweek-stats/internal/config"
	"github.com/riskibarqy/raceweek-stats/internal/observability"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

type output struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	input, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		return emit(output{Error: err.Error()})
	}

	// Stdout carries only the result line.
	logger := logging.NewJSONWriter(os.Stderr, cfg.LogLevel, cfg.ServiceName+"-sync")
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := observability.Start(cfg, logger, observability.Options{Component: "sync"})
	if err != nil {
		return emit(output{Error: err.Error()})
	}
	defer func() { _ = stack.Shutdown(context.Background()) }()

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return emit(output{Error: err.Error()})
	}
	defer func() { _ = container.Close() }()

	result := container.Orchestrator.Run(ctx, input)
	return emit(output{Success: result.Success, Error: result.Error})
}

func emit(out output) int {
	payload, err := sonic.Marshal(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintln(os.Stdout, string(payload))
	if !out.Success {
		return 1
	}
	return 0
}

func parseFlags(args []string) (usecase.SyncInput, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	year := fs.Int("season-year", -1, "season year override")
	quarter := fs.Int("season-quarter", -1, "season quarter override (1-4)")
	week := fs.Int("race-week", -1, "race week override")
	eventTypes := fs.String("event-types", "", "comma separated event types")
	seriesIDs := fs.String("series-ids", "", "comma separated series ids, switches to all-series mode")
	force := fs.Bool("force", false, "ignore cache freshness")
	if err := fs.Parse(args); err != nil {
		return usecase.SyncInput{}, err
	}

	input := usecase.SyncInput{Force: *force}
	if *year >= 0 {
		input.Year = year
	}
	if *quarter >= 0 {
		input.Quarter = quarter
	}
	if *week >= 0 {
		input.RaceWeek = week
	}

	types, err := parseIntList(*eventTypes, 32)
	if err != nil {
		return usecase.SyncInput{}, fmt.Errorf("event-types: %w", err)
	}
	for _, v := range types {
		input.EventTypes = append(input.EventTypes, int(v))
	}
	if input.SeriesIDs, err = parseIntList(*seriesIDs, 64); err != nil {
		return usecase.SyncInput{}, fmt.Errorf("series-ids: %w", err)
	}
	return input, nil
}

func parseIntList(raw string, bits int) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.ParseInt(part, 10, bits)
		if err != nil {
			return nil, err
		}
		if value <= 0 {
			return nil, fmt.Errorf("value must be > 0, got %d", value)
		}
		out = append(out, value)
	}
	return out, nil
}
