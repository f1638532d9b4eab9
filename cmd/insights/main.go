package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/STRATINT/insights/internal/calendar"
	"github.com/STRATINT/insights/internal/config"
	"github.com/STRATINT/insights/internal/logging"
	"github.com/STRATINT/insights/internal/manager"
	"github.com/STRATINT/insights/internal/metrics"
	"github.com/STRATINT/insights/internal/models"
	"github.com/STRATINT/insights/internal/scoring"
	"github.com/STRATINT/insights/internal/serialization"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}
	if envErr != nil {
		logger.Debug(".env file not loaded, relying on actual environment variables", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		logger.Error("insights failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	ticker := fs.String("symbol", "SPY", "instrument ticker")
	market := fs.String("market", "usa", "instrument market")
	magnitude := fs.Float64("magnitude", 0, "predicted percent change; its sign sets the direction")
	period := fs.Duration("period", cfg.Insights.DefaultPeriod, "prediction horizon")
	confidence := fs.Float64("confidence", -1, "confidence in [0,1]; negative leaves it unset")
	reference := fs.String("reference", "", "reference price at generation")
	observed := fs.String("observed", "", "observed price at close; scores the insight when set")
	at := fs.String("at", "", "generation time (RFC3339), defaults to now")
	if err := fs.Parse(args); err != nil {
		return err
	}

	generatedAt := time.Now().UTC()
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		generatedAt = t
	}

	closeTimer := manager.CloseTimer(manager.NaiveCloseTime)
	if cfg.Insights.CalendarFile != "" {
		cal, err := calendar.LoadFile(cfg.Insights.CalendarFile)
		if err != nil {
			return err
		}
		closeTimer = cal
		logger.Info("market calendar loaded", "file", cfg.Insights.CalendarFile)
	}

	collector, err := metrics.NewInsightCollector(cfg.Metrics.Namespace)
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	mgr := manager.New(manager.Config{
		SourceModel: cfg.Insights.SourceModel,
		CloseTimer:  closeTimer,
	}, scoring.NewScorer(logger), collector, logger)

	var conf *float64
	if *confidence >= 0 {
		conf = confidence
	}
	symbol := models.NewSymbol(*ticker, *market)
	insight := models.PriceMagnitude(symbol, *magnitude, *period, conf)

	var referenceFn manager.ReferenceFunc
	if *reference != "" {
		value, err := decimal.NewFromString(*reference)
		if err != nil {
			return fmt.Errorf("invalid -reference: %w", err)
		}
		referenceFn = func(models.Symbol) (decimal.Decimal, bool) { return value, true }
	}

	if err := mgr.Generated(ctx, generatedAt, referenceFn, insight); err != nil {
		return err
	}
	logger.Debug("insight", "description", insight.String())

	if *observed != "" {
		value, err := decimal.NewFromString(*observed)
		if err != nil {
			return fmt.Errorf("invalid -observed: %w", err)
		}
		if _, err := mgr.Step(ctx, insight.CloseTimeUTC(), map[models.Symbol]decimal.Decimal{symbol: value}); err != nil {
			return err
		}
	}

	data, err := serialization.Marshal(insight)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(stdout, string(data)); err != nil {
		return err
	}

	if cfg.Metrics.File != "" {
		if err := collector.WriteToTextfile(cfg.Metrics.File); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}
