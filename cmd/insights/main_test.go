package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/STRATINT/insights/internal/config"
	"github.com/STRATINT/insights/internal/serialization"
)

func testConfig() config.Config {
	return config.Config{
		Insights: config.InsightConfig{SourceModel: "cli", DefaultPeriod: time.Hour},
		Metrics:  config.MetricsConfig{Namespace: "insights_test"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPrintsGeneratedInsight(t *testing.T) {
	var out bytes.Buffer
	args := []string{"-symbol", "AAPL", "-magnitude", "-2.5", "-confidence", "0.861", "-reference", "190.10", "-at", "2024-03-06T14:00:00Z"}

	if err := run(context.Background(), testConfig(), discardLogger(), args, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	insights, err := serialization.Unmarshal(out.Bytes())
	if err != nil {
		t.Fatalf("output is not a serialized insight list: %v\n%s", err, out.String())
	}
	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}

	insight := insights[0]
	if insight.Symbol().Value != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", insight.Symbol().Value)
	}
	if insight.Direction().String() != "down" {
		t.Errorf("direction = %v, want down", insight.Direction())
	}
	if insight.SourceModel() != "cli" {
		t.Errorf("source model = %q, want cli", insight.SourceModel())
	}
	want := time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)
	if !insight.CloseTimeUTC().Equal(want) {
		t.Errorf("close time = %v, want %v", insight.CloseTimeUTC(), want)
	}
	if !strings.HasSuffix(insight.String(), "by -2.5% with 86.1% confidence") {
		t.Errorf("unexpected description %q", insight.String())
	}
}

func TestRunScoresObservedPriceAndWritesMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.File = filepath.Join(t.TempDir(), "insights.prom")

	var out bytes.Buffer
	args := []string{"-magnitude", "1", "-period", "30m", "-reference", "100", "-observed", "101", "-at", "2024-03-06T14:00:00Z"}
	if err := run(context.Background(), cfg, discardLogger(), args, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	insights, err := serialization.Unmarshal(out.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	score := insights[0].Score()
	if !score.IsFinal || score.Direction != 1 || score.Magnitude != 1 {
		t.Errorf("score = %v, want final direction 1 magnitude 1", score)
	}
	if got := insights[0].EstimatedValue().String(); got != "1" {
		t.Errorf("estimated value = %s, want 1", got)
	}

	data, err := os.ReadFile(cfg.Metrics.File)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "insights_test_closed_total") {
		t.Errorf("metrics file missing closed counter:\n%s", data)
	}
}

func TestRunUsesCalendarFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	calendarYAML := "markets:\n  usa:\n    schedule: \"0 * 9-15 * * 1-5\"\n    resolution: 1m\n"
	if err := os.WriteFile(path, []byte(calendarYAML), 0o600); err != nil {
		t.Fatalf("failed to write calendar: %v", err)
	}

	cfg := testConfig()
	cfg.Insights.CalendarFile = path

	var out bytes.Buffer
	args := []string{"-magnitude", "1", "-at", "2024-03-08T15:30:00Z"}
	if err := run(context.Background(), cfg, discardLogger(), args, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	insights, err := serialization.Unmarshal(out.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	want := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	if !insights[0].CloseTimeUTC().Equal(want) {
		t.Errorf("close time = %v, want %v", insights[0].CloseTimeUTC(), want)
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	tests := map[string][]string{
		"bad time":      {"-at", "yesterday"},
		"bad reference": {"-reference", "abc"},
		"bad observed":  {"-reference", "1", "-observed", "x"},
		"unknown flag":  {"-nope"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), testConfig(), discardLogger(), args, &out); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}
