package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/STRATINT/insights/internal/models"
)

func TestInsightCollectorRecordsLifecycle(t *testing.T) {
	collector, err := NewInsightCollector("")
	if err != nil {
		t.Fatalf("NewInsightCollector returned error: %v", err)
	}

	up := models.PriceMagnitude(models.NewSymbol("SPY", "usa"), 1.5, time.Hour, nil)
	down := models.PriceMagnitude(models.NewSymbol("QQQ", "usa"), -0.5, time.Hour, nil)

	collector.Generated(up)
	collector.Generated(down)
	collector.Generated(models.PriceMagnitude(models.NewSymbol("IWM", "usa"), 2, time.Hour, nil))

	if got := testutil.ToFloat64(collector.generated.WithLabelValues("price", "up")); got != 2 {
		t.Errorf("generated{price,up} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.open); got != 3 {
		t.Errorf("open = %v, want 3", got)
	}

	up.Score().SetScore(models.ScoreTypeDirection, 1, time.Now())
	up.Score().Finalize(time.Now())
	collector.Closed(up)

	if got := testutil.ToFloat64(collector.closed.WithLabelValues("price")); got != 1 {
		t.Errorf("closed{price} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.open); got != 2 {
		t.Errorf("open = %v, want 2", got)
	}

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `insights_generated_total{direction="down",type="price"} 1`) {
		t.Fatalf("generated_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `insights_score_count{score_type="direction"} 1`) {
		t.Fatalf("score histogram not recorded, body=%q", body)
	}
}

func TestInsightCollectorNamespace(t *testing.T) {
	collector, err := NewInsightCollector("alpha")
	if err != nil {
		t.Fatalf("NewInsightCollector returned error: %v", err)
	}
	collector.Generated(models.NewInsight(models.NewSymbol("SPY", "usa"), models.InsightTypeVolatility, models.InsightDirectionFlat, time.Hour))

	path := filepath.Join(t.TempDir(), "insights.prom")
	if err := collector.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metrics file: %v", err)
	}
	if !strings.Contains(string(data), `alpha_generated_total{direction="flat",type="volatility"} 1`) {
		t.Fatalf("namespaced metric missing, file=%q", data)
	}
}
