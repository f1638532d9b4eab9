package manager

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/STRATINT/insights/internal/models"
	"github.com/STRATINT/insights/internal/scoring"
)

// CloseTimer computes an insight's close time from its generated time.
type CloseTimer interface {
	CloseTime(symbol models.Symbol, generatedUTC time.Time, period time.Duration) time.Time
}

// CloseTimerFunc adapts a function to CloseTimer.
type CloseTimerFunc func(symbol models.Symbol, generatedUTC time.Time, period time.Duration) time.Time

func (f CloseTimerFunc) CloseTime(symbol models.Symbol, generatedUTC time.Time, period time.Duration) time.Time {
	return f(symbol, generatedUTC, period)
}

// NaiveCloseTime adds the period to the generated time.
var NaiveCloseTime = CloseTimerFunc(func(_ models.Symbol, generatedUTC time.Time, period time.Duration) time.Time {
	return generatedUTC.Add(period)
})

// Recorder receives insight lifecycle notifications.
type Recorder interface {
	Generated(insight *models.Insight)
	Closed(insight *models.Insight)
}

// ReferenceFunc returns the current value of the quantity an insight on
// symbol predicts.
type ReferenceFunc func(symbol models.Symbol) (decimal.Decimal, bool)

// Config holds manager settings.
type Config struct {
	SourceModel string     // assigned to insights that have none
	CloseTimer  CloseTimer // defaults to NaiveCloseTime
}

// Manager plays the hosting framework for insights: it assigns the
// framework-owned fields when insights are generated, keeps them open while
// they are scored and releases them once their score is final.
type Manager struct {
	config   Config
	scorer   *scoring.Scorer
	recorder Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	open map[uuid.UUID]*models.Insight
}

// New creates a manager. recorder may be nil.
func New(config Config, scorer *scoring.Scorer, recorder Recorder, logger *slog.Logger) *Manager {
	if config.CloseTimer == nil {
		config.CloseTimer = NaiveCloseTime
	}
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = scoring.NewScorer(logger)
	}
	return &Manager{
		config:   config,
		scorer:   scorer,
		recorder: recorder,
		logger:   logger,
		open:     make(map[uuid.UUID]*models.Insight),
	}
}

// Generated assigns generated time, close time, source model and reference
// value to each insight and starts tracking it. Times already set, as on
// insights built with models.NewTimedInsight, are kept. An insight whose id is
// already tracked, such as a clone, is assigned its fields but not tracked or
// recorded again; it shares the tracked insight's score.
func (m *Manager) Generated(ctx context.Context, utc time.Time, reference ReferenceFunc, insights ...*models.Insight) error {
	for _, insight := range insights {
		if err := ctx.Err(); err != nil {
			return err
		}

		assigner := models.AssignerFor(insight)

		if err := assigner.SetGeneratedTimeUTC(utc); err != nil && !errors.Is(err, models.ErrFieldAssigned) {
			return err
		}
		closeTime := m.config.CloseTimer.CloseTime(insight.Symbol(), insight.GeneratedTimeUTC(), insight.Period())
		if err := assigner.SetCloseTimeUTC(closeTime); err != nil && !errors.Is(err, models.ErrFieldAssigned) {
			return err
		}

		if insight.SourceModel() == "" && m.config.SourceModel != "" {
			assigner.SetSourceModel(m.config.SourceModel)
		}

		if reference != nil {
			if value, ok := reference(insight.Symbol()); ok {
				assigner.SetReferenceValue(value)
			} else {
				m.logger.Warn("no reference value for insight", "insight_id", insight.ID(), "symbol", insight.Symbol().String())
			}
		}

		m.mu.Lock()
		_, tracked := m.open[insight.ID()]
		if !tracked {
			m.open[insight.ID()] = insight
		}
		m.mu.Unlock()

		if tracked {
			m.logger.Warn("insight already tracked", "insight_id", insight.ID())
			continue
		}

		if m.recorder != nil {
			m.recorder.Generated(insight)
		}

		m.logger.Info("insight generated",
			"insight_id", insight.ID(),
			"symbol", insight.Symbol().String(),
			"type", insight.Type(),
			"direction", insight.Direction().String(),
			"close_time", insight.CloseTimeUTC(),
		)
	}

	return nil
}

// Step scores every open insight that has a value in prices, refreshes its
// estimated value and returns the insights whose score became final. Those
// insights are no longer tracked.
func (m *Manager) Step(ctx context.Context, utc time.Time, prices map[models.Symbol]decimal.Decimal) ([]*models.Insight, error) {
	var closed []*models.Insight

	for _, insight := range m.Open() {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		current, ok := prices[insight.Symbol()]
		if !ok {
			continue
		}

		final := m.scorer.Score(insight, current, utc)
		models.AssignerFor(insight).SetEstimatedValue(scoring.EstimatedValue(insight, current))

		if !final {
			continue
		}

		m.mu.Lock()
		delete(m.open, insight.ID())
		m.mu.Unlock()

		if m.recorder != nil {
			m.recorder.Closed(insight)
		}
		m.logger.Info("insight closed",
			"insight_id", insight.ID(),
			"direction_score", insight.Score().Direction,
			"magnitude_score", insight.Score().Magnitude,
			"estimated_value", insight.EstimatedValue().String(),
		)
		closed = append(closed, insight)
	}

	return closed, nil
}

// Open returns the tracked insights ordered by generated time, then id.
func (m *Manager) Open() []*models.Insight {
	m.mu.Lock()
	insights := make([]*models.Insight, 0, len(m.open))
	for _, insight := range m.open {
		insights = append(insights, insight)
	}
	m.mu.Unlock()

	sort.Slice(insights, func(i, j int) bool {
		a, b := insights[i], insights[j]
		if !a.GeneratedTimeUTC().Equal(b.GeneratedTimeUTC()) {
			return a.GeneratedTimeUTC().Before(b.GeneratedTimeUTC())
		}
		return a.ID().String() < b.ID().String()
	})
	return insights
}
