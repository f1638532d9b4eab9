package scoring

import (
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/STRATINT/insights/internal/models"
)

// epsilon keeps the magnitude score finite for tiny predicted moves.
const epsilon = 1e-9

var hundred = decimal.NewFromInt(100)

// Scorer updates insight scores in place as observed values arrive.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a scorer. A nil logger uses slog.Default().
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Score compares current against the insight's reference value and updates
// its Score. The score is finalized once utc reaches the close time. It
// reports whether the score is final after the update.
//
// Insights without a reference value are not scored but are still finalized
// at close. The magnitude score needs a non-zero reference.
func (s *Scorer) Score(insight *models.Insight, current decimal.Decimal, utc time.Time) bool {
	score := insight.Score()
	if score.IsFinal {
		return true
	}

	if insight.HasReferenceValue() {
		reference := insight.ReferenceValue()
		change := current.Sub(reference)
		directionScore := 0.0
		if change.Sign() == int(insight.Direction()) {
			directionScore = 1
		}
		score.SetScore(models.ScoreTypeDirection, directionScore, utc)

		if predicted := insight.Magnitude(); predicted != nil && !reference.IsZero() {
			observed, _ := change.Div(reference).Mul(hundred).Float64()
			score.SetScore(models.ScoreTypeMagnitude, MagnitudeScore(*predicted, observed), utc)
		}
	} else {
		s.logger.Debug("insight has no reference value, not scoring", "insight_id", insight.ID())
	}

	closeTime := insight.CloseTimeUTC()
	if !closeTime.IsZero() && !utc.Before(closeTime) {
		score.Finalize(utc)
		s.logger.Debug("insight score finalized",
			"insight_id", insight.ID(),
			"symbol", insight.Symbol().String(),
			"direction_score", score.Direction,
			"magnitude_score", score.Magnitude,
		)
	}

	return score.IsFinal
}

// MagnitudeScore rates how close the observed percent change came to the
// predicted one, in [0, 1]. A zero prediction scores 1 only for an exactly
// zero observed change.
func MagnitudeScore(predicted, observed float64) float64 {
	if predicted == 0 {
		if observed == 0 {
			return 1
		}
		return 0
	}

	miss := math.Abs(observed-predicted) / math.Max(math.Abs(predicted), epsilon)
	return math.Max(0, 1-miss)
}

// EstimatedValue is the per-unit value of acting on the insight: the
// observed move signed by the predicted direction. Flat insights, and
// insights without a reference value, are worth nothing.
func EstimatedValue(insight *models.Insight, current decimal.Decimal) decimal.Decimal {
	if !insight.HasReferenceValue() {
		return decimal.Zero
	}
	change := current.Sub(insight.ReferenceValue())
	return change.Mul(decimal.NewFromInt(int64(insight.Direction())))
}
