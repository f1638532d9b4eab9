package models

import (
	"fmt"
	"math"
	"time"
)

// ScoreType names one of the scores tracked for an insight.
type ScoreType string

const (
	ScoreTypeDirection ScoreType = "direction" // 1 when the predicted sign was observed
	ScoreTypeMagnitude ScoreType = "magnitude" // closeness of observed to predicted change
)

// InsightScore holds the quality scores computed for an insight's outcome.
// It is updated in place by a scoring collaborator and carries no locking;
// callers sharing one score (see Insight.Clone) serialize their writes.
type InsightScore struct {
	Direction      float64
	Magnitude      float64
	IsFinal        bool
	UpdatedTimeUTC time.Time
}

// NewInsightScore returns an empty, non-final score.
func NewInsightScore() *InsightScore {
	return &InsightScore{}
}

// SetScore records value for the given score type, clamped to [0, 1].
// Updates are ignored once the score has been finalized.
func (s *InsightScore) SetScore(scoreType ScoreType, value float64, utc time.Time) {
	if s.IsFinal {
		return
	}

	value = math.Max(0, math.Min(1, value))

	switch scoreType {
	case ScoreTypeDirection:
		s.Direction = value
	case ScoreTypeMagnitude:
		s.Magnitude = value
	default:
		return
	}
	s.UpdatedTimeUTC = utc
}

// GetScore returns the current value for the given score type.
func (s *InsightScore) GetScore(scoreType ScoreType) float64 {
	switch scoreType {
	case ScoreTypeDirection:
		return s.Direction
	case ScoreTypeMagnitude:
		return s.Magnitude
	default:
		return 0
	}
}

// Finalize marks the score as final; later SetScore calls are no-ops.
func (s *InsightScore) Finalize(utc time.Time) {
	s.IsFinal = true
	s.UpdatedTimeUTC = utc
}

func (s *InsightScore) String() string {
	return fmt.Sprintf("Direction: %.4f Magnitude: %.4f Final: %t", s.Direction, s.Magnitude, s.IsFinal)
}
