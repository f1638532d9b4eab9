package serialization

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/STRATINT/insights/internal/models"
)

// ErrInvalidInsight is returned when transport data cannot describe an insight.
var ErrInvalidInsight = errors.New("invalid serialized insight")

// SerializedInsight is the transport representation of an insight.
// Times are unix seconds (0 when unset) and the period is in seconds. An
// unassigned reference value is null.
type SerializedInsight struct {
	ID               string              `json:"id"` // 32 hex digits, no dashes
	SourceModel      string              `json:"source-model,omitempty"`
	GeneratedTime    float64             `json:"generated-time"`
	CloseTime        float64             `json:"close-time"`
	Symbol           string              `json:"symbol"`
	Ticker           string              `json:"ticker"`
	Market           string              `json:"market"`
	SecurityType     models.SecurityType `json:"security-type"`
	Type             models.InsightType  `json:"type"`
	Direction        int                 `json:"direction"`
	Period           float64             `json:"period"`
	Magnitude        *float64            `json:"magnitude"`
	Confidence       *float64            `json:"confidence"`
	ReferenceValue   decimal.NullDecimal `json:"reference-value"`
	EstimatedValue   decimal.Decimal     `json:"estimated-value"`
	ScoreIsFinal     bool                `json:"score-final"`
	ScoreDirection   float64             `json:"score-direction"`
	ScoreMagnitude   float64             `json:"score-magnitude"`
	ScoreUpdatedTime float64             `json:"score-updated-time"`
}

// FromInsight builds the transport representation, including current score contents.
func FromInsight(insight *models.Insight) SerializedInsight {
	s := insight.Snapshot()
	return SerializedInsight{
		ID:               hexID(s.ID),
		SourceModel:      s.SourceModel,
		GeneratedTime:    toUnixSeconds(s.GeneratedTimeUTC),
		CloseTime:        toUnixSeconds(s.CloseTimeUTC),
		Symbol:           s.Symbol.ID(),
		Ticker:           s.Symbol.Value,
		Market:           s.Symbol.Market,
		SecurityType:     s.Symbol.SecurityType,
		Type:             s.Type,
		Direction:        int(s.Direction),
		Period:           s.Period.Seconds(),
		Magnitude:        s.Magnitude,
		Confidence:       s.Confidence,
		ReferenceValue:   decimal.NullDecimal{Decimal: s.ReferenceValue, Valid: s.HasReference},
		EstimatedValue:   s.EstimatedValue,
		ScoreIsFinal:     s.Score.IsFinal,
		ScoreDirection:   s.Score.Direction,
		ScoreMagnitude:   s.Score.Magnitude,
		ScoreUpdatedTime: toUnixSeconds(s.Score.UpdatedTimeUTC),
	}
}

// ToInsight rebuilds an insight carrying the serialized id and field values.
func (s SerializedInsight) ToInsight() (*models.Insight, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id %q: %v", ErrInvalidInsight, s.ID, err)
	}

	switch s.Type {
	case models.InsightTypePrice, models.InsightTypeVolatility:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInsight, s.Type)
	}

	if s.Direction < -1 || s.Direction > 1 {
		return nil, fmt.Errorf("%w: direction %d out of range", ErrInvalidInsight, s.Direction)
	}

	securityType := s.SecurityType
	if securityType == "" {
		securityType = models.SecurityTypeEquity
	}

	return models.RestoreInsight(models.InsightSnapshot{
		ID:               id,
		GeneratedTimeUTC: fromUnixSeconds(s.GeneratedTime),
		CloseTimeUTC:     fromUnixSeconds(s.CloseTime),
		Symbol: models.Symbol{
			Value:        s.Ticker,
			Market:       s.Market,
			SecurityType: securityType,
		},
		Type:           s.Type,
		ReferenceValue: s.ReferenceValue.Decimal,
		HasReference:   s.ReferenceValue.Valid,
		Direction:      models.InsightDirection(s.Direction),
		Period:         time.Duration(math.Round(s.Period * float64(time.Second))),
		Magnitude:      s.Magnitude,
		Confidence:     s.Confidence,
		EstimatedValue: s.EstimatedValue,
		SourceModel:    s.SourceModel,
		Score: models.InsightScore{
			Direction:      s.ScoreDirection,
			Magnitude:      s.ScoreMagnitude,
			IsFinal:        s.ScoreIsFinal,
			UpdatedTimeUTC: fromUnixSeconds(s.ScoreUpdatedTime),
		},
	}), nil
}

// Marshal encodes insights as a JSON array.
func Marshal(insights ...*models.Insight) ([]byte, error) {
	serialized := make([]SerializedInsight, 0, len(insights))
	for _, insight := range insights {
		serialized = append(serialized, FromInsight(insight))
	}

	data, err := json.Marshal(serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insights: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON array produced by Marshal.
func Unmarshal(data []byte) ([]*models.Insight, error) {
	var serialized []SerializedInsight
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, fmt.Errorf("failed to unmarshal insights: %w", err)
	}

	insights := make([]*models.Insight, 0, len(serialized))
	for idx, s := range serialized {
		insight, err := s.ToInsight()
		if err != nil {
			return nil, fmt.Errorf("insight %d: %w", idx, err)
		}
		insights = append(insights, insight)
	}
	return insights, nil
}

func hexID(id uuid.UUID) string {
	return fmt.Sprintf("%x", id[:])
}

func toUnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromUnixSeconds is precise to the microsecond.
func fromUnixSeconds(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	micros := int64(math.Round(seconds * 1e6))
	return time.UnixMicro(micros).UTC()
}
