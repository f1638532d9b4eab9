package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsightType is the quantity an insight predicts.
type InsightType string

const (
	InsightTypePrice      InsightType = "price"
	InsightTypeVolatility InsightType = "volatility"
)

// InsightDirection is the predicted sign of change.
type InsightDirection int

const (
	InsightDirectionDown InsightDirection = -1
	InsightDirectionFlat InsightDirection = 0
	InsightDirectionUp   InsightDirection = 1
)

func (d InsightDirection) String() string {
	switch d {
	case InsightDirectionDown:
		return "down"
	case InsightDirectionFlat:
		return "flat"
	case InsightDirectionUp:
		return "up"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// ErrFieldAssigned is returned when a set-once framework field is assigned twice.
var ErrFieldAssigned = errors.New("field already assigned")

// ErrZeroTime is returned when a framework time is assigned the zero time.
var ErrZeroTime = errors.New("zero time")

// Insight is a forecast about one instrument over one time window.
//
// Identity, symbol, type, direction, period, magnitude and confidence are fixed
// at construction. The hosting framework populates the generated/close times,
// reference value, estimated value and source model through FrameworkAssigner.
// The Score holder is mutated in place by a scoring collaborator.
type Insight struct {
	id             uuid.UUID
	generatedTime  time.Time
	closeTime      time.Time
	symbol         Symbol
	insightType    InsightType
	referenceValue decimal.Decimal
	hasReference   bool
	direction      InsightDirection
	period         time.Duration
	magnitude      *float64
	confidence     *float64
	estimatedValue decimal.Decimal
	sourceModel    string
	score          *InsightScore
}

// NewInsight creates an insight without magnitude or confidence.
func NewInsight(symbol Symbol, insightType InsightType, direction InsightDirection, period time.Duration) *Insight {
	return NewInsightWithValues(symbol, insightType, direction, period, nil, nil)
}

// NewInsightWithValues creates an insight with optional magnitude and confidence.
// Values are stored as given: out-of-range confidence and non-positive periods
// are accepted.
func NewInsightWithValues(symbol Symbol, insightType InsightType, direction InsightDirection, period time.Duration, magnitude, confidence *float64) *Insight {
	return &Insight{
		id:          uuid.New(),
		symbol:      symbol,
		insightType: insightType,
		direction:   direction,
		period:      period,
		magnitude:   copyFloat(magnitude),
		confidence:  copyFloat(confidence),
		score:       NewInsightScore(),
	}
}

// NewTimedInsight creates an insight whose generated time is known up front.
// The close time is generatedUTC + period. Intended for offline use; hosted
// insights get their times from the framework instead.
func NewTimedInsight(generatedUTC time.Time, symbol Symbol, insightType InsightType, direction InsightDirection, period time.Duration, magnitude, confidence *float64) *Insight {
	insight := NewInsightWithValues(symbol, insightType, direction, period, magnitude, confidence)
	insight.generatedTime = generatedUTC.UTC()
	insight.closeTime = insight.generatedTime.Add(period)
	return insight
}

// PriceMagnitude creates a price insight whose direction follows the sign of
// magnitude: positive is up, negative is down and exactly zero is flat.
func PriceMagnitude(symbol Symbol, magnitude float64, period time.Duration, confidence *float64) *Insight {
	direction := InsightDirectionFlat
	switch {
	case magnitude > 0:
		direction = InsightDirectionUp
	case magnitude < 0:
		direction = InsightDirectionDown
	}
	return NewInsightWithValues(symbol, InsightTypePrice, direction, period, &magnitude, confidence)
}

// Float returns a pointer to v, for passing optional magnitude and confidence.
func Float(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (i *Insight) ID() uuid.UUID { return i.id }
func (i *Insight) Symbol() Symbol { return i.symbol }
func (i *Insight) Type() InsightType { return i.insightType }
func (i *Insight) Direction() InsightDirection { return i.direction }
func (i *Insight) Period() time.Duration { return i.period }
func (i *Insight) GeneratedTimeUTC() time.Time { return i.generatedTime }
func (i *Insight) CloseTimeUTC() time.Time { return i.closeTime }
func (i *Insight) ReferenceValue() decimal.Decimal { return i.referenceValue }

// HasReferenceValue reports whether a reference value was assigned. A zero
// reference value is valid once assigned.
func (i *Insight) HasReferenceValue() bool { return i.hasReference }

func (i *Insight) EstimatedValue() decimal.Decimal { return i.estimatedValue }
func (i *Insight) SourceModel() string { return i.sourceModel }

// Magnitude returns the predicted percent change, or nil when absent.
// The returned pointer is a copy.
func (i *Insight) Magnitude() *float64 { return copyFloat(i.magnitude) }

// Confidence returns the predicted certainty, or nil when absent.
// The returned pointer is a copy.
func (i *Insight) Confidence() *float64 { return copyFloat(i.confidence) }

// Score returns the insight's score holder. It is never nil and is shared
// with every clone of this insight.
func (i *Insight) Score() *InsightScore { return i.score }

// IsActive reports whether utc falls before the close time. An insight
// without a close time is considered active.
func (i *Insight) IsActive(utc time.Time) bool {
	return i.closeTime.IsZero() || utc.Before(i.closeTime)
}

// Clone returns a copy with the same id and values. The scalar fields are
// independent, but the clone shares this insight's Score: score updates made
// through either insight are visible through both.
func (i *Insight) Clone() *Insight {
	clone := NewInsightWithValues(i.symbol, i.insightType, i.direction, i.period, i.magnitude, i.confidence)
	clone.generatedTime = i.generatedTime
	clone.closeTime = i.closeTime
	clone.id = i.id
	clone.referenceValue = i.referenceValue
	clone.hasReference = i.hasReference
	clone.estimatedValue = i.estimatedValue
	clone.sourceModel = i.sourceModel
	clone.score = i.score
	return clone
}

// Equals reports whether other is an *Insight describing the same prediction.
// Insights with the same id are always equal. Otherwise symbol, direction,
// type, confidence, magnitude and period must all match; times, reference
// and estimated values, source model and score are ignored.
func (i *Insight) Equals(other any) bool {
	o, ok := other.(*Insight)
	if !ok || o == nil || i == nil {
		return false
	}
	if i == o {
		return true
	}
	if i.id == o.id {
		return true
	}

	return i.symbol == o.symbol &&
		i.direction == o.direction &&
		i.insightType == o.insightType &&
		optionalEqual(i.confidence, o.confidence) &&
		optionalEqual(i.magnitude, o.magnitude) &&
		i.period == o.period
}

// InsightsEqual compares two possibly-nil insights: two nils are equal, a nil
// and a non-nil are not, otherwise Equals decides.
func InsightsEqual(a, b *Insight) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(b)
}

func optionalEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// HashCode combines symbol, type, direction, magnitude, confidence and period.
//
// The id is not included, so two insights that are equal only through their
// shared id usually hash differently. Structurally equal insights always hash
// the same.
func (i *Insight) HashCode() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(i.symbol.ID())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(string(i.insightType))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(i.direction)))
	_, _ = d.Write(buf[:])

	writeOptional(d, &buf, i.magnitude)
	writeOptional(d, &buf, i.confidence)

	binary.LittleEndian.PutUint64(buf[:], uint64(i.period))
	_, _ = d.Write(buf[:])

	return d.Sum64()
}

func writeOptional(d *xxhash.Digest, buf *[8]byte, v *float64) {
	if v == nil {
		_, _ = d.Write([]byte{0})
		return
	}
	_, _ = d.Write([]byte{1})
	value := *v
	if value == 0 {
		// -0 and +0 compare equal and must hash the same
		value = 0
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
	_, _ = d.Write(buf[:])
}

// String renders a one-line diagnostic description.
func (i *Insight) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %s %s within %s", i.id, i.symbol, i.insightType, i.direction, i.period)

	if i.magnitude != nil {
		b.WriteString(" by ")
		b.WriteString(strconv.FormatFloat(*i.magnitude, 'f', -1, 64))
		b.WriteString("%")
	}
	if i.confidence != nil {
		b.WriteString(" with ")
		b.WriteString(strconv.FormatFloat(math.Round(1000**i.confidence)/10, 'f', -1, 64))
		b.WriteString("% confidence")
	}

	return b.String()
}

// FrameworkAssigner is the privileged view the hosting framework uses to fill
// in framework-owned fields after construction. Generated and close times may
// be assigned once each, and never to the zero time.
type FrameworkAssigner interface {
	SetGeneratedTimeUTC(utc time.Time) error
	SetCloseTimeUTC(utc time.Time) error
	SetReferenceValue(value decimal.Decimal)
	SetEstimatedValue(value decimal.Decimal)
	SetSourceModel(name string)
}

// AssignerFor returns the framework assigner for insight.
func AssignerFor(insight *Insight) FrameworkAssigner {
	return frameworkAssigner{insight: insight}
}

type frameworkAssigner struct {
	insight *Insight
}

func (a frameworkAssigner) SetGeneratedTimeUTC(utc time.Time) error {
	if utc.IsZero() {
		return fmt.Errorf("generated time of insight %s: %w", a.insight.id, ErrZeroTime)
	}
	if !a.insight.generatedTime.IsZero() {
		return fmt.Errorf("generated time of insight %s: %w", a.insight.id, ErrFieldAssigned)
	}
	a.insight.generatedTime = utc.UTC()
	return nil
}

func (a frameworkAssigner) SetCloseTimeUTC(utc time.Time) error {
	if utc.IsZero() {
		return fmt.Errorf("close time of insight %s: %w", a.insight.id, ErrZeroTime)
	}
	if !a.insight.closeTime.IsZero() {
		return fmt.Errorf("close time of insight %s: %w", a.insight.id, ErrFieldAssigned)
	}
	a.insight.closeTime = utc.UTC()
	return nil
}

func (a frameworkAssigner) SetReferenceValue(value decimal.Decimal) {
	a.insight.referenceValue = value
	a.insight.hasReference = true
}

func (a frameworkAssigner) SetEstimatedValue(value decimal.Decimal) {
	a.insight.estimatedValue = value
}

func (a frameworkAssigner) SetSourceModel(name string) {
	a.insight.sourceModel = name
}

// InsightSnapshot is a plain copy of every insight field, used by adapters
// that move insights across a transport boundary.
type InsightSnapshot struct {
	ID               uuid.UUID
	GeneratedTimeUTC time.Time
	CloseTimeUTC     time.Time
	Symbol           Symbol
	Type             InsightType
	ReferenceValue   decimal.Decimal
	HasReference     bool
	Direction        InsightDirection
	Period           time.Duration
	Magnitude        *float64
	Confidence       *float64
	EstimatedValue   decimal.Decimal
	SourceModel      string
	Score            InsightScore
}

// Snapshot copies the insight's fields, including the current score contents.
func (i *Insight) Snapshot() InsightSnapshot {
	return InsightSnapshot{
		ID:               i.id,
		GeneratedTimeUTC: i.generatedTime,
		CloseTimeUTC:     i.closeTime,
		Symbol:           i.symbol,
		Type:             i.insightType,
		ReferenceValue:   i.referenceValue,
		HasReference:     i.hasReference,
		Direction:        i.direction,
		Period:           i.period,
		Magnitude:        copyFloat(i.magnitude),
		Confidence:       copyFloat(i.confidence),
		EstimatedValue:   i.estimatedValue,
		SourceModel:      i.sourceModel,
		Score:            *i.score,
	}
}

// RestoreInsight rebuilds an insight from a snapshot, keeping its id. The
// restored insight owns a new Score initialised from the snapshot.
func RestoreInsight(s InsightSnapshot) *Insight {
	insight := NewInsightWithValues(s.Symbol, s.Type, s.Direction, s.Period, s.Magnitude, s.Confidence)
	insight.id = s.ID
	insight.generatedTime = s.GeneratedTimeUTC
	insight.closeTime = s.CloseTimeUTC
	insight.referenceValue = s.ReferenceValue
	insight.hasReference = s.HasReference
	insight.estimatedValue = s.EstimatedValue
	insight.sourceModel = s.SourceModel
	score := s.Score
	insight.score = &score
	return insight
}
