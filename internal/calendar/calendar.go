package calendar

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/STRATINT/insights/internal/models"
)

// ErrUnknownMarket is returned when a calendar has no session for a market.
var ErrUnknownMarket = errors.New("unknown market")

// maxBars bounds the bar walk for very long periods on fine resolutions.
const maxBars = 1_000_000

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Session describes when a market trades. The schedule fires at the end of
// every tradable bar of the given resolution.
type Session struct {
	schedule   cron.Schedule
	resolution time.Duration
	location   *time.Location
}

// NewSession parses a six-field cron spec (with seconds) of bar end times.
// An empty timezone means UTC.
func NewSession(spec string, resolution time.Duration, timezone string) (*Session, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %s", resolution)
	}

	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse session schedule %q: %w", spec, err)
	}

	location := time.UTC
	if timezone != "" {
		location, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	return &Session{schedule: schedule, resolution: resolution, location: location}, nil
}

// CloseTime advances from generatedUTC through enough tradable bars to cover
// period and returns the end of the last one, in UTC. Non-positive periods
// fall back to naive addition.
func (s *Session) CloseTime(generatedUTC time.Time, period time.Duration) time.Time {
	if period <= 0 {
		return generatedUTC.Add(period)
	}

	bars := int((period + s.resolution - 1) / s.resolution)
	if bars > maxBars {
		bars = maxBars
	}

	t := generatedUTC.In(s.location)
	for i := 0; i < bars; i++ {
		next := s.schedule.Next(t)
		if next.IsZero() {
			// schedule never fires again
			return generatedUTC.Add(period)
		}
		t = next
	}
	return t.UTC()
}

// Calendar maps market names to trading sessions.
type Calendar struct {
	sessions map[string]*Session
}

// New returns an empty calendar; every market falls back to naive close times.
func New() *Calendar {
	return &Calendar{sessions: make(map[string]*Session)}
}

// Add registers the session for market, replacing any previous one.
func (c *Calendar) Add(market string, session *Session) {
	c.sessions[market] = session
}

// Session returns the session for market.
func (c *Calendar) Session(market string) (*Session, error) {
	session, ok := c.sessions[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, market)
	}
	return session, nil
}

// CloseTime computes the close time for an insight on symbol. Markets
// without a session use generatedUTC + period.
func (c *Calendar) CloseTime(symbol models.Symbol, generatedUTC time.Time, period time.Duration) time.Time {
	session, err := c.Session(symbol.Market)
	if err != nil {
		return generatedUTC.Add(period)
	}
	return session.CloseTime(generatedUTC, period)
}

type fileConfig struct {
	Markets map[string]struct {
		Schedule   string        `yaml:"schedule"`
		Resolution time.Duration `yaml:"resolution"`
		Timezone   string        `yaml:"timezone"`
	} `yaml:"markets"`
}

// Parse builds a calendar from YAML of the form:
//
//	markets:
//	  usa:
//	    schedule: "0 * 9-15 * * 1-5"
//	    resolution: 1m
//	    timezone: America/New_York
func Parse(data []byte) (*Calendar, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	cal := New()
	for market, m := range cfg.Markets {
		resolution := m.Resolution
		if resolution == 0 {
			resolution = time.Minute
		}
		session, err := NewSession(m.Schedule, resolution, m.Timezone)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", market, err)
		}
		cal.Add(market, session)
	}
	return cal, nil
}

// LoadFile reads a calendar YAML file.
func LoadFile(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	return Parse(data)
}
