// FilePath: server/watchdog/internal/alerting/limits.go
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/timeseries"
	nuts "github.com/vaudience/go-nuts"
)

// LimitKind is the alert kind of the limit-breach family.
type LimitKind string

const (
	LimitLow  LimitKind = "limit_low"
	LimitHigh LimitKind = "limit_high"
)

// LimitMode selects how a window of readings is judged.
type LimitMode string

const (
	// ModeInstant raises when any single reading violates a limit and clears
	// when the latest reading is back within bounds.
	ModeInstant LimitMode = "instant"
	// ModeAverage judges the window mean for both raising and clearing.
	ModeAverage LimitMode = "average"
)

// Valid reports whether m is a known mode.
func (m LimitMode) Valid() bool {
	return m == ModeInstant || m == ModeAverage
}

// LimitBreach is the payload of limit notifications.
type LimitBreach struct {
	LocationID   string     `json:"location_id"`
	LocationName string     `json:"location_name"`
	Mode         LimitMode  `json:"mode"`
	Limit        float64    `json:"limit"`
	Value        *float64   `json:"value,omitempty"`
	At           *time.Time `json:"at,omitempty"`
}

// LimitFamily computes which locations are outside their temperature limits
// since the previous successful tick.
type LimitFamily struct {
	locations repository.LocationSource
	readings  repository.ReadingSource
	mode      LimitMode
	lookback  time.Duration

	mu       sync.Mutex
	seenUpTo map[string]time.Time // location id -> newest reading evaluated
}

// NewLimitFamily creates the limit-breach family. lookback bounds the window
// of the first evaluation.
func NewLimitFamily(locations repository.LocationSource, readings repository.ReadingSource, mode LimitMode, lookback time.Duration) (*LimitFamily, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("alerting: unknown limit mode %q", mode)
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("alerting: lookback must be positive, got %s", lookback)
	}
	return &LimitFamily{
		locations: locations,
		readings:  readings,
		mode:      mode,
		lookback:  lookback,
		seenUpTo:  make(map[string]time.Time),
	}, nil
}

// Name implements Family.
func (f *LimitFamily) Name() string { return "limits" }

// Observe implements Family. A location's window starts after the newest
// reading a previous successful tick evaluated for it, so readings committed
// after that tick are still evaluated even when older than the tick itself.
// Markers only advance when every fetch succeeded.
func (f *LimitFamily) Observe(ctx context.Context, now time.Time, latched func(latch.Key[string, LimitKind]) bool) (Observations[string, LimitKind, LimitBreach], error) {
	locations, err := f.locations.GetLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch locations: %w", err)
	}

	out := make(Observations[string, LimitKind, LimitBreach])
	markers := make(map[string]time.Time, len(locations))
	for _, loc := range locations {
		if !loc.HasLimits() {
			continue
		}
		since := f.windowStart(loc.ID, now)
		readings, err := f.readings.GetLocationReadingsSince(ctx, loc.ID, since)
		if err != nil {
			return nil, fmt.Errorf("fetch readings for location %s: %w", loc.ID, err)
		}
		markers[loc.ID] = newestReading(readings, since)

		samples := nonNull(models.Samples(readings, models.Temperature))
		if len(samples) == 0 {
			keepLatched(out, loc, f.mode, latched)
			nuts.L.Debugf("[LimitFamily] No readings for location %s since %s", loc.ID, since.Format(time.RFC3339))
			continue
		}
		switch f.mode {
		case ModeAverage:
			if err := observeAverage(out, loc, samples); err != nil {
				return nil, err
			}
		default:
			observeInstant(out, loc, samples, latched)
		}
	}

	f.mu.Lock()
	for id, t := range markers {
		f.seenUpTo[id] = t
	}
	f.mu.Unlock()
	return out, nil
}

func (f *LimitFamily) windowStart(locationID string, now time.Time) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.seenUpTo[locationID]; ok {
		return t
	}
	return now.Add(-f.lookback)
}

func newestReading(readings []models.Reading, since time.Time) time.Time {
	newest := since
	for _, r := range readings {
		if r.Time.After(newest) {
			newest = r.Time
		}
	}
	return newest
}

func observeInstant(out Observations[string, LimitKind, LimitBreach], loc models.Location, samples []models.Sample, latched func(latch.Key[string, LimitKind]) bool) {
	latest, lowest, highest := samples[0], samples[0], samples[0]
	for _, s := range samples[1:] {
		if s.Time.After(latest.Time) {
			latest = s
		}
		if *s.Value < *lowest.Value {
			lowest = s
		}
		if *s.Value > *highest.Value {
			highest = s
		}
	}

	if loc.MaxTemperature != nil {
		k := latch.Key[string, LimitKind]{Subject: loc.ID, Kind: LimitHigh}
		if latched(k) {
			active := loc.AboveMax(*latest.Value)
			evidence := latest
			if active {
				evidence = highest
			}
			out.Set(loc.ID, LimitHigh, active, breach(loc, ModeInstant, *loc.MaxTemperature, evidence))
		} else {
			out.Set(loc.ID, LimitHigh, loc.AboveMax(*highest.Value), breach(loc, ModeInstant, *loc.MaxTemperature, highest))
		}
	}
	if loc.MinTemperature != nil {
		k := latch.Key[string, LimitKind]{Subject: loc.ID, Kind: LimitLow}
		if latched(k) {
			active := loc.BelowMin(*latest.Value)
			evidence := latest
			if active {
				evidence = lowest
			}
			out.Set(loc.ID, LimitLow, active, breach(loc, ModeInstant, *loc.MinTemperature, evidence))
		} else {
			out.Set(loc.ID, LimitLow, loc.BelowMin(*lowest.Value), breach(loc, ModeInstant, *loc.MinTemperature, lowest))
		}
	}
}

func observeAverage(out Observations[string, LimitKind, LimitBreach], loc models.Location, samples []models.Sample) error {
	avg, err := timeseries.Average(samples)
	if err != nil {
		return fmt.Errorf("average readings for location %s: %w", loc.ID, err)
	}
	evidence := models.Sample{Time: avg.Time, Value: avg.Value}
	if loc.MaxTemperature != nil {
		out.Set(loc.ID, LimitHigh, loc.AboveMax(*avg.Value), breach(loc, ModeAverage, *loc.MaxTemperature, evidence))
	}
	if loc.MinTemperature != nil {
		out.Set(loc.ID, LimitLow, loc.BelowMin(*avg.Value), breach(loc, ModeAverage, *loc.MinTemperature, evidence))
	}
	return nil
}

// keepLatched reports latched kinds as still active when the window holds no
// evidence either way.
func keepLatched(out Observations[string, LimitKind, LimitBreach], loc models.Location, mode LimitMode, latched func(latch.Key[string, LimitKind]) bool) {
	if loc.MaxTemperature != nil && latched(latch.Key[string, LimitKind]{Subject: loc.ID, Kind: LimitHigh}) {
		out.Set(loc.ID, LimitHigh, true, LimitBreach{LocationID: loc.ID, LocationName: loc.Name, Mode: mode, Limit: *loc.MaxTemperature})
	}
	if loc.MinTemperature != nil && latched(latch.Key[string, LimitKind]{Subject: loc.ID, Kind: LimitLow}) {
		out.Set(loc.ID, LimitLow, true, LimitBreach{LocationID: loc.ID, LocationName: loc.Name, Mode: mode, Limit: *loc.MinTemperature})
	}
}

func breach(loc models.Location, mode LimitMode, limit float64, s models.Sample) LimitBreach {
	at := s.Time
	return LimitBreach{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Mode:         mode,
		Limit:        limit,
		Value:        s.Value,
		At:           &at,
	}
}

func nonNull(samples []models.Sample) []models.Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if s.Value != nil {
			out = append(out, s)
		}
	}
	return out
}
