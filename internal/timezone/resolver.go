// Package timezone converts between absolute instants and wall-clock time in
// named IANA zones.
//
// None of the conversions return errors. An unusable input is logged and
// replaced: a zero instant becomes "now", an unknown zone becomes UTC, and a
// wall-clock time skipped by a DST transition is shifted forward past the gap.
// When a wall-clock time occurs twice (DST fall back) the earlier instant wins.
package timezone

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// UTC is the zone name used when nothing else is configured.
const UTC = "UTC"

// WallClock is the clock reading of an instant in a zone.
type WallClock struct {
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// MinuteOfDay returns the number of minutes since local midnight.
func (w WallClock) MinuteOfDay() int {
	return w.Hour*60 + w.Minute
}

// Resolver performs zone math with cached locations.
type Resolver struct {
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// NewResolver constructs a resolver. A nil logger discards warnings and a nil
// clock uses time.Now.
func NewResolver(logger *zap.Logger, now func() time.Time) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		logger:    logger,
		now:       now,
		locations: make(map[string]*time.Location),
	}
}

// Now returns the resolver clock reading.
func (r *Resolver) Now() time.Time {
	return r.now()
}

// Location loads zone, reporting false when it is not a known IANA name.
func (r *Resolver) Location(zone string) (*time.Location, bool) {
	if zone == "" || zone == UTC {
		return time.UTC, true
	}

	r.mu.RLock()
	loc, ok := r.locations[zone]
	r.mu.RUnlock()
	if ok {
		if loc == nil {
			r.logger.Warn("timezone: unknown zone, falling back to UTC", zap.String("zone", zone))
		}
		return loc, loc != nil
	}

	// Unknown zones are cached as nil and warned about on every lookup.
	loaded, err := time.LoadLocation(zone)
	if err != nil {
		r.logger.Warn("timezone: unknown zone, falling back to UTC", zap.String("zone", zone), zap.Error(err))
		loaded = nil
	}

	r.mu.Lock()
	r.locations[zone] = loaded
	r.mu.Unlock()

	return loaded, loaded != nil
}

// In returns t expressed in zone.
func (r *Resolver) In(t time.Time, zone string) time.Time {
	if t.IsZero() {
		now := r.now()
		r.logger.Warn("timezone: invalid instant, substituting current time", zap.Time("now", now))
		t = now
	}
	loc, ok := r.Location(zone)
	if !ok {
		return t.UTC()
	}
	return t.In(loc)
}

// WallClock returns hour, minute and weekday of t in zone.
func (r *Resolver) WallClock(t time.Time, zone string) WallClock {
	local := r.In(t, zone)
	return WallClock{Hour: local.Hour(), Minute: local.Minute(), Weekday: local.Weekday()}
}

// DateParts returns the calendar date of t in zone.
func (r *Resolver) DateParts(t time.Time, zone string) Date {
	return DateOf(r.In(t, zone))
}

// ToUTC returns the instant whose wall-clock reading in zone is date at
// hour:minute.
func (r *Resolver) ToUTC(date Date, hour, minute int, zone string) time.Time {
	naive := time.Date(date.Year, date.Month, date.Day, hour, minute, 0, 0, time.UTC)

	loc, ok := r.Location(zone)
	if !ok {
		return naive
	}

	var (
		match time.Time
		found bool
	)
	for _, offset := range offsetsAround(naive, loc) {
		candidate := naive.Add(-time.Duration(offset) * time.Second)
		if !sameWallClock(candidate.In(loc), naive) {
			continue
		}
		if !found || candidate.Before(match) {
			match = candidate
			found = true
		}
	}
	if found {
		return match.UTC()
	}

	// The reading falls in a DST gap. Applying the offset in force before the
	// transition lands past the gap by exactly its length.
	_, before := naive.Add(-24 * time.Hour).In(loc).Zone()
	shifted := naive.Add(-time.Duration(before) * time.Second).UTC()
	r.logger.Warn("timezone: wall-clock time does not exist, using approximation",
		zap.String("zone", zone),
		zap.String("date", date.String()),
		zap.Int("hour", hour),
		zap.Int("minute", minute),
		zap.Time("approximation", shifted),
	)
	return shifted
}

// offsetsAround lists the distinct UTC offsets (seconds east) in force within a
// day either side of t.
func offsetsAround(t time.Time, loc *time.Location) []int {
	offsets := make([]int, 0, 3)
	for _, probe := range []time.Time{t.Add(-24 * time.Hour), t, t.Add(24 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		seen := false
		for _, o := range offsets {
			if o == off {
				seen = true
				break
			}
		}
		if !seen {
			offsets = append(offsets, off)
		}
	}
	return offsets
}

func sameWallClock(local, want time.Time) bool {
	ly, lm, ld := local.Date()
	wy, wm, wd := want.Date()
	return ly == wy && lm == wm && ld == wd && local.Hour() == want.Hour() && local.Minute() == want.Minute()
}
