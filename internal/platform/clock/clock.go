// Package clock is the single source of "now" for the scheduling engine.
// All comparisons happen in the fixed IST offset (UTC+5:30), so calendar
// dates and times of day are computed in that zone regardless of the host
// timezone.
package clock

import (
	"sync"
	"time"
)

// IST is the fixed offset zone used for every date and time-of-day
// comparison.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the host clock and converts it to IST.
type System struct{}

func (System) Now() time.Time { return time.Now().In(IST) }

// Fixed is a settable clock for tests and simulations.
type Fixed struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.In(IST)}
}

func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.t
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t.In(IST)
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Today returns the current calendar date in IST.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// NowOfDay returns the current time of day in IST.
func NowOfDay(c Clock) TimeOfDay {
	return TimeOfDayOf(c.Now())
}

// At builds an IST instant from a date and a time of day.
func At(d Date, tod TimeOfDay) time.Time {
	return d.Time().Add(time.Duration(tod) * time.Second)
}
