package rrule

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Engine evaluates rules in a single scheduler location. It holds no clock:
// every evaluation takes now explicitly.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Option converts the rule into an rrule-go option anchored at dtstart.
func (r Rule) Option(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: r.Interval,
		Dtstart:  dtstart,
	}
	if r.Freq == Hourly {
		opt.Freq = rrule.HOURLY
	}
	if r.HasFixedTimes() {
		opt.Byhour = r.ByHour
		opt.Byminute = r.ByMinute
		opt.Bysecond = r.BySecond
	}
	if r.Until != nil {
		opt.Until = *r.Until
	}
	return opt
}

// NextOccurrence returns the first occurrence strictly after max(anchor, now).
// HOURLY and plain DAILY rules step from the anchor by the interval, skipping
// missed slots. DAILY rules with fixed times consider every configured clock
// time starting on the anchor's date. The second result is false when the next
// occurrence would fall after UNTIL.
//
// HOURLY rules count elapsed hours, so they are evaluated in UTC where a DST
// change cannot stretch or shrink a gap. DAILY rules follow the wall clock of
// the engine's location.
func (e *Engine) NextOccurrence(rule Rule, anchor, now time.Time) (time.Time, bool) {
	loc := e.loc
	if rule.Freq == Hourly {
		loc = time.UTC
	}
	anchor = anchor.In(loc)
	floor := now.In(loc)
	if anchor.After(floor) {
		floor = anchor
	}

	dtstart := anchor
	if rule.HasFixedTimes() {
		dtstart = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)
	}

	r, err := rrule.NewRRule(rule.Option(dtstart))
	if err != nil {
		return time.Time{}, false
	}

	next := r.After(floor, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.In(e.loc), true
}

// Preview lists up to count successive occurrences after anchor, each one
// anchored on the previous.
func (e *Engine) Preview(rule Rule, anchor time.Time, count int) []time.Time {
	var results []time.Time
	current := anchor
	for i := 0; i < count; i++ {
		next, ok := e.NextOccurrence(rule, current, current)
		if !ok {
			break
		}
		results = append(results, next)
		current = next
	}
	return results
}
