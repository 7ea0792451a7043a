package rrule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UntilLayout is the compact UTC form accepted for UNTIL.
const UntilLayout = "20060102T150405Z"

type Frequency string

const (
	Hourly Frequency = "HOURLY"
	Daily  Frequency = "DAILY"
)

// ErrInvalidRecurrence is matched by every parse failure.
var ErrInvalidRecurrence = errors.New("invalid recurrence rule")

// InvalidRecurrenceError carries the human-readable reason a rule was rejected.
type InvalidRecurrenceError struct {
	Rule   string
	Reason string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence rule %q: %s", e.Rule, e.Reason)
}

func (e *InvalidRecurrenceError) Is(target error) bool {
	return target == ErrInvalidRecurrence
}

// Rule is a validated recurrence rule from the bounded grammar:
// FREQ, INTERVAL, BYHOUR, BYMINUTE, BYSECOND and UNTIL.
type Rule struct {
	Freq     Frequency
	Interval int
	ByHour   []int
	ByMinute []int
	BySecond []int
	Until    *time.Time
}

// HasFixedTimes reports whether the rule fires at fixed clock times
func (r Rule) HasFixedTimes() bool {
	return len(r.ByHour) > 0
}

// Normalize strips a leading "RRULE:" prefix (any case) and surrounding whitespace.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= len("RRULE:") && strings.EqualFold(text[:len("RRULE:")], "RRULE:") {
		text = strings.TrimSpace(text[len("RRULE:"):])
	}
	return text
}

// Parse validates rule text. Keys and values are case-sensitive. Out of range
// or contradictory values are rejected, never clamped.
func Parse(text string) (Rule, error) {
	invalid := func(format string, args ...any) (Rule, error) {
		return Rule{}, &InvalidRecurrenceError{Rule: text, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(text) == "" {
		return invalid("rule is empty")
	}

	rule := Rule{Interval: 1}
	seen := make(map[string]bool)
	for _, part := range strings.Split(strings.TrimSpace(text), ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" || value == "" {
			return invalid("malformed pair %q", part)
		}
		if seen[key] {
			return invalid("%s given more than once", key)
		}
		seen[key] = true

		var err error
		switch key {
		case "FREQ":
			switch Frequency(value) {
			case Hourly, Daily:
				rule.Freq = Frequency(value)
			default:
				return invalid("FREQ must be HOURLY or DAILY, got %q", value)
			}
		case "INTERVAL":
			rule.Interval, err = strconv.Atoi(value)
			if err != nil || rule.Interval < 1 {
				return invalid("INTERVAL must be a positive integer, got %q", value)
			}
		case "BYHOUR":
			if rule.ByHour, err = parseList(value, 23); err != nil {
				return invalid("BYHOUR: %v", err)
			}
		case "BYMINUTE":
			if rule.ByMinute, err = parseList(value, 59); err != nil {
				return invalid("BYMINUTE: %v", err)
			}
		case "BYSECOND":
			if rule.BySecond, err = parseList(value, 59); err != nil {
				return invalid("BYSECOND: %v", err)
			}
		case "UNTIL":
			until, err := time.Parse(UntilLayout, value)
			if err != nil {
				return invalid("UNTIL must look like 20260221T235959Z, got %q", value)
			}
			rule.Until = &until
		default:
			return invalid("unsupported key %q", key)
		}
	}

	if rule.Freq == "" {
		return invalid("FREQ is required")
	}

	fixed := seen["BYHOUR"] || seen["BYMINUTE"] || seen["BYSECOND"]
	if fixed && rule.Freq == Hourly {
		return invalid("FREQ=HOURLY cannot be combined with BYHOUR, BYMINUTE or BYSECOND")
	}
	if fixed {
		if !seen["BYHOUR"] {
			return invalid("BYMINUTE and BYSECOND require BYHOUR")
		}
		if len(rule.ByMinute) == 0 {
			rule.ByMinute = []int{0}
		}
		if len(rule.BySecond) == 0 {
			rule.BySecond = []int{0}
		}
	}

	return rule, nil
}

func parseList(value string, max int) ([]int, error) {
	set := make(map[int]bool)
	for _, item := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", item)
		}
		if n < 0 || n > max {
			return nil, fmt.Errorf("%d is outside 0-%d", n, max)
		}
		set[n] = true
	}
	list := make([]int, 0, len(set))
	for n := range set {
		list = append(list, n)
	}
	sort.Ints(list)
	return list, nil
}

// String renders the canonical rule text; Parse(r.String()) yields r again.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if len(r.ByHour) > 0 {
		parts = append(parts, "BYHOUR="+joinInts(r.ByHour))
	}
	if len(r.ByMinute) > 0 {
		parts = append(parts, "BYMINUTE="+joinInts(r.ByMinute))
	}
	if len(r.BySecond) > 0 {
		parts = append(parts, "BYSECOND="+joinInts(r.BySecond))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(UntilLayout))
	}

	return strings.Join(parts, ";")
}

func joinInts(values []int) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return strings.Join(out, ",")
}

// Describe returns a short human-readable description of the rule
func Describe(r Rule) string {
	var sb strings.Builder

	switch {
	case r.Freq == Hourly && r.Interval == 1:
		sb.WriteString("every hour")
	case r.Freq == Hourly:
		sb.WriteString(fmt.Sprintf("every %d hours", r.Interval))
	case r.Interval == 1:
		sb.WriteString("every day")
	default:
		sb.WriteString(fmt.Sprintf("every %d days", r.Interval))
	}

	if r.HasFixedTimes() {
		var clocks []string
		for _, h := range r.ByHour {
			for _, m := range r.ByMinute {
				for _, s := range r.BySecond {
					if s == 0 {
						clocks = append(clocks, fmt.Sprintf("%02d:%02d", h, m))
					} else {
						clocks = append(clocks, fmt.Sprintf("%02d:%02d:%02d", h, m, s))
					}
				}
			}
		}
		sb.WriteString(" at " + strings.Join(clocks, ", "))
	}

	if r.Until != nil {
		sb.WriteString(", until " + r.Until.UTC().Format("2006-01-02 15:04") + " UTC")
	}
	return sb.String()
}
