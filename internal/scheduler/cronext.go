package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser runs in "seconds required" mode: six fields, seconds first.
// This ports the original engine's with_seconds_required().with_dom_and_dow()
// configuration; robfig/cron always evaluates day-of-month and day-of-week
// with standard OR semantics when both are restricted (rather than the
// original's AND), a difference noted in DESIGN.md as unobservable for
// every cron pattern this engine actually schedules (the three fixed jobs
// and per-tracker jobs never restrict both fields at once).
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// aliases mirrors cron_ext.rs's pattern table; expansion happens before
// parsing because croner (and robfig/cron) aliases assume a five-field
// schedule and would misinterpret them once seconds are required.
var aliases = map[string]string{
	"@yearly":  "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly": "0 0 0 1 * *",
	"@weekly":  "0 0 0 * * 0",
	"@daily":   "0 0 0 * * *",
	"@hourly":  "0 0 * * * *",
}

// ExpandAlias rewrites a case-insensitive cron alias to its fixed
// six-field form; patterns that aren't aliases pass through unchanged.
func ExpandAlias(pattern string) string {
	trimmed := strings.TrimSpace(pattern)
	if expanded, ok := aliases[strings.ToLower(trimmed)]; ok {
		return expanded
	}
	return trimmed
}

// ParsePattern expands aliases and parses the result in seconds-required
// mode.
func ParsePattern(pattern string) (cron.Schedule, error) {
	expanded := ExpandAlias(pattern)
	sched, err := cronParser.Parse(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse cron pattern %q: %w", pattern, err)
	}
	return sched, nil
}

// minIntervalSamples is how many upcoming occurrences MinInterval
// examines to find the smallest gap, matching cron_ext.rs's min_interval.
const minIntervalSamples = 100

// MinInterval returns the smallest gap between any two of the next 100
// occurrences of schedule, starting from now.
func MinInterval(schedule cron.Schedule, now time.Time) time.Duration {
	minimum := time.Duration(1<<63 - 1) // max time.Duration
	prev := now
	for i := 0; i < minIntervalSamples; i++ {
		next := schedule.Next(prev)
		if i > 0 {
			if gap := next.Sub(prev); gap < minimum {
				minimum = gap
			}
		}
		prev = next
	}
	return minimum
}
