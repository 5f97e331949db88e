// Package schedule turns workflow cron expressions into timers.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Planner converts a cron expression and optional IANA timezone into a schedule.
type Planner interface {
	Plan(expression, timezone string) (cron.Schedule, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(expression, timezone string) (cron.Schedule, error)

func (f PlannerFunc) Plan(expression, timezone string) (cron.Schedule, error) {
	return f(expression, timezone)
}

const (
	EveryMinute = time.Minute
	EveryHour   = time.Hour
	EveryDay    = 24 * time.Hour
	EveryWeek   = 7 * 24 * time.Hour
)

// intervals is checked in order and matched by substring, so "30 * * * *"
// runs hourly and "0 0 1 * *" daily.
var intervals = []struct {
	pattern  string
	interval time.Duration
}{
	{"* * * * *", EveryMinute},
	{"0 * * * *", EveryHour},
	{"0 0 * * *", EveryDay},
	{"0 0 * * 0", EveryWeek},
	{"@hourly", EveryHour},
	{"@daily", EveryDay},
	{"@midnight", EveryDay},
	{"@weekly", EveryWeek},
}

// IntervalPlanner recognises four granularities and runs everything else
// daily. Ticks are relative to registration time and the timezone is ignored.
type IntervalPlanner struct{}

func (IntervalPlanner) Plan(expression, _ string) (cron.Schedule, error) {
	return cron.Every(Interval(expression)), nil
}

// Interval returns the polling interval IntervalPlanner uses for expression.
func Interval(expression string) time.Duration {
	normalized := strings.Join(strings.Fields(expression), " ")

	for _, candidate := range intervals {
		if strings.Contains(normalized, candidate.pattern) {
			return candidate.interval
		}
	}

	return EveryDay
}

// CronPlanner parses standard five field cron expressions and descriptors,
// evaluated in the given timezone.
type CronPlanner struct{}

func (CronPlanner) Plan(expression, timezone string) (cron.Schedule, error) {
	expr := strings.TrimSpace(expression)

	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}

		expr = "CRON_TZ=" + timezone + " " + expr
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return schedule, nil
}

// NewPlanner selects a planner by mode: "cron" for CronPlanner, anything
// else for IntervalPlanner.
func NewPlanner(mode string) Planner {
	if mode == "cron" {
		return CronPlanner{}
	}

	return IntervalPlanner{}
}
