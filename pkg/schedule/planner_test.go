package schedule

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		expression string
		want       time.Duration
	}{
		{"* * * * *", EveryMinute},
		{"0 * * * *", EveryHour},
		{"0 0 * * *", EveryDay},
		{"0 0 * * 0", EveryWeek},
		{"  0   0 * *  0 ", EveryWeek},
		{"@hourly", EveryHour},
		{"@weekly", EveryWeek},
		{"30 * * * *", EveryHour},
		{"0 0 0 * * 0", EveryWeek},
		{"30 0 0 * * *", EveryDay},
		{"*/5 * * * *", EveryDay},
		{"0 9 * * 1", EveryDay},
		{"not a cron", EveryDay},
		{"", EveryDay},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			assert.Equal(t, tt.want, Interval(tt.expression))
		})
	}
}

func TestIntervalPlanner_IgnoresTimezone(t *testing.T) {
	schedule, err := IntervalPlanner{}.Plan("0 * * * *", "Not/AZone")
	require.NoError(t, err)

	every, ok := schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok)
	assert.Equal(t, time.Hour, every.Delay)
}

func TestCronPlanner(t *testing.T) {
	schedule, err := CronPlanner{}.Plan("30 9 * * 1", "America/New_York")
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Sunday 2024-03-03 12:00 in New York.
	from := time.Date(2024, 3, 3, 12, 0, 0, 0, loc)
	next := schedule.Next(from)

	assert.Equal(t, time.Monday, next.In(loc).Weekday())
	assert.Equal(t, 9, next.In(loc).Hour())
	assert.Equal(t, 30, next.In(loc).Minute())
}

func TestCronPlanner_Errors(t *testing.T) {
	_, err := CronPlanner{}.Plan("61 * * * *", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")

	_, err = CronPlanner{}.Plan("* * * * *", "Mars/Olympus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestNewPlanner(t *testing.T) {
	assert.IsType(t, CronPlanner{}, NewPlanner("cron"))
	assert.IsType(t, IntervalPlanner{}, NewPlanner("interval"))
	assert.IsType(t, IntervalPlanner{}, NewPlanner(""))
}
