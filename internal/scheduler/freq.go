package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	minIntervalMs = 300_000
	minGapMinutes = 5
)

// ValidateFrequency rejects schedule cadences that would fire more often
// than the safety floor. Each firing can spawn a paid agent invocation, so
// runaway cadences are refused at definition time. Both arguments nil is
// valid and means the schedule only fires via manual trigger.
func ValidateFrequency(cronExpr *string, intervalMs *int64) error {
	if intervalMs != nil && *intervalMs >= 0 && *intervalMs < minIntervalMs {
		return validationf("interval too short: %dms is below the %dms minimum", *intervalMs, int64(minIntervalMs))
	}
	if cronExpr == nil {
		return nil
	}
	sched, err := cron.ParseStandard(*cronExpr)
	if err != nil {
		return validationf("Invalid cron expression %q: %v", *cronExpr, err)
	}
	gap := minuteGap(*cronExpr, sched)
	if gap < minGapMinutes {
		return validationf("cron expression %q fires every %d minute(s); minimum allowed is %d", *cronExpr, gap, minGapMinutes)
	}
	return nil
}

// minuteGap estimates the smallest gap in minutes between successive
// firings of a standard 5-field expression. The minute field alone decides
// the common cases; sampling the hour wrap of a step expression like
// "*/7 * * * *" would report the 4-minute 56->00 gap and wrongly reject it.
func minuteGap(expr string, sched cron.Schedule) int {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		// Descriptor form such as "@hourly"; sample it.
		return sampleGap(sched)
	}
	minute := fields[0]
	switch {
	case minute == "*":
		return 1
	case strings.HasPrefix(minute, "*/"):
		if n, err := strconv.Atoi(minute[2:]); err == nil && n > 0 {
			return n
		}
	default:
		if _, err := strconv.Atoi(minute); err == nil {
			// A single fixed minute fires at most hourly.
			return 60
		}
	}
	// Lists and ranges: measure the tightest gap over a sampled horizon.
	return sampleGap(sched)
}

func sampleGap(sched cron.Schedule) int {
	const horizon = 48 * time.Hour
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(horizon)

	min := int(^uint(0) >> 1)
	prev := sched.Next(base)
	for i := 0; i < 200; i++ {
		next := sched.Next(prev)
		if next.After(end) || next.IsZero() {
			break
		}
		if gap := int(next.Sub(prev).Minutes()); gap < min {
			min = gap
		}
		prev = next
	}
	return min
}
