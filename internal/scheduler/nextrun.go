package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
)

// NextRun computes the next fire instant strictly after now. A schedule
// with neither a cron expression nor an interval returns nil and only
// fires via manual trigger.
func NextRun(sch domain.Schedule, now time.Time) (*time.Time, error) {
	if sch.CronExpr != nil {
		expr, err := cron.ParseStandard(*sch.CronExpr)
		if err != nil {
			return nil, validationf("Invalid cron expression %q: %v", *sch.CronExpr, err)
		}
		next := expr.Next(now)
		return &next, nil
	}
	if sch.IntervalMs != nil {
		next := now.Add(time.Duration(*sch.IntervalMs) * time.Millisecond)
		return &next, nil
	}
	return nil, nil
}
