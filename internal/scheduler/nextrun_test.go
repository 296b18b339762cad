package scheduler

import (
	"testing"
	"time"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
)

func TestNextRunCron(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 14, 25, 0, 0, time.UTC)
	next, err := NextRun(domain.Schedule{CronExpr: strp("0 * * * *")}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunCronStrictlyAfter(t *testing.T) {
	t.Parallel()

	// Exactly on the boundary must arm the following occurrence.
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	next, err := NextRun(domain.Schedule{CronExpr: strp("0 * * * *")}, now)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || !next.After(now) {
		t.Fatalf("next = %v, want strictly after %v", next, now)
	}
}

func TestNextRunInterval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 14, 25, 0, 0, time.UTC)
	next, err := NextRun(domain.Schedule{IntervalMs: i64p(600_000)}, now)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || !next.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("next = %v, want now+10m", next)
	}
}

func TestNextRunManualOnly(t *testing.T) {
	t.Parallel()

	next, err := NextRun(domain.Schedule{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Fatalf("manual-only schedule got next run %v", next)
	}
}

func TestNextRunBadCron(t *testing.T) {
	t.Parallel()

	if _, err := NextRun(domain.Schedule{CronExpr: strp("bogus")}, time.Now()); err == nil {
		t.Fatal("expected error for bad cron")
	}
}

func TestNextRunCronWinsOverInterval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 14, 25, 0, 0, time.UTC)
	sch := domain.Schedule{CronExpr: strp("0 * * * *"), IntervalMs: i64p(600_000)}
	next, err := NextRun(sch, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("next = %v, want cron occurrence %v", next, want)
	}
}
