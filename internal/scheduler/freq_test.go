package scheduler

import (
	"fmt"
	"strings"
	"testing"
)

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

func TestValidateFrequencyInterval(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		interval *int64
		wantErr  string
	}{
		{"nil interval", nil, ""},
		{"zero", i64p(0), "interval too short"},
		{"just under floor", i64p(299_999), "interval too short"},
		{"at floor", i64p(300_000), ""},
		{"above floor", i64p(3_600_000), ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateFrequency(nil, tc.interval)
			checkErr(t, err, tc.wantErr)
		})
	}
}

func TestValidateFrequencyCron(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cron    string
		wantErr string
	}{
		{"every minute", "* * * * *", "fires every"},
		{"hourly", "0 * * * *", ""},
		{"daily", "30 2 * * *", ""},
		{"half hourly list", "0,30 * * * *", ""},
		{"two minute list", "0,2 * * * *", "fires every"},
		{"garbage", "not a cron", "Invalid cron expression"},
		{"too many fields", "0 0 1 1 1 1 1", "Invalid cron expression"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateFrequency(strp(tc.cron), nil)
			checkErr(t, err, tc.wantErr)
		})
	}
}

// Step expressions must be judged by their step, not by the gap across the
// hour wrap ("*/7" lands on :56 then :00).
func TestValidateFrequencyStepProperty(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 30; n++ {
		expr := fmt.Sprintf("*/%d * * * *", n)
		err := ValidateFrequency(strp(expr), nil)
		if n < 5 {
			if err == nil {
				t.Errorf("%s: expected rejection", expr)
			} else if !strings.Contains(err.Error(), "fires every") {
				t.Errorf("%s: unexpected error %v", expr, err)
			}
		} else if err != nil {
			t.Errorf("%s: unexpected rejection: %v", expr, err)
		}
	}
}

func TestValidateFrequencyBothNil(t *testing.T) {
	t.Parallel()
	if err := ValidateFrequency(nil, nil); err != nil {
		t.Fatalf("manual-only schedule rejected: %v", err)
	}
}

func TestValidateFrequencyErrorsAreValidation(t *testing.T) {
	t.Parallel()
	err := ValidateFrequency(nil, i64p(10))
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func checkErr(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not contain %q", err.Error(), want)
	}
}

func TestValidateFrequencyWeekly(t *testing.T) {
	t.Parallel()
	if err := ValidateFrequency(strp("0 9 * * 1"), nil); err != nil {
		t.Fatalf("weekly cron rejected: %v", err)
	}
}
