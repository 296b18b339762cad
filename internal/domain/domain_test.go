package domain

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to ExecStatus }{
		{ExecRunning, ExecCompleted},
		{ExecRunning, ExecFailed},
		{ExecRunning, ExecCancelled},
		{ExecAwaitingApproval, ExecApproved},
		{ExecAwaitingApproval, ExecDenied},
		{ExecApproved, ExecCompleted},
		{ExecApproved, ExecFailed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to ExecStatus }{
		{ExecRunning, ExecApproved},
		{ExecRunning, ExecAwaitingApproval},
		{ExecCompleted, ExecRunning},
		{ExecFailed, ExecCompleted},
		{ExecCancelled, ExecRunning},
		{ExecDenied, ExecApproved},
		{ExecAwaitingApproval, ExecCompleted},
		{ExecApproved, ExecCancelled},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be refused", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for _, st := range []ExecStatus{ExecCompleted, ExecFailed, ExecCancelled, ExecDenied} {
		if !st.Terminal() {
			t.Errorf("%s should be terminal", st)
		}
	}
	for _, st := range []ExecStatus{ExecRunning, ExecAwaitingApproval, ExecApproved} {
		if st.Terminal() {
			t.Errorf("%s should not be terminal", st)
		}
	}
}
