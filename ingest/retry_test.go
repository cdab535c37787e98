package ingest

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
)

var testSchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

func TestDelayForAttempt(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, 2 * time.Minute},
		{3, 10 * time.Minute},
		{4, 30 * time.Minute},
		{5, 2 * time.Hour},
		// Attempts past the schedule stick to the last step.
		{6, 2 * time.Hour},
		{100, 2 * time.Hour},
		{0, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := DelayForAttempt(testSchedule, tc.attempt); got != tc.want {
			t.Fatalf("DelayForAttempt(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}

	if got := DelayForAttempt(nil, 1); got != time.Minute {
		t.Fatalf("empty schedule fallback = %s, want 1m", got)
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("nil error must classify as nil")
	}

	fatal := FatalErr(ReasonUnknownEventType, "x")
	if got := Classify(fatal); got != fatal {
		t.Fatal("classified error must pass through unchanged")
	}
	if fatal.Retryable() {
		t.Fatal("fatal error reported retryable")
	}

	plain := errors.New("connection reset")
	classified := Classify(plain)
	if classified.Reason != ReasonTransient || !classified.Retryable() {
		t.Fatalf("plain error classified as %s retryable=%v, want transient retryable", classified.Reason, classified.Retryable())
	}
	if !errors.Is(classified, plain) {
		t.Fatal("classified error must wrap the cause")
	}
}

func TestRetryExhaustionDeadLetters(t *testing.T) {
	settings := config.IngestSettings{
		MaxAttempts:   5,
		RetrySchedule: testSchedule,
	}
	cause := RetryableErr(ReasonTransient, errors.New("downstream timeout"))

	// Attempts below the budget reschedule with the matching backoff step.
	for attempt := 1; attempt < settings.MaxAttempts; attempt++ {
		action := decideFailure(cause, attempt, settings)
		if action.DeadLetter {
			t.Fatalf("attempt %d dead-lettered before exhausting the budget", attempt)
		}
		if want := testSchedule[attempt-1]; action.NextDelay != want {
			t.Fatalf("attempt %d delay = %s, want %s", attempt, action.NextDelay, want)
		}
	}

	// The final attempt exhausts the budget.
	action := decideFailure(cause, settings.MaxAttempts, settings)
	if !action.DeadLetter || action.Reason != ReasonMaxAttempts {
		t.Fatalf("exhausted attempt: got %+v, want dead letter %s", action, ReasonMaxAttempts)
	}

	// Fatal failures skip the schedule entirely, keeping their own reason.
	fatal := FatalErr(ReasonUnknownEventType, "order.created")
	action = decideFailure(fatal, 1, settings)
	if !action.DeadLetter || action.Reason != ReasonUnknownEventType {
		t.Fatalf("fatal failure: got %+v, want dead letter %s", action, ReasonUnknownEventType)
	}
}

func TestDeadLetterRecordOpensInReviewQueue(t *testing.T) {
	event := &models.IngestionEvent{
		EventId:       "evt-123",
		BusinessId:    "biz1",
		AttemptNumber: 5,
	}
	record := newDeadLetterRecord(event, ReasonMaxAttempts, "transient_failure: downstream timeout", "")

	if record.Status != models.DeadLetterStatusOpen {
		t.Fatalf("status = %s, want %s", record.Status, models.DeadLetterStatusOpen)
	}
	if record.EventKey != event.EventId || record.BusinessId != event.BusinessId {
		t.Fatalf("record not linked to its event: %+v", record)
	}
	if record.ReasonCode != ReasonMaxAttempts {
		t.Fatalf("reason = %s, want %s", record.ReasonCode, ReasonMaxAttempts)
	}
	if record.AttemptCount != 5 {
		t.Fatalf("attempt count = %d, want 5", record.AttemptCount)
	}
	if record.DeadLetterKey == "" {
		t.Fatal("dead letter key must be assigned")
	}
}

func TestErrorString(t *testing.T) {
	e := FatalErr(ReasonConflict, "PAID -> PENDING_PAYMENT is not allowed")
	if e.Error() != "state_conflict: PAID -> PENDING_PAYMENT is not allowed" {
		t.Fatalf("Error() = %q", e.Error())
	}
	bare := &Error{Reason: ReasonNonceReplay}
	if bare.Error() != ReasonNonceReplay {
		t.Fatalf("Error() = %q", bare.Error())
	}
}
