package ingest

import "fmt"

// Reason codes. Stable strings: dead-letter rows and alerts match on them.
const (
	ReasonAuthBearer       = "auth_bearer_invalid"
	ReasonAuthSignature    = "auth_signature_invalid"
	ReasonAuthAlgorithm    = "auth_algorithm_unsupported"
	ReasonStaleTimestamp   = "stale_timestamp"
	ReasonNonceReplay      = "nonce_replay"
	ReasonMissingHeader    = "missing_header"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonUnknownEventType = "unknown_event_type"
	ReasonConflict         = "state_conflict"
	ReasonTransient        = "transient_failure"
	ReasonMaxAttempts      = "max_attempts_exhausted"
)

// Class buckets decide what happens to a failed event.
type Class int

const (
	// ClassAuth rejects the request outright; nothing is persisted.
	ClassAuth Class = iota
	// ClassFatal dead-letters the event immediately; retrying cannot help.
	ClassFatal
	// ClassRetryable schedules the next attempt per the backoff schedule.
	ClassRetryable
)

// Error is a classified ingestion failure.
type Error struct {
	Reason string
	Class  Class
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the failure should be scheduled for another attempt.
func (e *Error) Retryable() bool { return e.Class == ClassRetryable }

func authErr(reason, detail string) *Error {
	return &Error{Reason: reason, Class: ClassAuth, Detail: detail}
}

// FatalErr marks a failure no retry can fix.
func FatalErr(reason, detail string) *Error {
	return &Error{Reason: reason, Class: ClassFatal, Detail: detail}
}

// RetryableErr wraps a failure worth another attempt.
func RetryableErr(reason string, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Reason: reason, Class: ClassRetryable, Detail: detail, cause: cause}
}

// Classify maps an arbitrary processing error onto the taxonomy. Already
// classified errors pass through; everything else is treated as transient.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if ie, ok := err.(*Error); ok {
		return ie
	}
	return RetryableErr(ReasonTransient, err)
}
