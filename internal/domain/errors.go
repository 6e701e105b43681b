package domain

import (
	"errors"
	"fmt"
)

// Error categories. Concrete errors below wrap one of these so callers can classify with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid state")
	ErrMalformedInput = errors.New("malformed input")
)

var (
	// ErrPaperNotFound is returned when a test paper id is unknown.
	ErrPaperNotFound = fmt.Errorf("test paper %w", ErrNotFound)
	// ErrExamNotFound is returned when an exam id is unknown.
	ErrExamNotFound = fmt.Errorf("exam %w", ErrNotFound)
	// ErrAttemptNotFound is returned when an attempt id is unknown.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrCustomQuizNotFound is returned for unknown quizzes and for quizzes of other learners.
	ErrCustomQuizNotFound = fmt.Errorf("custom quiz %w", ErrNotFound)

	// ErrNotOwner is returned when the acting learner does not own the attempt.
	ErrNotOwner = fmt.Errorf("%w: attempt belongs to another learner", ErrForbidden)
	// ErrNotEnrolled is returned when the learner has no active enrollment for the exam.
	ErrNotEnrolled = fmt.Errorf("%w: not enrolled in this exam", ErrForbidden)

	// ErrPaperInactive indicates the paper (or its exam) is not open for attempts.
	ErrPaperInactive = fmt.Errorf("%w: test paper is not active", ErrInvalidState)
	// ErrAttemptCompleted guards against re-scoring a submitted attempt.
	ErrAttemptCompleted = fmt.Errorf("%w: attempt already completed", ErrInvalidState)
	// ErrAttemptInProgress is returned when a result is requested before submission.
	ErrAttemptInProgress = fmt.Errorf("%w: attempt not yet submitted", ErrInvalidState)
	// ErrAttemptExists is returned when a second attempt is started for the same paper.
	ErrAttemptExists = fmt.Errorf("%w: attempt already exists", ErrInvalidState)
	// ErrSubmissionInFlight is returned while another submission for the same attempt is running.
	ErrSubmissionInFlight = fmt.Errorf("%w: submission already in progress", ErrInvalidState)
	// ErrPaperMismatch is returned when an attempt is submitted against a different paper.
	ErrPaperMismatch = fmt.Errorf("%w: attempt belongs to another test paper", ErrInvalidState)
)

// Malformed wraps a validation failure into the MalformedInput category.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// ErrorCategory names the error class for logs.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	default:
		return "internal"
	}
}
