// Package robust wraps asynchronous units of work with retry, timeout and
// rate/concurrency control. Decorators compose: WithRetry(WithTimeout(fn)).
package robust

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a PipelineError.
type ErrorKind string

const (
	KindRateLimit ErrorKind = "rate_limit"
	KindAPI       ErrorKind = "api"
	KindTimeout   ErrorKind = "timeout"
)

// PipelineError is the tagged error union carried alongside partial results.
type PipelineError struct {
	Kind       ErrorKind
	StatusCode int  // only for KindAPI, 0 if unknown
	Retryable  bool // explicit retryable flag for KindAPI
	Err        error
}

func (e *PipelineError) Error() string {
	switch e.Kind {
	case KindAPI:
		if e.StatusCode != 0 {
			return fmt.Sprintf("api error (status %d): %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("api error: %v", e.Err)
	case KindRateLimit:
		return fmt.Sprintf("rate limited: %v", e.Err)
	case KindTimeout:
		return fmt.Sprintf("timed out: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// RateLimitError tags err as a rate-limit failure.
func RateLimitError(err error) *PipelineError {
	return &PipelineError{Kind: KindRateLimit, Retryable: true, Err: err}
}

// APIError tags err as an API failure with an optional status code.
func APIError(statusCode int, err error) *PipelineError {
	return &PipelineError{
		Kind:       KindAPI,
		StatusCode: statusCode,
		Retryable:  statusCode == 429 || (statusCode >= 500 && statusCode < 600),
		Err:        err,
	}
}

// TimeoutError tags err as a timeout.
func TimeoutError(err error) *PipelineError {
	return &PipelineError{Kind: KindTimeout, Retryable: true, Err: err}
}

// transientPatterns are message fragments that indicate a retryable network blip.
var transientPatterns = []string{
	"rate limit",
	"too many requests",
	"overloaded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"temporarily unavailable",
	"timeout",
	"timed out",
	"eof",
}

// Classify maps an arbitrary error into the pipeline taxonomy. Errors that are
// already tagged pass through unchanged.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return RateLimitError(err)
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded") {
		return TimeoutError(err)
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return &PipelineError{Kind: KindAPI, Retryable: true, Err: err}
		}
	}
	return &PipelineError{Kind: KindAPI, Retryable: false, Err: err}
}

// IsRetryable reports whether err should be retried under the backoff policy.
func IsRetryable(err error) bool {
	pe := Classify(err)
	if pe == nil {
		return false
	}
	switch pe.Kind {
	case KindRateLimit, KindTimeout:
		return true
	default:
		return pe.Retryable
	}
}

// ErrorRecord pairs a failure with the stage it occurred in, for partial-failure
// reporting. Recovered means an empty fragment was substituted and the
// conversion continued.
type ErrorRecord struct {
	Context   string `json:"context"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
	Recovered bool   `json:"recovered"`
}

// NewErrorRecord builds a record with Message populated from err.
func NewErrorRecord(stage string, err error, recovered bool) ErrorRecord {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorRecord{Context: stage, Err: err, Message: msg, Recovered: recovered}
}
