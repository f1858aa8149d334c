package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// ErrorClassification tells the executor whether a failure is worth another
// attempt and whether it counts against the breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	classRetry     = ErrorClassification{Retryable: true, RecordFailure: true}
	classPermanent = ErrorClassification{RecordFailure: true}
	classIgnore    = ErrorClassification{}
)

// ClassifyTransportError covers errors from HTTP collaborators. Errors that
// expose an HTTPStatus method are judged by status code; 4xx answers other
// than 408 and 429 are the caller's fault and leave the breaker alone.
func ClassifyTransportError(err error) ErrorClassification {
	switch {
	case err == nil:
		return classIgnore
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return classIgnore
	case IsCircuitOpen(err):
		return classRetry
	}

	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		if RetryableStatus(status.HTTPStatus()) {
			return classRetry
		}
		return classIgnore
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return classRetry
	}
	return classPermanent
}

func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// WrapTemporary tags err with domain.ErrTemporary when the classifier deems
// it retryable or the breaker rejected the call.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classifier != nil && classifier(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func defaultClassifier(error) ErrorClassification {
	return classPermanent
}
