package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
)

var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

// classifyNATSError treats connection loss as transient. Everything else the
// transport classifier does not recognise is permanent.
func classifyNATSError(err error) resilience.ErrorClassification {
	for _, target := range transientNATSErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ClassifyTransportError(err)
}
