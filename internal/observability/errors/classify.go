package errors

import (
	"context"
	goerrors "errors"
	"net"

	"github.com/target/sitegate/internal/ports"
)

// Outcome labels attached to identity provider metrics and logs.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeServerError  = "server_error"
	OutcomeTimeout      = "timeout"
	OutcomeCanceled     = "canceled"
	OutcomeNetwork      = "network"
	OutcomeInvalidToken = "invalid_token"
	OutcomeUnclassified = "error"
)

// Classify maps an identity provider call error to a bounded outcome label.
func Classify(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var pe *ports.ProviderError
	if goerrors.As(err, &pe) {
		if pe.Status >= 500 {
			return OutcomeServerError
		}
		return OutcomeRejected
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	if goerrors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		if netErr.Timeout() {
			return OutcomeTimeout
		}
		return OutcomeNetwork
	}
	if goerrors.Is(err, ErrInvalidToken) {
		return OutcomeInvalidToken
	}
	return OutcomeUnclassified
}

// ErrInvalidToken marks tokens rejected by local signature or claim checks.
var ErrInvalidToken = goerrors.New("invalid token")
