package usecase

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arklim/otp-auth-service/internal/usecase"

// Outcome labels reported to Metrics.
const (
	OutcomeMatched   = "matched"
	OutcomeMismatch  = "mismatch"
	OutcomeExpired   = "expired"
	OutcomeExhausted = "exhausted"
	OutcomeCreated   = "created"
	OutcomeExisting  = "existing"
	OutcomeConflict  = "conflict"
	OutcomeSuccess   = "success"
	OutcomeNotFound  = "not_found"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics receives outcome counts from the services.
type Metrics interface {
	ObserveOTPIssued()
	ObserveVerification(outcome string)
	ObserveCommit(outcome string)
	ObserveLogin(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOTPIssued()          {}
func (nopMetrics) ObserveVerification(string) {}
func (nopMetrics) ObserveCommit(string)       {}
func (nopMetrics) ObserveLogin(string)        {}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
