package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts registration and login outcomes.
type AuthMetrics struct {
	OTPIssued     prometheus.Counter
	Verifications *prometheus.CounterVec
	Commits       *prometheus.CounterVec
	Logins        *prometheus.CounterVec
}

// NewAuthMetrics registers the collectors, reusing any already registered.
func NewAuthMetrics(reg prometheus.Registerer, namespace string) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "auth"
	}

	issued, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registration",
		Name:      "otp_issued_total",
		Help:      "Total number of OTP codes delivered.",
	}))
	if err != nil {
		return nil, err
	}

	verifications, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registration",
		Name:      "verifications_total",
		Help:      "OTP verification attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	commits, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registration",
		Name:      "commits_total",
		Help:      "Registration commits partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	logins, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "login",
		Name:      "attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		OTPIssued:     issued,
		Verifications: verifications,
		Commits:       commits,
		Logins:        logins,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return collector, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return collector, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}

func (m *AuthMetrics) ObserveOTPIssued() {
	if m == nil {
		return
	}
	m.OTPIssued.Inc()
}

func (m *AuthMetrics) ObserveVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}
