package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
)

const defaultOTPTTL = 20 * time.Second

// OTPIssuer generates codes and sends exactly one notification per issuance.
type OTPIssuer struct {
	codes    port.CodeGenerator
	notifier port.Notifier
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewOTPIssuer constructs an issuer. A non-positive ttl falls back to 20s.
func NewOTPIssuer(codes port.CodeGenerator, notifier port.Notifier, ttl time.Duration, logger *zap.Logger) *OTPIssuer {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPIssuer{
		codes:    codes,
		notifier: notifier,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// TTL returns the validity window of issued codes.
func (i *OTPIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue draws a fresh code and sends it to email. A send failure is returned
// as ErrDeliveryFailed.
func (i *OTPIssuer) Issue(ctx context.Context, email string) (string, time.Time, error) {
	if i.codes == nil || i.notifier == nil {
		return "", time.Time{}, errors.New("otp issuer not configured")
	}

	code, err := i.codes.Generate()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}

	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	if err := i.notifier.SendOTP(ctx, port.OTPMessage{
		To:        email,
		Code:      code,
		ExpiresAt: expiresAt,
		ValidFor:  i.ttl,
	}); err != nil {
		i.logger.Warn("otp delivery failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return code, expiresAt, nil
}
