package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/port"
)

// LogNotifier writes codes to the log instead of sending them. Development only.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOTP(_ context.Context, msg port.OTPMessage) error {
	n.logger.Warn("otp delivery stubbed",
		zap.String("email", msg.To),
		zap.String("code", msg.Code),
		zap.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
