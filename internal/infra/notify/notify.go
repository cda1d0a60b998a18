// Package notify delivers one-time codes to users.
package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/config"
)

// New selects the notifier named by cfg.Notify.Driver.
func New(cfg *config.AppConfig, logger *zap.Logger) (port.Notifier, error) {
	switch cfg.Notify.Driver {
	case config.NotifyDriverSMTP:
		return NewSMTPNotifier(cfg.SMTP, logger)
	case config.NotifyDriverLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Notify.Driver)
	}
}
