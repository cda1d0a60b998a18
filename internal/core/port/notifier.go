package port

import (
	"context"
	"time"
)

// OTPMessage carries the data rendered into a verification message.
type OTPMessage struct {
	To        string
	Code      string
	ExpiresAt time.Time
	ValidFor  time.Duration
}

// Notifier delivers verification codes to an address.
type Notifier interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}
