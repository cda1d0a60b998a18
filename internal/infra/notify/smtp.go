package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/config"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
)

const dialTimeout = 10 * time.Second

type deliverFunc func(ctx context.Context, from string, to string, msg []byte) error

// SMTPNotifier sends OTP codes as HTML email.
type SMTPNotifier struct {
	cfg     config.SMTPSettings
	from    mail.Address
	logger  *zap.Logger
	deliver deliverFunc
}

// NewSMTPNotifier validates the sender address and returns a notifier.
func NewSMTPNotifier(cfg config.SMTPSettings, logger *zap.Logger) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse smtp from address: %w", err)
	}
	if cfg.FromName != "" {
		from.Name = cfg.FromName
	}

	n := &SMTPNotifier{
		cfg:    cfg,
		from:   *from,
		logger: logger,
	}
	n.deliver = n.send

	return n, nil
}

// SendOTP renders and delivers a single verification email.
func (n *SMTPNotifier) SendOTP(ctx context.Context, msg port.OTPMessage) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("parse recipient: %w", err)
	}

	body, err := renderOTPBody(msg.Code, msg.ValidFor, n.from.Name)
	if err != nil {
		return err
	}

	raw := buildMessage(n.from, *to, otpSubject, body)
	if err := n.deliver(ctx, n.from.Address, to.Address, raw); err != nil {
		return fmt.Errorf("smtp deliver: %w", err)
	}

	n.logger.Info("otp email sent",
		zap.String("email", logger.MaskEmail(to.Address)),
		zap.Time("expires_at", msg.ExpiresAt),
	)

	return nil
}

func buildMessage(from, to mail.Address, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(htmlBody, "\n", "\r\n"))
	return []byte(b.String())
}

// send dials with the request context so a cancelled request aborts delivery.
func (n *SMTPNotifier) send(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if n.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return client.Quit()
}

var _ port.Notifier = (*SMTPNotifier)(nil)
