package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"time"
)

const otpSubject = "Your One-Time Password (OTP) for Verification"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>Your One-Time Password (OTP)</h2>
  <p>Hello,</p>
  <p>You requested a One-Time Password for verification. Please use the following code:</p>
  <h3 style="background-color: #f2f2f2; padding: 10px; border-radius: 5px; text-align: center; font-size: 24px; letter-spacing: 2px;">
    <strong>{{.Code}}</strong>
  </h3>
  <p>This OTP is valid for a single use and for a limited time ({{.ValidFor}}).</p>
  <p>If you did not request this OTP, please ignore this email.</p>
  <hr style="border: 0; border-top: 1px solid #eee;">
  <p style="font-size: 0.9em; color: #777;">Thank you,<br>{{.Sender}}</p>
</div>
`))

type otpView struct {
	Code     string
	ValidFor string
	Sender   string
}

func renderOTPBody(code string, validFor time.Duration, sender string) (string, error) {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, otpView{
		Code:     code,
		ValidFor: humanDuration(validFor),
		Sender:   sender,
	}); err != nil {
		return "", fmt.Errorf("render otp template: %w", err)
	}
	return buf.String(), nil
}

// humanDuration renders 20s as "20 seconds" and 2m as "2 minutes".
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a limited time"
	case d < time.Minute:
		return plural(int(math.Round(d.Seconds())), "second")
	default:
		return plural(int(math.Round(d.Minutes())), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
