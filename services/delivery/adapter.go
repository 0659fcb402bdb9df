// Package delivery sends issued verification codes over email or SMS.
package delivery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/mail"
	"github.com/synergypro/verifyd/services/otp"
	"go.uber.org/zap"
)

const (
	EmailTemplate  = "otp_verification"
	minPhoneDigits = 10
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type MailSender interface {
	SendTemplate(ctx context.Context, templateName string, to []string, subject string, data mail.TemplateData) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}

// Result reports a delivery the adapter refused before contacting a
// transport (Success false) or one it handed off (Success true).
type Result struct {
	Success bool
	Message string
}

type Adapter struct {
	mail    MailSender
	sms     SMSSender
	appName string
	expiry  time.Duration
	logger  *logging.Service
}

func NewAdapter(mailSender MailSender, smsSender SMSSender, appName string, expiry time.Duration, logger *logging.Service) *Adapter {
	return &Adapter{
		mail:    mailSender,
		sms:     smsSender,
		appName: appName,
		expiry:  expiry,
		logger:  logger,
	}
}

// Send validates destination for channel and dispatches code. Transport
// failures are returned as errors.
func (a *Adapter) Send(ctx context.Context, channel otp.Channel, destination, code string) (Result, error) {
	switch channel {
	case otp.ChannelEmail:
		return a.sendEmail(ctx, destination, code)
	case otp.ChannelMobile:
		return a.sendSMS(ctx, destination, code)
	default:
		return Result{Success: false, Message: "Unsupported delivery channel"}, nil
	}
}

func (a *Adapter) expiryMinutes() int {
	return int(a.expiry / time.Minute)
}

func (a *Adapter) sendEmail(ctx context.Context, address, code string) (Result, error) {
	if !ValidEmail(address) {
		a.logger.Warn("refusing to send code to malformed email address")
		return Result{Success: false, Message: "Invalid email format"}, nil
	}
	if a.mail == nil {
		return Result{}, fmt.Errorf("email delivery is not configured")
	}

	err := a.mail.SendTemplate(ctx, EmailTemplate, []string{address}, a.appName+" Email Verification", mail.TemplateData{
		"AppName":       a.appName,
		"Code":          code,
		"ExpiryMinutes": a.expiryMinutes(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to send verification email: %w", err)
	}

	return Result{Success: true, Message: "Email sent successfully"}, nil
}

func (a *Adapter) sendSMS(ctx context.Context, phone, code string) (Result, error) {
	digits := NormalizePhone(phone)
	if !ValidPhone(digits) {
		a.logger.Warn("refusing to send code to malformed phone number", zap.Int("digits", len(digits)))
		return Result{Success: false, Message: "Invalid phone number format"}, nil
	}
	if a.sms == nil {
		return Result{}, fmt.Errorf("sms delivery is not configured")
	}

	if err := a.sms.Send(ctx, digits, a.smsBody(code)); err != nil {
		return Result{}, fmt.Errorf("failed to send verification sms: %w", err)
	}

	return Result{Success: true, Message: "SMS sent successfully (simulated)"}, nil
}

func (a *Adapter) smsBody(code string) string {
	return fmt.Sprintf("Welcome to %s! 🌟\n\nYour verification code is: %s\n\nThis code will expire in %d minutes.\nIf you didn't request this code, please ignore this message.",
		a.appName, code, a.expiryMinutes())
}

// ValidEmail requires a local part, '@', and a dotted domain.
func ValidEmail(address string) bool {
	return emailPattern.MatchString(address)
}

// NormalizePhone strips everything except ASCII digits.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// ValidPhone requires at least ten digits once formatting is stripped.
func ValidPhone(phone string) bool {
	return len(NormalizePhone(phone)) >= minPhoneDigits
}
