// Package verification issues one-time codes for a user's email address or
// mobile number and confirms them.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/delivery"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/metrics"
	"github.com/synergypro/verifyd/services/otp"
	"github.com/synergypro/verifyd/services/throttle"
	"github.com/synergypro/verifyd/services/users"
	"go.uber.org/zap"
)

const (
	opGenerate = "generate"
	opResend   = "resend"
	opVerify   = "verify"
	opContact  = "contact"
)

// UserDirectory is the slice of the user store verification needs.
type UserDirectory interface {
	GetUser(ctx context.Context, id uint) (*users.User, error)
	SetVerified(ctx context.Context, id uint, channel otp.Channel, at time.Time) error
	SetLastAttempt(ctx context.Context, id uint, at time.Time) error
	UpdateContact(ctx context.Context, id uint, channel otp.Channel, value string) error
}

type Sender interface {
	Send(ctx context.Context, channel otp.Channel, destination, code string) (delivery.Result, error)
}

type Result struct {
	Message string      `json:"message"`
	Channel otp.Channel `json:"type,omitempty"`
}

type ChannelStatus struct {
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at"`
}

type StatusResult struct {
	Email  ChannelStatus `json:"email"`
	Mobile ChannelStatus `json:"mobile"`
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

type Service struct {
	users     UserDirectory
	codes     credential.Store
	throttles throttle.Store
	sender    Sender
	generator otp.Generator
	policy    throttle.Policy
	expiry    time.Duration
	metrics   metrics.Recorder
	logger    *logging.Service
	now       func() time.Time
	locks     *keyedMutex
}

func NewService(
	cfg config.VerificationConfig,
	directory UserDirectory,
	codes credential.Store,
	throttles throttle.Store,
	sender Sender,
	generator otp.Generator,
	logger *logging.Service,
	opts ...Option,
) *Service {
	s := &Service{
		users:     directory,
		codes:     codes,
		throttles: throttles,
		sender:    sender,
		generator: generator,
		policy: throttle.Policy{
			AttemptLimit:   cfg.AttemptLimit,
			Cooldown:       cfg.Cooldown,
			GlobalCooldown: cfg.GlobalCooldown,
		},
		expiry:  cfg.CodeExpiry,
		metrics: metrics.Nop{},
		logger:  logger,
		now:     time.Now,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate issues and delivers a fresh code for channel, replacing any
// pending one.
func (s *Service) Generate(ctx context.Context, userID uint, channel string) (*Result, error) {
	return s.issue(ctx, opGenerate, userID, channel)
}

// Resend behaves like Generate; the same cooldowns apply.
func (s *Service) Resend(ctx context.Context, userID uint, channel string) (*Result, error) {
	return s.issue(ctx, opResend, userID, channel)
}

func (s *Service) issue(ctx context.Context, op string, userID uint, channel string) (*Result, error) {
	ch, err := otp.ParseChannel(channel)
	if err != nil {
		return nil, s.reject(op, ErrInvalidType)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Verified(ch) {
		return nil, s.reject(op, &alreadyVerifiedError{channel: ch})
	}

	now := s.now()
	if d := s.policy.CheckGlobal(user.LastVerificationAttempt, now); !d.Allowed() {
		return nil, s.reject(op, throttleError(d))
	}

	state, err := s.throttles.Load(ctx, userID, ch.ThrottleKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load throttle state: %w", err)
	}
	next, decision := s.policy.Check(state, user.LastVerificationAttempt, now)
	if !next.Equal(state) {
		if err := s.throttles.Save(ctx, userID, ch.ThrottleKey(), next); err != nil {
			return nil, fmt.Errorf("failed to save throttle state: %w", err)
		}
	}
	if !decision.Allowed() {
		return nil, s.reject(op, throttleError(decision))
	}

	destination := user.Destination(ch)
	if destination == "" {
		return nil, s.reject(op, ErrContactUnavailable)
	}

	code, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	key := credential.Key{UserID: userID, Channel: ch}
	if err := s.codes.Put(ctx, key, code, now); err != nil {
		return nil, fmt.Errorf("failed to store pending code: %w", err)
	}

	started := time.Now()
	sent, err := s.sender.Send(ctx, ch, destination, code)
	s.metrics.DeliveryDuration(ch.String(), time.Since(started))

	switch {
	case err != nil:
		s.discard(ctx, key)
		s.metrics.Rejected(op, reason(ErrDeliveryFailed))
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	case !sent.Success:
		s.discard(ctx, key)
		return nil, s.reject(op, &DeliveryError{Message: sent.Message})
	}

	if err := s.users.SetLastAttempt(ctx, userID, now); err != nil {
		s.discard(ctx, key)
		return nil, fmt.Errorf("failed to record verification attempt: %w", err)
	}

	s.metrics.CodeIssued(ch.String())
	s.logger.Info("verification code issued",
		zap.String("operation", op),
		zap.Uint("user_id", userID),
		zap.String("channel", ch.String()),
	)

	return &Result{Message: sentMessage(ch)}, nil
}

// Verify consumes the pending code for channel when code matches it.
func (s *Service) Verify(ctx context.Context, userID uint, channel, code string) (*Result, error) {
	if channel == "" || code == "" {
		return nil, s.reject(opVerify, ErrMissingParameters)
	}
	ch, err := otp.ParseChannel(channel)
	if err != nil {
		return nil, s.reject(opVerify, ErrInvalidType)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	key := credential.Key{UserID: userID, Channel: ch}
	record, err := s.codes.Get(ctx, key)
	if err == nil && record != nil {
		err = record.Check(now)
	}
	switch {
	case errors.Is(err, credential.ErrCorruptRecord):
		s.logger.Warn("purging malformed pending code", zap.Uint("user_id", userID), zap.String("channel", ch.String()))
		s.discard(ctx, key)
		return nil, s.reject(opVerify, ErrInvalidFormat)
	case err != nil:
		return nil, fmt.Errorf("failed to load pending code: %w", err)
	case record == nil:
		return nil, s.reject(opVerify, ErrCodeNotFound)
	}

	if record.Expired(now, s.expiry) {
		s.discard(ctx, key)
		return nil, s.reject(opVerify, ErrCodeExpired)
	}

	if code != record.Code {
		return nil, s.reject(opVerify, ErrInvalidCode)
	}

	if err := s.users.SetVerified(ctx, userID, ch, now); err != nil {
		return nil, fmt.Errorf("failed to mark %s verified: %w", ch, err)
	}
	if err := s.codes.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to consume pending code: %w", err)
	}

	s.metrics.Verified(ch.String())
	s.logger.Info("channel verified", zap.Uint("user_id", userID), zap.String("channel", ch.String()))

	return &Result{Message: verifiedMessage(ch), Channel: ch}, nil
}

func (s *Service) Status(ctx context.Context, userID uint) (*StatusResult, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &StatusResult{
		Email: ChannelStatus{
			Verified:   user.EmailVerified,
			VerifiedAt: user.EmailVerifiedAt,
		},
		Mobile: ChannelStatus{
			Verified:   user.MobileVerified,
			VerifiedAt: user.MobileVerifiedAt,
		},
	}, nil
}

// ChangeContact replaces an unverified email address or phone number and
// drops any code already sent to the old one.
func (s *Service) ChangeContact(ctx context.Context, userID uint, channel, value string) error {
	if channel == "" || value == "" {
		return s.reject(opContact, ErrMissingParameters)
	}
	ch, err := otp.ParseChannel(channel)
	if err != nil {
		return s.reject(opContact, ErrInvalidType)
	}

	switch ch {
	case otp.ChannelEmail:
		if !delivery.ValidEmail(value) {
			return s.reject(opContact, &ContactError{Message: "Invalid email format"})
		}
	case otp.ChannelMobile:
		if !delivery.ValidPhone(value) {
			return s.reject(opContact, &ContactError{Message: "Invalid phone number format"})
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.users.UpdateContact(ctx, userID, ch, value); err != nil {
		if errors.Is(err, ErrContactLocked) {
			return s.reject(opContact, err)
		}
		return fmt.Errorf("failed to update contact: %w", err)
	}

	s.discard(ctx, credential.Key{UserID: userID, Channel: ch})
	return nil
}

func (s *Service) discard(ctx context.Context, key credential.Key) {
	if err := s.codes.Delete(ctx, key); err != nil {
		s.logger.Error("failed to delete pending code",
			zap.Uint("user_id", key.UserID),
			zap.String("channel", key.Channel.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) reject(op string, err error) error {
	s.metrics.Rejected(op, reason(err))
	return err
}

func throttleError(d throttle.Decision) *ThrottleError {
	var cause error
	switch d.Outcome {
	case throttle.DenyGlobalCooldown:
		cause = ErrGlobalCooldown
	case throttle.DenyRateLimited:
		cause = ErrRateLimited
	default:
		cause = ErrTooManyAttempts
	}
	return &ThrottleError{Reason: cause, RetryAfter: d.RetryAfter}
}

func sentMessage(ch otp.Channel) string {
	if ch == otp.ChannelMobile {
		return "Verification code sent to your mobile number"
	}
	return "Verification code sent to your email"
}

func verifiedMessage(ch otp.Channel) string {
	if ch == otp.ChannelMobile {
		return "Mobile number verified successfully"
	}
	return "Email verified successfully"
}
