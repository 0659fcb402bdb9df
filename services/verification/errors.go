package verification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/synergypro/verifyd/services/otp"
	"github.com/synergypro/verifyd/services/users"
)

var (
	ErrInvalidType        = errors.New("invalid verification type")
	ErrAlreadyVerified    = errors.New("channel already verified")
	ErrGlobalCooldown     = errors.New("global verification cooldown active")
	ErrRateLimited        = errors.New("verification rate limited")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrMissingParameters  = errors.New("missing required parameters")
	ErrCodeNotFound       = errors.New("no pending code")
	ErrInvalidFormat      = errors.New("pending code is malformed")
	ErrCodeExpired        = errors.New("pending code expired")
	ErrInvalidCode        = errors.New("invalid code")
	ErrDeliveryFailed     = errors.New("code delivery failed")
	ErrInvalidContact     = errors.New("invalid contact")
	ErrContactUnavailable = errors.New("no destination for channel")

	ErrContactLocked = users.ErrContactLocked
)

type alreadyVerifiedError struct {
	channel otp.Channel
}

func (e *alreadyVerifiedError) Error() string {
	return fmt.Sprintf("%s already verified", e.channel)
}

func (e *alreadyVerifiedError) Unwrap() error {
	return ErrAlreadyVerified
}

func (e *alreadyVerifiedError) label() string {
	name := string(e.channel)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// ContactError rejects a malformed email address or phone number.
type ContactError struct {
	Message string
}

func (e *ContactError) Error() string {
	return e.Message
}

func (e *ContactError) Unwrap() error {
	return ErrInvalidContact
}

// ThrottleError is returned for cooldown rejections. It unwraps to
// ErrGlobalCooldown, ErrRateLimited or ErrTooManyAttempts.
type ThrottleError struct {
	Reason     error
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Reason, e.RetryAfter)
}

func (e *ThrottleError) Unwrap() error {
	return e.Reason
}

// DeliveryError carries the adapter's refusal message, e.g. a malformed
// destination address.
type DeliveryError struct {
	Message string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// UserMessage maps a rejection to the text shown to the caller. ok is false
// for unexpected errors, which must not be shown.
func UserMessage(err error) (msg string, ok bool) {
	var throttled *ThrottleError
	if errors.As(err, &throttled) {
		switch {
		case errors.Is(throttled.Reason, ErrGlobalCooldown):
			return "Please wait before requesting another code", true
		default:
			return fmt.Sprintf("Too many attempts. Please try again in %d minutes", int(throttled.RetryAfter.Seconds())/60), true
		}
	}

	var refused *DeliveryError
	if errors.As(err, &refused) {
		return refused.Message, true
	}

	var contact *ContactError
	if errors.As(err, &contact) {
		return contact.Message, true
	}

	var already *alreadyVerifiedError
	if errors.As(err, &already) {
		return already.label() + " is already verified", true
	}

	switch {
	case errors.Is(err, ErrInvalidType):
		return "Invalid verification type", true
	case errors.Is(err, ErrMissingParameters):
		return "Missing required parameters", true
	case errors.Is(err, ErrCodeNotFound):
		return "No OTP found. Please request a new code", true
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid OTP format. Please request a new code", true
	case errors.Is(err, ErrCodeExpired):
		return "OTP has expired. Please request a new code", true
	case errors.Is(err, ErrInvalidCode):
		return "Invalid OTP", true
	case errors.Is(err, ErrContactUnavailable):
		return "No contact address on file for this channel", true
	case errors.Is(err, ErrContactLocked):
		return "Contact details cannot be changed after verification", true
	}
	return "", false
}

// reason is the metrics label for a rejection.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidType):
		return "invalid_type"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrGlobalCooldown):
		return "global_cooldown"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrMissingParameters):
		return "missing_parameters"
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrInvalidContact):
		return "invalid_contact"
	case errors.Is(err, ErrContactLocked):
		return "contact_locked"
	case errors.Is(err, ErrContactUnavailable):
		return "no_destination"
	}
	var refused *DeliveryError
	if errors.As(err, &refused) {
		return "delivery_refused"
	}
	if errors.Is(err, ErrDeliveryFailed) {
		return "delivery_failed"
	}
	return "internal"
}
