package users

import (
	"time"

	"github.com/synergypro/verifyd/services/otp"
)

type User struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Username                string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email                   string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Phone                   *string    `gorm:"size:20;uniqueIndex" json:"phone,omitempty"`
	Password                string     `gorm:"size:255;not null" json:"-"`
	EmailVerified           bool       `gorm:"not null;default:false" json:"email_verified"`
	MobileVerified          bool       `gorm:"not null;default:false" json:"mobile_verified"`
	EmailVerifiedAt         *time.Time `json:"email_verified_at,omitempty"`
	MobileVerifiedAt        *time.Time `json:"mobile_verified_at,omitempty"`
	LastVerificationAttempt *time.Time `json:"last_verification_attempt,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Verified reports the flag for channel; unknown channels are never verified.
func (u *User) Verified(channel otp.Channel) bool {
	switch channel {
	case otp.ChannelEmail:
		return u.EmailVerified
	case otp.ChannelMobile:
		return u.MobileVerified
	default:
		return false
	}
}

func (u *User) VerifiedAt(channel otp.Channel) *time.Time {
	switch channel {
	case otp.ChannelEmail:
		return u.EmailVerifiedAt
	case otp.ChannelMobile:
		return u.MobileVerifiedAt
	default:
		return nil
	}
}

// Destination is the address a code for channel is delivered to.
func (u *User) Destination(channel otp.Channel) string {
	switch channel {
	case otp.ChannelEmail:
		return u.Email
	case otp.ChannelMobile:
		if u.Phone != nil {
			return *u.Phone
		}
	}
	return ""
}
