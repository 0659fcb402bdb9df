// Package users owns the user records that carry verification state.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/otp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrEmailTaken            = errors.New("email already exists")
	ErrContactLocked         = errors.New("contact cannot be changed after it has been verified")
)

var Module = fx.Options(
	fx.Provide(NewService),
)

type Service struct {
	db         *gorm.DB
	bcryptCost int
	logger     *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	cost := cfg.Auth.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{db: db, bcryptCost: cost, logger: logger}
}

type CreateParams struct {
	Username string
	Email    string
	Phone    string
	Password string
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return nil, ErrPasswordHashingFailed
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", params.Username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", strings.ToLower(params.Email)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	user := &User{
		Username: params.Username,
		Email:    strings.ToLower(params.Email),
		Password: string(hash),
	}
	if params.Phone != "" {
		phone := params.Phone
		user.Phone = &phone
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID))
	return user, nil
}

// Authenticate matches identifier against username or email.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn("authentication failed", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// SetVerified flips the channel flag once; later calls leave the original
// timestamp in place.
func (s *Service) SetVerified(ctx context.Context, id uint, channel otp.Channel, at time.Time) error {
	var flag, stamp string
	switch channel {
	case otp.ChannelEmail:
		flag, stamp = "email_verified", "email_verified_at"
	case otp.ChannelMobile:
		flag, stamp = "mobile_verified", "mobile_verified_at"
	default:
		return otp.ErrInvalidChannel
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND "+flag+" = ?", id, false).
		Updates(map[string]any{flag: true, stamp: at})
	if result.Error != nil {
		return fmt.Errorf("failed to mark %s verified: %w", channel, result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) SetLastAttempt(ctx context.Context, id uint, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("last_verification_attempt", at)
	if result.Error != nil {
		return fmt.Errorf("failed to record verification attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) GetLastAttempt(ctx context.Context, id uint) (*time.Time, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.LastVerificationAttempt, nil
}

// UpdateContact changes the email or phone number for channel. A verified
// contact is locked.
func (s *Service) UpdateContact(ctx context.Context, id uint, channel otp.Channel, value string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Verified(channel) {
		return ErrContactLocked
	}

	var column string
	var update any
	switch channel {
	case otp.ChannelEmail:
		column, update = "email", strings.ToLower(value)
	case otp.ChannelMobile:
		column, update = "phone", value
	default:
		return otp.ErrInvalidChannel
	}

	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update(column, update).Error; err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}
