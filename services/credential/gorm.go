package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PendingCode struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_pending_codes_user_channel"`
	Channel   string    `gorm:"size:16;not null;uniqueIndex:idx_pending_codes_user_channel"`
	Payload   string    `gorm:"size:128;not null"`
	IssuedAt  time.Time `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PendingCode) TableName() string {
	return "pending_codes"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Put(ctx context.Context, key Key, code string, issuedAt time.Time) error {
	return s.putPayload(ctx, key, EncodePayload(code, issuedAt), issuedAt)
}

func (s *GormStore) putPayload(ctx context.Context, key Key, payload string, issuedAt time.Time) error {
	row := PendingCode{
		UserID:   key.UserID,
		Channel:  string(key.Channel),
		Payload:  payload,
		IssuedAt: issuedAt.UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "issued_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store pending code: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, key Key) (*Record, error) {
	var row PendingCode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND channel = ?", key.UserID, string(key.Channel)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending code: %w", err)
	}
	return DecodePayload(row.Payload)
}

func (s *GormStore) Delete(ctx context.Context, key Key) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND channel = ?", key.UserID, string(key.Channel)).
		Delete(&PendingCode{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending code: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("issued_at < ?", cutoff.UTC()).Delete(&PendingCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep pending codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
