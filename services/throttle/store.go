package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store loads and saves ledger state. A missing ledger loads as the zero State.
type Store interface {
	Load(ctx context.Context, userID uint, key string) (State, error)
	Save(ctx context.Context, userID uint, key string, state State) error
}

// SessionValues is the subset of an scs session manager the session store uses.
type SessionValues interface {
	GetString(ctx context.Context, key string) string
	Put(ctx context.Context, key string, val any)
	Token(ctx context.Context) string
}

const defaultSessionTTL = 24 * time.Hour

// SessionStore keeps ledgers in the caller's session, so they last as long
// as the session does. The context must carry a loaded session.
//
// scs hands every request its own copy of the session data and commits it
// after the response, so two overlapping requests on one cookie would each
// read the ledger as it was before the other. Saves are therefore also kept
// in process, keyed by session token, and Load prefers that copy. Running
// more than one replica needs the durable scope.
type SessionStore struct {
	session SessionValues
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	latest    map[string]savedState
	lastPrune time.Time
}

type savedState struct {
	state   State
	savedAt time.Time
}

type sessionEnvelope struct {
	UserID uint  `json:"user_id"`
	State  State `json:"state"`
}

// NewSessionStore keeps in-process copies for ttl after their last save,
// normally the session lifetime.
func NewSessionStore(session SessionValues, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		session: session,
		ttl:     ttl,
		now:     time.Now,
		latest:  make(map[string]savedState),
	}
}

func sessionKey(token string, userID uint, key string) string {
	return token + "/" + memoryKey(userID, key)
}

func (s *SessionStore) Load(ctx context.Context, userID uint, key string) (State, error) {
	if token := s.session.Token(ctx); token != "" {
		s.mu.Lock()
		saved, ok := s.latest[sessionKey(token, userID, key)]
		s.mu.Unlock()
		if ok {
			return saved.state, nil
		}
	}

	raw := s.session.GetString(ctx, key)
	if raw == "" {
		return State{}, nil
	}

	var envelope sessionEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return State{}, fmt.Errorf("failed to decode throttle state: %w", err)
	}

	// a session reused by a different user starts clean
	if envelope.UserID != userID {
		return State{}, nil
	}
	return envelope.State, nil
}

func (s *SessionStore) Save(ctx context.Context, userID uint, key string, state State) error {
	raw, err := json.Marshal(sessionEnvelope{UserID: userID, State: state})
	if err != nil {
		return fmt.Errorf("failed to encode throttle state: %w", err)
	}
	s.session.Put(ctx, key, string(raw))

	if token := s.session.Token(ctx); token != "" {
		now := s.now()
		s.mu.Lock()
		s.latest[sessionKey(token, userID, key)] = savedState{state: state, savedAt: now}
		s.pruneLocked(now)
		s.mu.Unlock()
	}
	return nil
}

func (s *SessionStore) pruneLocked(now time.Time) {
	if now.Sub(s.lastPrune) < time.Minute {
		return
	}
	s.lastPrune = now
	for k, saved := range s.latest {
		if now.Sub(saved.savedAt) > s.ttl {
			delete(s.latest, k)
		}
	}
}

type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func memoryKey(userID uint, key string) string {
	return strconv.FormatUint(uint64(userID), 10) + "/" + key
}

func (s *MemoryStore) Load(_ context.Context, userID uint, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[memoryKey(userID, key)], nil
}

func (s *MemoryStore) Save(_ context.Context, userID uint, key string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[memoryKey(userID, key)] = state
	return nil
}

// Record is the durable ledger row used when throttling must outlive sessions.
type Record struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"not null;uniqueIndex:idx_verification_throttles_user_key"`
	ThrottleKey   string `gorm:"size:64;not null;uniqueIndex:idx_verification_throttles_user_key"`
	Count         int    `gorm:"not null;default:0"`
	LastAttempt   *time.Time
	CooldownUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Record) TableName() string {
	return "verification_throttles"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(ctx context.Context, userID uint, key string) (State, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("user_id = ? AND throttle_key = ?", userID, key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load throttle state: %w", err)
	}

	return State{
		Count:         record.Count,
		LastAttempt:   record.LastAttempt,
		CooldownUntil: record.CooldownUntil,
	}, nil
}

func (s *GormStore) Save(ctx context.Context, userID uint, key string, state State) error {
	record := Record{
		UserID:        userID,
		ThrottleKey:   key,
		Count:         state.Count,
		LastAttempt:   state.LastAttempt,
		CooldownUntil: state.CooldownUntil,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "throttle_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "last_attempt", "cooldown_until", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save throttle state: %w", err)
	}
	return nil
}
