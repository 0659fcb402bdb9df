// Package credential stores single-use pending verification codes keyed by
// user and channel.
package credential

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/synergypro/verifyd/services/otp"
)

var ErrCorruptRecord = errors.New("corrupt pending code record")

const (
	// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant RFC 3339 can
	// express.
	maxUnixSeconds = 253402300799

	// MaxClockSkew is how far in the future an issue time may lie before the
	// record is treated as corrupt.
	MaxClockSkew = time.Minute
)

// Key identifies the single live pending code for a user on a channel.
type Key struct {
	UserID  uint
	Channel otp.Channel
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%s", k.UserID, k.Channel)
}

type Record struct {
	Code     string
	IssuedAt time.Time
}

// Expired reports whether more than ttl has elapsed since issue.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.IssuedAt) > ttl
}

// Check rejects a record stamped further ahead of now than MaxClockSkew,
// which would otherwise never expire.
func (r Record) Check(now time.Time) error {
	if r.IssuedAt.After(now.Add(MaxClockSkew)) {
		return ErrCorruptRecord
	}
	return nil
}

// Store persists at most one pending code per key. Get returns nil, nil when
// no record exists and ErrCorruptRecord when the stored payload is unreadable.
// Delete is idempotent.
type Store interface {
	Put(ctx context.Context, key Key, code string, issuedAt time.Time) error
	Get(ctx context.Context, key Key) (*Record, error)
	Delete(ctx context.Context, key Key) error
}

// Sweeper is implemented by stores that can evict stale records in bulk.
type Sweeper interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// EncodePayload renders the "code:timestamp" form written by every store.
func EncodePayload(code string, issuedAt time.Time) string {
	return code + ":" + issuedAt.UTC().Format(time.RFC3339Nano)
}

// DecodePayload splits on the first ':' only, so RFC 3339 timestamps survive.
// The timestamp may also be decimal Unix seconds.
func DecodePayload(payload string) (*Record, error) {
	code, stamp, ok := strings.Cut(strings.TrimSpace(payload), ":")
	if !ok || code == "" || stamp == "" {
		return nil, ErrCorruptRecord
	}

	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return nil, ErrCorruptRecord
		}
	}

	issuedAt, err := parseTimestamp(stamp)
	if err != nil {
		return nil, ErrCorruptRecord
	}

	return &Record{Code: code, IssuedAt: issuedAt}, nil
}

func parseTimestamp(stamp string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
		return t, nil
	}

	seconds, err := strconv.ParseFloat(stamp, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(seconds) || seconds < 0 || seconds > maxUnixSeconds {
		return time.Time{}, fmt.Errorf("timestamp out of range: %s", stamp)
	}

	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}
