package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/otp"
)

func TestSweeper_RunOnce(t *testing.T) {
	store := credential.NewMemoryStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, credential.Key{UserID: 1, Channel: otp.ChannelEmail}, "111111", now.Add(-10*time.Minute)))
	require.NoError(t, store.Put(ctx, credential.Key{UserID: 2, Channel: otp.ChannelEmail}, "222222", now.Add(-time.Minute)))
	store.PutPayload(credential.Key{UserID: 3, Channel: otp.ChannelMobile}, "junk")

	sweeper := NewSweeper(store, "@every 5m", 5*time.Minute, nil)
	require.NotNil(t, sweeper)
	sweeper.now = func() time.Time { return now }

	removed, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 1, store.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(credential.NewMemoryStore(), "@every 1h", 5*time.Minute, nil)
	require.NotNil(t, sweeper)

	require.NoError(t, sweeper.Start())
	assert.Len(t, sweeper.cron.Entries(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sweeper.Stop(ctx))
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(credential.NewMemoryStore(), "every so often", 5*time.Minute, nil)
	require.NotNil(t, sweeper)

	err := sweeper.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to schedule pending code sweep")
}

func TestNewSweeper_StoreWithoutSweep(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	store := credential.NewRedisStore(client, "test", 10*time.Minute)
	assert.Nil(t, NewSweeper(store, "@every 5m", 5*time.Minute, nil))
}
