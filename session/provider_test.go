package session

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/testutils"
)

func testSessionConfig(store string) config.SessionConfig {
	return config.SessionConfig{
		Enabled:  true,
		Store:    store,
		Name:     "test-session",
		MaxAge:   time.Hour,
		HttpOnly: true,
		SameSite: "strict",
		Path:     "/",
	}
}

func TestNewManager(t *testing.T) {
	t.Run("session disabled", func(t *testing.T) {
		manager, err := NewManager(config.SessionConfig{Enabled: false}, nil, nil, nil)

		require.NoError(t, err)
		assert.Nil(t, manager)
	})

	t.Run("memory store", func(t *testing.T) {
		cfg := testSessionConfig("memory")

		manager, err := NewManager(cfg, nil, nil, nil)

		require.NoError(t, err)
		require.NotNil(t, manager)
		assert.Equal(t, cfg, manager.config)
		assert.Equal(t, "test-session", manager.Cookie.Name)
		assert.Equal(t, time.Hour, manager.Lifetime)
		assert.True(t, manager.Cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, manager.Cookie.SameSite)
	})

	t.Run("database store", func(t *testing.T) {
		db := testutils.SetupTestDB(t)

		manager, err := NewManager(testSessionConfig("database"), nil, db, nil)

		require.NoError(t, err)
		require.NotNil(t, manager)
		assert.True(t, db.Migrator().HasTable("sessions"))
	})

	t.Run("database store without database", func(t *testing.T) {
		manager, err := NewManager(testSessionConfig("database"), nil, nil, nil)

		require.Error(t, err)
		assert.Nil(t, manager)
		assert.Contains(t, err.Error(), "requires a database connection")
	})

	t.Run("unsupported store", func(t *testing.T) {
		manager, err := NewManager(testSessionConfig("cookie"), nil, nil, nil)

		require.Error(t, err)
		assert.Nil(t, manager)
		assert.Contains(t, err.Error(), "unsupported session store: cookie")
	})

	t.Run("custom store option wins", func(t *testing.T) {
		store := NewMemoryStore()

		manager, err := NewManager(testSessionConfig("database"), &Options{Store: store}, nil, nil)

		require.NoError(t, err)
		assert.Same(t, store, manager.Store)
	})
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("strict"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("lax"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite(""))
}

func TestNewDatabaseStore_NilDB(t *testing.T) {
	store, err := NewDatabaseStore(nil)

	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "database connection cannot be nil")
}
