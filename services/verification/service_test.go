package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/delivery"
	"github.com/synergypro/verifyd/services/otp"
	"github.com/synergypro/verifyd/services/throttle"
	"github.com/synergypro/verifyd/services/users"
	"github.com/synergypro/verifyd/testutils"
)

type fixedGenerator struct {
	code string
}

func (g fixedGenerator) Generate() (string, error) {
	return g.code, nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, channel otp.Channel, destination, code string) (delivery.Result, error) {
	args := m.Called(ctx, channel, destination, code)
	return args.Get(0).(delivery.Result), args.Error(1)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc    *Service
	users  *users.Service
	codes  *credential.MemoryStore
	sender *mockSender
	clock  *testClock
	user   *users.User
	t0     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithThrottles(t, throttle.NewMemoryStore())
}

func newFixtureWithThrottles(t *testing.T, throttles throttle.Store) *fixture {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &users.User{})
	directory := users.NewService(cfg, db, nil)

	valid := testutils.TestUsers.Valid
	user, err := directory.Create(context.Background(), users.CreateParams{
		Username: valid.Username,
		Email:    valid.Email,
		Phone:    valid.Phone,
		Password: valid.Password,
	})
	require.NoError(t, err)

	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := &testClock{now: t0}
	codes := credential.NewMemoryStore()
	sender := &mockSender{}

	svc := NewService(
		cfg.Verification,
		directory,
		codes,
		throttles,
		sender,
		fixedGenerator{code: "482913"},
		nil,
		WithClock(clock.Now),
	)

	return &fixture{svc: svc, users: directory, codes: codes, sender: sender, clock: clock, user: user, t0: t0}
}

func (f *fixture) at(offset time.Duration) {
	f.clock.Set(f.t0.Add(offset))
}

func (f *fixture) expectSend(channel otp.Channel) {
	f.sender.On("Send", mock.Anything, channel, mock.Anything, "482913").
		Return(delivery.Result{Success: true, Message: "sent"}, nil)
}

func (f *fixture) pending(t *testing.T, channel otp.Channel) *credential.Record {
	t.Helper()
	record, err := f.codes.Get(context.Background(), credential.Key{UserID: f.user.ID, Channel: channel})
	require.NoError(t, err)
	return record
}

func TestService_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)

	res, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)
	assert.Equal(t, "Verification code sent to your email", res.Message)
	f.sender.AssertCalled(t, "Send", mock.Anything, otp.ChannelEmail, "test@example.com", "482913")

	f.at(10 * time.Second)
	_, err = f.svc.Verify(ctx, f.user.ID, "email", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
	require.NotNil(t, f.pending(t, otp.ChannelEmail))

	f.at(20 * time.Second)
	res, err = f.svc.Verify(ctx, f.user.ID, "email", "482913")
	require.NoError(t, err)
	assert.Equal(t, "Email verified successfully", res.Message)
	assert.Equal(t, otp.ChannelEmail, res.Channel)
	assert.Nil(t, f.pending(t, otp.ChannelEmail))

	status, err := f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, status.Email.Verified)
	require.NotNil(t, status.Email.VerifiedAt)
	assert.True(t, f.t0.Add(20*time.Second).Equal(*status.Email.VerifiedAt))
	assert.False(t, status.Mobile.Verified)
	assert.Nil(t, status.Mobile.VerifiedAt)

	f.at(21 * time.Second)
	_, err = f.svc.Generate(ctx, f.user.ID, "email")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	msg, ok := UserMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Email is already verified", msg)
}

func TestService_Generate_InvalidType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Generate(context.Background(), f.user.ID, "fax")
	assert.ErrorIs(t, err, ErrInvalidType)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Generate_GlobalCooldownAcrossChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)
	f.expectSend(otp.ChannelMobile)

	_, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)

	f.at(30 * time.Second)
	_, err = f.svc.Generate(ctx, f.user.ID, "mobile")
	require.ErrorIs(t, err, ErrGlobalCooldown)

	var throttled *ThrottleError
	require.True(t, errors.As(err, &throttled))
	assert.Equal(t, 30*time.Second, throttled.RetryAfter)
	msg, _ := UserMessage(err)
	assert.Equal(t, "Please wait before requesting another code", msg)
	assert.Nil(t, f.pending(t, otp.ChannelMobile))

	f.at(61 * time.Second)
	res, err := f.svc.Generate(ctx, f.user.ID, "mobile")
	require.NoError(t, err)
	assert.Equal(t, "Verification code sent to your mobile number", res.Message)
	f.sender.AssertCalled(t, "Send", mock.Anything, otp.ChannelMobile, "1234567890", "482913")
}

func TestService_Generate_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)

	for i := 0; i < 3; i++ {
		f.at(time.Duration(i) * 61 * time.Second)
		_, err := f.svc.Generate(ctx, f.user.ID, "email")
		require.NoError(t, err, "attempt %d", i+1)
	}

	f.at(3 * 61 * time.Second)
	_, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.ErrorIs(t, err, ErrTooManyAttempts)
	msg, _ := UserMessage(err)
	assert.Equal(t, "Too many attempts. Please try again in 15 minutes", msg)

	f.at(4 * 61 * time.Second)
	_, err = f.svc.Generate(ctx, f.user.ID, "email")
	require.ErrorIs(t, err, ErrRateLimited)
	msg, _ = UserMessage(err)
	assert.Equal(t, "Too many attempts. Please try again in 13 minutes", msg)

	f.at(3*61*time.Second + 15*time.Minute)
	_, err = f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)

	f.sender.AssertNumberOfCalls(t, "Send", 4)
}

func TestService_Generate_ReplacesPendingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)

	_, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)

	f.at(2 * time.Minute)
	_, err = f.svc.Resend(ctx, f.user.ID, "email")
	require.NoError(t, err)

	record := f.pending(t, otp.ChannelEmail)
	require.NotNil(t, record)
	assert.True(t, f.t0.Add(2*time.Minute).Equal(record.IssuedAt))
}

func TestService_Generate_DeliveryFailures(t *testing.T) {
	t.Run("adapter refuses destination", func(t *testing.T) {
		f := newFixture(t)
		f.sender.On("Send", mock.Anything, otp.ChannelEmail, mock.Anything, "482913").
			Return(delivery.Result{Success: false, Message: "Invalid email format"}, nil)

		_, err := f.svc.Generate(context.Background(), f.user.ID, "email")

		var refused *DeliveryError
		require.True(t, errors.As(err, &refused))
		assert.Equal(t, "Invalid email format", refused.Message)
		assert.Nil(t, f.pending(t, otp.ChannelEmail))

		last, err := f.users.GetLastAttempt(context.Background(), f.user.ID)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("transport error", func(t *testing.T) {
		f := newFixture(t)
		f.sender.On("Send", mock.Anything, otp.ChannelEmail, mock.Anything, "482913").
			Return(delivery.Result{}, errors.New("smtp: connection refused"))

		_, err := f.svc.Generate(context.Background(), f.user.ID, "email")

		assert.ErrorIs(t, err, ErrDeliveryFailed)
		_, ok := UserMessage(err)
		assert.False(t, ok)
		assert.Nil(t, f.pending(t, otp.ChannelEmail))
	})
}

func TestService_Verify_Rejections(t *testing.T) {
	t.Run("missing parameters", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Verify(context.Background(), f.user.ID, "email", "")
		assert.ErrorIs(t, err, ErrMissingParameters)
		_, err = f.svc.Verify(context.Background(), f.user.ID, "", "123456")
		assert.ErrorIs(t, err, ErrMissingParameters)
	})

	t.Run("invalid type", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Verify(context.Background(), f.user.ID, "fax", "123456")
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("no pending code", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Verify(context.Background(), f.user.ID, "mobile", "123456")
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("malformed record is purged", func(t *testing.T) {
		f := newFixture(t)
		key := credential.Key{UserID: f.user.ID, Channel: otp.ChannelEmail}
		f.codes.PutPayload(key, "not-a-record")

		assert.NotPanics(t, func() {
			_, err := f.svc.Verify(context.Background(), f.user.ID, "email", "123456")
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
		assert.Equal(t, 0, f.codes.Len())
	})

	t.Run("record stamped in the future is purged", func(t *testing.T) {
		f := newFixture(t)
		key := credential.Key{UserID: f.user.ID, Channel: otp.ChannelEmail}
		require.NoError(t, f.codes.Put(context.Background(), key, "482913", f.t0.AddDate(1, 0, 0)))

		_, err := f.svc.Verify(context.Background(), f.user.ID, "email", "482913")

		assert.ErrorIs(t, err, ErrInvalidFormat)
		assert.Nil(t, f.pending(t, otp.ChannelEmail))
	})
}

func TestService_Verify_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)

	_, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)

	f.at(301 * time.Second)
	_, err = f.svc.Verify(ctx, f.user.ID, "email", "482913")
	assert.ErrorIs(t, err, ErrCodeExpired)

	_, err = f.svc.Verify(ctx, f.user.ID, "email", "482913")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestService_Verify_AtExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelMobile)

	_, err := f.svc.Generate(ctx, f.user.ID, "mobile")
	require.NoError(t, err)

	f.at(300 * time.Second)
	res, err := f.svc.Verify(ctx, f.user.ID, "mobile", "482913")
	require.NoError(t, err)
	assert.Equal(t, "Mobile number verified successfully", res.Message)
}

func TestService_ChangeContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)

	_, err := f.svc.Generate(ctx, f.user.ID, "email")
	require.NoError(t, err)

	err = f.svc.ChangeContact(ctx, f.user.ID, "email", "not-an-email")
	var contact *ContactError
	require.True(t, errors.As(err, &contact))
	assert.Equal(t, "Invalid email format", contact.Message)

	require.NoError(t, f.svc.ChangeContact(ctx, f.user.ID, "email", "new@example.com"))
	assert.Nil(t, f.pending(t, otp.ChannelEmail))

	err = f.svc.ChangeContact(ctx, f.user.ID, "mobile", "12345")
	assert.ErrorIs(t, err, ErrInvalidContact)

	require.NoError(t, f.users.SetVerified(ctx, f.user.ID, otp.ChannelMobile, f.t0))
	err = f.svc.ChangeContact(ctx, f.user.ID, "mobile", "5559876543")
	assert.ErrorIs(t, err, ErrContactLocked)
}

func TestService_ConcurrentGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectSend(otp.ChannelEmail)
	f.expectSend(otp.ChannelMobile)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			channel := "email"
			if i%2 == 1 {
				channel = "mobile"
			}
			_, errs[i] = f.svc.Generate(ctx, f.user.ID, channel)
		}(i)
	}
	wg.Wait()

	var issued, cooled int
	for _, err := range errs {
		switch {
		case err == nil:
			issued++
		case errors.Is(err, ErrGlobalCooldown):
			cooled++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, issued)
	assert.Equal(t, 7, cooled)
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, 0, f.svc.locks.size())
}

func TestService_SessionThrottle_OverlappingRequests(t *testing.T) {
	sm := scs.New()
	sm.Store = memstore.New()
	f := newFixtureWithThrottles(t, throttle.NewSessionStore(sm, time.Hour))
	f.expectSend(otp.ChannelEmail)

	login, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	sm.Put(login, "user_id", f.user.ID)
	token, _, err := sm.Commit(login)
	require.NoError(t, err)

	issued := 0
	for minute := 0; minute < 5; minute++ {
		f.at(time.Duration(minute) * time.Minute)

		// two requests on one cookie, both loaded before either commits
		first, err := sm.Load(context.Background(), token)
		require.NoError(t, err)
		second, err := sm.Load(context.Background(), token)
		require.NoError(t, err)

		for _, ctx := range []context.Context{first, second} {
			if _, err := f.svc.Generate(ctx, f.user.ID, "email"); err == nil {
				issued++
			}
		}

		_, _, err = sm.Commit(first)
		require.NoError(t, err)
		_, _, err = sm.Commit(second)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, issued)
	f.sender.AssertNumberOfCalls(t, "Send", 3)

	f.at(5 * time.Minute)
	ctx, err := sm.Load(context.Background(), token)
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, f.user.ID, "email")
	assert.ErrorIs(t, err, ErrRateLimited)
}
