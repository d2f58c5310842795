package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"streamflix/authd/internal/lockout"
	"streamflix/authd/internal/policy"
	"streamflix/authd/internal/session"
	"streamflix/authd/internal/store/memory"
	"streamflix/authd/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// inbox records delivered payloads; the code is the last six characters.
type inbox struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (b *inbox) Send(_ context.Context, destination, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, payload)
	return nil
}

func (b *inbox) lastCode(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.msgs, "no code delivered")
	last := b.msgs[len(b.msgs)-1]
	return last[len(last)-6:]
}

type fixture struct {
	svc   *Service
	store *memory.Store
	inbox *inbox
	clock *fakeClock
}

func newFixture() *fixture {
	st := memory.NewStore()
	box := &inbox{}
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}

	guard := lockout.NewGuard(st, lockout.Config{}).WithClock(clock.Now)
	codes := verification.NewManager(st, box, verification.Config{HashCost: bcrypt.MinCost}).WithClock(clock.Now)
	sessions := session.NewManager(st, 0).WithClock(clock.Now)

	return &fixture{
		svc:   NewService(st, guard, codes, sessions),
		store: st,
		inbox: box,
		clock: clock,
	}
}

func alice() RegisterInput {
	return RegisterInput{
		Username: "alice",
		Password: "Abcdef1!",
		Name:     "Alice",
		Phone:    "+919876543210",
		Email:    "alice@x.com",
	}
}

func TestEndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "Abcdef1!", u.PasswordHash)
	assert.NotEmpty(t, u.Salt)

	res, err := f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingVerification, res.State)
	assert.Contains(t, res.Message, "+919876543210")

	vr, err := f.svc.VerifyCode(ctx, "alice", f.inbox.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, vr.State)
	require.NotEmpty(t, vr.Session.Token)

	me, err := f.svc.CurrentUser(ctx, vr.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	st, err := f.svc.Logout(ctx, vr.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, st)

	_, err = f.svc.CurrentUser(ctx, vr.Session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRegisterValidationOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := alice()
	in.Email = "bad"
	in.Phone = "123"
	in.Password = "short"
	_, err := f.svc.Register(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, policy.MsgEmailFormat, err.Error())

	in.Email = "alice@x.com"
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "phone", v.Field)

	in.Phone = "+919876543210"
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "password", v.Field)
	assert.Contains(t, err.Error(), policy.MsgPasswordTooShort)

	in.Username = " "
	_, err = f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, alice())
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, KindDuplicateUsername, KindOf(err))
}

func TestRegisterBlankUsername(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, name := range []string{"", "   "} {
		in := alice()
		in.Username = name
		_, err := f.svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	}
	_, err := f.store.GetUserByUsername(ctx, "")
	assert.Error(t, err)
}

func TestRegisterInvalidEncoding(t *testing.T) {
	f := newFixture()
	in := alice()
	in.Password = "Abcdef1!\xff"

	_, err := f.svc.Register(context.Background(), in)
	assert.Equal(t, KindEncoding, KindOf(err))
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Login(context.Background(), "ghost", "Abcdef1!")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, StateAnonymous, res.State)
}

func TestLoginLockout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		res, err := f.svc.Login(ctx, "alice", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, i, e.Attempts)
		// The third failure trips the lock.
		if i < 3 {
			assert.Equal(t, StateAnonymous, res.State)
		} else {
			assert.Equal(t, StateLocked, res.State)
		}
	}

	// Fourth attempt is blocked even with the right password.
	res, err := f.svc.Login(ctx, "alice", "Abcdef1!")
	require.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, StateLocked, res.State)
	assert.Contains(t, err.Error(), "Failed attempts: 3")
	assert.Empty(t, f.inbox.msgs)

	f.clock.Advance(lockout.DefaultDuration)
	res, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingVerification, res.State)

	u, err := f.store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, u.FailedAttempts)
	assert.Nil(t, u.LockedUntil)
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "alice", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice", "wrong")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Attempts)
}

func TestVerifyCodeFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	vr, err := f.svc.VerifyCode(ctx, "alice", "123456")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.Equal(t, StateAwaitingVerification, vr.State)

	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	code := f.inbox.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	vr, err = f.svc.VerifyCode(ctx, "alice", wrong)
	assert.ErrorIs(t, err, ErrCodeMismatch)
	assert.Equal(t, StateAwaitingVerification, vr.State)

	vr, err = f.svc.VerifyCode(ctx, "alice", code)
	require.NoError(t, err)
	assert.NotEmpty(t, vr.Session.Token)

	_, err = f.svc.VerifyCode(ctx, "alice", code)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestVerifyCodeExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)

	f.clock.Advance(verification.DefaultTTL + time.Second)
	vr, err := f.svc.VerifyCode(ctx, "alice", f.inbox.lastCode(t))
	assert.ErrorIs(t, err, ErrCodeExpired)
	assert.Equal(t, StateAwaitingVerification, vr.State)
}

func TestVerifyCodeAttemptsExhausted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	code := f.inbox.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	for i := 1; i < verification.DefaultMaxAttempts; i++ {
		_, err = f.svc.VerifyCode(ctx, "alice", wrong)
		require.ErrorIs(t, err, ErrCodeMismatch)
	}
	vr, err := f.svc.VerifyCode(ctx, "alice", wrong)
	assert.ErrorIs(t, err, ErrCodeAttempts)
	assert.Equal(t, StateAwaitingVerification, vr.State)

	// The code is gone; the right digits no longer open a session.
	_, err = f.svc.VerifyCode(ctx, "alice", code)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = f.svc.ResendCode(ctx, "alice")
	require.NoError(t, err)
	vr, err = f.svc.VerifyCode(ctx, "alice", f.inbox.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, vr.State)
}

func TestResendSupersedes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	_, err = f.svc.ResendCode(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	first := f.inbox.lastCode(t)

	msg, err := f.svc.ResendCode(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, msg, "+919876543210")
	second := f.inbox.lastCode(t)

	if first != second {
		_, err = f.svc.VerifyCode(ctx, "alice", first)
		assert.ErrorIs(t, err, ErrCodeMismatch)
	}
	_, err = f.svc.VerifyCode(ctx, "alice", second)
	assert.NoError(t, err)
}

func TestLoginDeliveryFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	f.inbox.err = errors.New("gateway down")
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	assert.Equal(t, KindDelivery, KindOf(err))
	assert.NotContains(t, err.Error(), "gateway down")
}

func TestLoginInvalidStoredPhone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.store.UpdateContact(ctx, "alice", "12345", "alice@x.com")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidPhone)
	assert.True(t, strings.HasPrefix(err.Error(), "Invalid phone number: "))
	assert.Contains(t, err.Error(), policy.MsgPhoneNoCode)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	vr, err := f.svc.VerifyCode(ctx, "alice", f.inbox.lastCode(t))
	require.NoError(t, err)
	token := vr.Session.Token

	_, err = f.svc.UpdateProfile(ctx, "bogus", "+12345678901", "new@x.com")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = f.svc.UpdateProfile(ctx, token, "999", "nope")
	require.ErrorIs(t, err, ErrValidation)
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "phone,email", v.Field)
	assert.Len(t, v.Reasons, 2)

	u, err := f.svc.UpdateProfile(ctx, token, "+12345678901", "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "+12345678901", u.Phone)
	assert.Equal(t, "new@x.com", u.Email)
}

func TestSessionExpiresAfterADay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	vr, err := f.svc.VerifyCode(ctx, "alice", f.inbox.lastCode(t))
	require.NoError(t, err)

	f.clock.Advance(session.DefaultTTL)
	_, err = f.svc.CurrentUser(ctx, vr.Session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := &Error{Kind: KindCodeExpired, Message: "x"}
	assert.True(t, errors.Is(err, ErrCodeExpired))
	assert.False(t, errors.Is(err, ErrCodeMismatch))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
