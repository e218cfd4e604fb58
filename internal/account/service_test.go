package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thriftique/service-account-go/internal/account/entity"
	"github.com/thriftique/service-account-go/internal/token"
)

// fakeClock lets tests march time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store  *MemoryStore
	svc    *Service
	admin  *AdminService
	issuer *token.Issuer
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	hasher := BcryptHasher{Cost: 4}
	locks := NewLocks()
	issuer := token.NewIssuer([]byte("test-secret"), "thriftique-test").WithClock(clock.Now)

	svc := NewService(store, hasher, issuer, nil, locks, nil)
	svc.now = clock.Now
	admin := NewAdminService(store, hasher, locks, nil)
	admin.now = clock.Now

	return &fixture{store: store, svc: svc, admin: admin, issuer: issuer, clock: clock}
}

func (f *fixture) register(t *testing.T, name, email, password string) entity.Summary {
	t.Helper()
	summary, err := f.svc.Register(context.Background(), name, email, password)
	require.NoError(t, err)
	return summary
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)

	summary := f.register(t, "Ann", "ann@x.com", "password123")
	assert.Equal(t, "Ann", summary.Username)
	assert.Equal(t, "ann@x.com", summary.Email)
	assert.NotZero(t, summary.ID)

	acc, err := f.store.ByID(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, acc.Role)
	assert.Equal(t, entity.StatusPendingVerification, acc.Status)
	assert.NotNil(t, acc.VerificationToken)
	assert.Zero(t, acc.FailedAttempts)
	assert.False(t, acc.Disabled)
	assert.NotEqual(t, "password123", acc.PasswordHash)
}

func TestService_Register_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{"missing name", "", "a@x.com", "password123", ErrInvalidInput},
		{"missing email", "Ann", "", "password123", ErrInvalidInput},
		{"malformed email", "Ann", "not-an-email", "password123", ErrInvalidInput},
		{"missing password", "Ann", "a@x.com", "", ErrInvalidInput},
		{"short password", "Ann", "a@x.com", "short1", ErrPasswordTooWeak},
		{"low entropy password", "Ann", "a@x.com", "aaaaaaaa", ErrPasswordTooWeak},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.userName, tc.email, tc.password)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Zero(t, f.store.Len(), "failed registrations must not create records")
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.register(t, "Ann", "ann@x.com", "password123")
	require.Equal(t, 1, f.store.Len())

	_, err := f.svc.Register(context.Background(), "Other Ann", "ann@x.com", "different456")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 1, f.store.Len(), "store must be unchanged after a duplicate")

	// case-insensitive uniqueness
	_, err = f.svc.Register(context.Background(), "Shouty Ann", "ANN@X.COM", "different456")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestService_Login_Success(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")

	tok, err := f.svc.Login(context.Background(), "ann@x.com", "password123")
	require.NoError(t, err)

	claims, err := f.svc.WhoAmI(tok)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, claims.AccountID)
	assert.Equal(t, "Ann", claims.Username)
	assert.Equal(t, "user", claims.Role)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), "nobody@x.com", "whatever123")
	assert.ErrorIs(t, err, ErrBadCredentials)
	var attempts *AttemptsError
	assert.False(t, errors.As(err, &attempts), "unknown email must not leak an attempts counter")
}

func TestService_Login_LockoutThreshold(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	// four failures leave the account active, one attempt remaining
	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, "ann@x.com", "wrongpass")
		var attempts *AttemptsError
		require.ErrorAs(t, err, &attempts, "failure %d", i)
		assert.Equal(t, 5-i, attempts.Remaining, "failure %d", i)

		acc, err := f.store.ByID(ctx, summary.ID)
		require.NoError(t, err)
		assert.Equal(t, i, acc.FailedAttempts, "counter must be persisted before the error returns")
		assert.True(t, acc.Usable(f.clock.Now()))
	}

	// fifth failure locks for exactly 900 seconds from this attempt
	_, err := f.svc.Login(ctx, "ann@x.com", "wrongpass")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 900*time.Second, locked.Remaining)
	assert.Equal(t, f.clock.Now().Add(900*time.Second), locked.Until)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, acc.FailedAttempts)
	require.NotNil(t, acc.DisabledUntil)
	assert.False(t, acc.Disabled, "auto-lockout must not set the admin disabled flag")
	assert.Equal(t, entity.AutoLocked, acc.Availability(f.clock.Now()).Kind)
}

func TestService_Login_CorrectPasswordWhileLockedStillRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	}

	_, err := f.svc.Login(ctx, "ann@x.com", "password123")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Greater(t, locked.Remaining, time.Duration(0))
}

func TestService_Login_LazyUnlock(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	}

	// one second before the deadline: still locked
	f.clock.Advance(899 * time.Second)
	_, err := f.svc.Login(ctx, "ann@x.com", "password123")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)

	// past the deadline: first attempt succeeds, nothing swept in between
	f.clock.Advance(2 * time.Second)
	tok, err := f.svc.Login(ctx, "ann@x.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Zero(t, acc.FailedAttempts)
	assert.Nil(t, acc.DisabledUntil)
}

func TestService_Login_SuccessResetsCounter(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	}
	_, err := f.svc.Login(ctx, "ann@x.com", "password123")
	require.NoError(t, err)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Zero(t, acc.FailedAttempts)
	assert.Nil(t, acc.DisabledUntil)

	// counter starts fresh: next failure reports four attempts remaining
	_, err = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	var attempts *AttemptsError
	require.ErrorAs(t, err, &attempts)
	assert.Equal(t, 4, attempts.Remaining)
}

func TestService_Login_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	duration := int64(3600)
	_, err := f.admin.SetStatus(ctx, summary.ID, ActionDisable, &duration)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ann@x.com", "password123")
	var disabled *DisabledError
	require.ErrorAs(t, err, &disabled)
	require.NotNil(t, disabled.Until)
	assert.Equal(t, f.clock.Now().Add(time.Hour), *disabled.Until)

	// suspension expiry readmits lazily, same as auto-lockout
	f.clock.Advance(3601 * time.Second)
	tok, err := f.svc.Login(ctx, "ann@x.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestService_WhoAmI_RejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@x.com", "password123")

	tok, err := f.svc.Login(context.Background(), "ann@x.com", "password123")
	require.NoError(t, err)

	f.clock.Advance(token.DefaultTTL + time.Second)
	_, err = f.svc.WhoAmI(tok)
	assert.ErrorIs(t, err, token.ErrExpired)
}

func TestService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		err := f.svc.ChangePassword(ctx, summary.ID, "wrongpass", "newpassword456")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("too short replacement", func(t *testing.T) {
		err := f.svc.ChangePassword(ctx, summary.ID, "password123", "tiny1")
		assert.ErrorIs(t, err, ErrPasswordTooWeak)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := f.svc.ChangePassword(ctx, 999999, "password123", "newpassword456")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("success rotates the credential", func(t *testing.T) {
		err := f.svc.ChangePassword(ctx, summary.ID, "password123", "newpassword456")
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, "ann@x.com", "password123")
		assert.Error(t, err, "old password must stop working")

		// counter bumped by the failed attempt above; succeed with the new one
		tok, err := f.svc.Login(ctx, "ann@x.com", "newpassword456")
		require.NoError(t, err)
		assert.NotEmpty(t, tok)
	})
}

func TestService_Verify(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	require.NotNil(t, acc.VerificationToken)
	code := *acc.VerificationToken

	t.Run("unknown code", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Verify(ctx, "bogus"), ErrNotFound)
	})

	t.Run("valid code activates", func(t *testing.T) {
		require.NoError(t, f.svc.Verify(ctx, code))
		acc, err := f.store.ByID(ctx, summary.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusActive, acc.Status)
		assert.Nil(t, acc.VerificationToken)
	})

	t.Run("code is single use", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Verify(ctx, code), ErrNotFound)
	})
}

func TestService_UnverifiedAccountCanStillLogin(t *testing.T) {
	// verification is advisory; login does not gate on it
	f := newFixture(t)
	f.register(t, "Ann", "ann@x.com", "password123")

	tok, err := f.svc.Login(context.Background(), "ann@x.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	f.register(t, "Bea", "bea@x.com", "password456")
	ctx := context.Background()

	str := func(s string) *string { return &s }

	t.Run("updates provided fields only", func(t *testing.T) {
		err := f.svc.UpdateProfile(ctx, summary.ID, ProfileUpdate{
			Username: str("Ann W."),
			Phone:    str("555-0101"),
			Bio:      str("vintage seller"),
		})
		require.NoError(t, err)

		acc, err := f.store.ByID(ctx, summary.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ann W.", acc.Username)
		assert.Equal(t, "ann@x.com", acc.Email)
		require.NotNil(t, acc.Phone)
		assert.Equal(t, "555-0101", *acc.Phone)
	})

	t.Run("rejects email collision", func(t *testing.T) {
		err := f.svc.UpdateProfile(ctx, summary.ID, ProfileUpdate{Email: str("bea@x.com")})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("rejects empty username", func(t *testing.T) {
		err := f.svc.UpdateProfile(ctx, summary.ID, ProfileUpdate{Username: str("   ")})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestService_CollaboratorSurface(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	name, err := f.svc.ResolveUsername(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	_, err = f.svc.ResolveUsername(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)

	usable, err := f.svc.IsUsable(ctx, summary.ID)
	require.NoError(t, err)
	assert.True(t, usable)

	duration := int64(60)
	_, err = f.admin.SetStatus(ctx, summary.ID, ActionDisable, &duration)
	require.NoError(t, err)

	usable, err = f.svc.IsUsable(ctx, summary.ID)
	require.NoError(t, err)
	assert.False(t, usable)

	f.clock.Advance(61 * time.Second)
	usable, err = f.svc.IsUsable(ctx, summary.ID)
	require.NoError(t, err)
	assert.True(t, usable, "expired suspension must read as usable without a sweep")
}

func TestService_ConcurrentFailuresDoNotUndercount(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	const workers = 4
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, acc.FailedAttempts, "every concurrent failure must be counted")
}
