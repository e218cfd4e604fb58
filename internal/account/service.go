// Package account implements the access-control core of the marketplace:
// registration, login with brute-force lockout, administrator suspensions
// and session issuance. Everything else in the system reaches accounts
// through the Service and AdminService types in this package.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.uber.org/zap"

	"github.com/thriftique/service-account-go/internal/account/entity"
	"github.com/thriftique/service-account-go/internal/email"
	"github.com/thriftique/service-account-go/internal/token"
	"github.com/thriftique/service-account-go/pkg/utilities"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrWrongPassword   = errors.New("current password is incorrect")
	ErrPasswordTooWeak = errors.New("password too weak")
)

// minPasswordLength applies to registration and password changes.
const minPasswordLength = 8

// minPasswordEntropy is the go-password-validator floor. Deliberately
// modest: the brute-force protection lives in the lockout policy, not in
// entropy arithmetic.
const minPasswordEntropy = 40

// AttemptsError reports a failed verification along with how many attempts
// remain before the account locks.
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid email or password (%d attempts remaining)", e.Remaining)
}

func (e *AttemptsError) Unwrap() error { return ErrBadCredentials }

// LockedError reports an automatic lockout in effect.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for another %s", e.Remaining.Round(time.Second))
}

// DisabledError reports an administrator suspension in effect. Nil Until
// means indefinite.
type DisabledError struct {
	Until *time.Time
}

func (e *DisabledError) Error() string { return "account disabled by administrator" }

// Service is the account façade: it orchestrates the credential store, the
// password hasher, the lockout policy and the session issuer.
type Service struct {
	store    Store
	hasher   PasswordHasher
	policy   LockoutPolicy
	issuer   *token.Issuer
	notifier email.Notifier
	locks    *Locks
	logger   *zap.SugaredLogger

	now func() time.Time
}

// NewService wires the façade. hasher, locks and logger may be nil for
// defaults; locks must be shared with the AdminService operating on the
// same store.
func NewService(store Store, hasher PasswordHasher, issuer *token.Issuer, notifier email.Notifier, locks *Locks, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if locks == nil {
		locks = NewLocks()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if notifier == nil {
		notifier = email.LogNotifier{Logger: logger}
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		policy:   DefaultLockoutPolicy(),
		issuer:   issuer,
		notifier: notifier,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a new user account. Email must be unique; the account
// starts unverified with a fresh verification token which is mailed (or
// logged) best-effort.
func (s *Service) Register(ctx context.Context, name, email, password string) (entity.Summary, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return entity.Summary{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case email == "" || !strings.Contains(email, "@"):
		return entity.Summary{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	case password == "":
		return entity.Summary{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := s.checkPassword(password); err != nil {
		return entity.Summary{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return entity.Summary{}, fmt.Errorf("hash password: %w", err)
	}

	code := utilities.NewVerificationToken()
	acc := &entity.Account{
		ID:                utilities.NewAccountID(),
		Username:          name,
		Email:             email,
		PasswordHash:      hash,
		Role:              entity.RoleUser,
		Status:            entity.StatusPendingVerification,
		VerificationToken: &code,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return entity.Summary{}, err
	}

	if err := s.notifier.SendVerification(acc.Email, acc.Username, code); err != nil {
		s.logger.Warnw("verification mail failed", "account_id", acc.ID, "err", err)
	}
	s.logger.Infow("account registered", "account_id", acc.ID, "email", acc.Email)
	return acc.Summary(), nil
}

// Login authenticates by email and password and returns a session token.
// Failure counters and lock deadlines are persisted before the error is
// returned, so a lost response cannot lose the increment.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (string, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" || password == "" {
		return "", fmt.Errorf("%w: missing email or password", ErrInvalidInput)
	}

	probe, err := s.store.ByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// same error as a wrong password, to avoid user enumeration
			return "", ErrBadCredentials
		}
		return "", err
	}

	release := s.locks.Acquire(probe.ID)
	defer release()

	acc, err := s.store.ByID(ctx, probe.ID)
	if err != nil {
		return "", err
	}

	now := s.now()
	switch avail := acc.Availability(now); avail.Kind {
	case entity.AdminDisabled:
		return "", &DisabledError{Until: avail.Until}
	case entity.AutoLocked:
		return "", &LockedError{Until: *avail.Until, Remaining: avail.Until.Sub(now)}
	case entity.Unrestricted:
		if acc.Disabled || acc.DisabledUntil != nil {
			// lazy expiry: the deadline passed, so clear the stale
			// restriction and start the failure count over
			acc.Disabled = false
			acc.DisabledUntil = nil
			acc.FailedAttempts = 0
		}
	}

	if !s.hasher.Verify(acc.PasswordHash, password) {
		acc.FailedAttempts, acc.DisabledUntil = s.policy.OnFailure(acc.FailedAttempts, now)
		if err := s.store.Update(ctx, acc); err != nil {
			return "", fmt.Errorf("persist failed attempt: %w", err)
		}
		if acc.DisabledUntil != nil {
			s.logger.Warnw("account locked after repeated failures",
				"account_id", acc.ID, "failed_attempts", acc.FailedAttempts)
			return "", &LockedError{Until: *acc.DisabledUntil, Remaining: acc.DisabledUntil.Sub(now)}
		}
		return "", &AttemptsError{Remaining: s.policy.AttemptsRemaining(acc.FailedAttempts)}
	}

	acc.FailedAttempts, acc.DisabledUntil = s.policy.OnSuccess()
	if err := s.store.Update(ctx, acc); err != nil {
		return "", fmt.Errorf("persist login success: %w", err)
	}

	tok, err := s.issuer.Issue(token.Claims{
		AccountID: acc.ID,
		Username:  acc.Username,
		Role:      string(acc.Role),
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.logger.Debugw("login succeeded", "account_id", acc.ID)
	return tok, nil
}

// WhoAmI resolves a bearer token into its identity claims. Stateless.
func (s *Service) WhoAmI(tokenString string) (*token.Claims, error) {
	return s.issuer.Validate(tokenString)
}

// ChangePassword replaces the account password after verifying the current
// one. Callers enforce that the actor owns the account.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if err := s.checkPassword(next); err != nil {
		return err
	}

	release := s.locks.Acquire(id)
	defer release()

	acc, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(acc.PasswordHash, current) {
		return ErrWrongPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc.PasswordHash = hash
	if err := s.store.Update(ctx, acc); err != nil {
		return err
	}
	s.logger.Infow("password changed", "account_id", id)
	return nil
}

// Verify confirms an email address by its verification code and activates
// the account. Login never gates on this; the workflow is advisory.
func (s *Service) Verify(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: verification code is required", ErrInvalidInput)
	}
	acc, err := s.store.ByVerificationToken(ctx, code)
	if err != nil {
		return err
	}

	release := s.locks.Acquire(acc.ID)
	defer release()

	acc, err = s.store.ByID(ctx, acc.ID)
	if err != nil {
		return err
	}
	acc.Status = entity.StatusActive
	acc.VerificationToken = nil
	return s.store.Update(ctx, acc)
}

// Profile returns the full account record for its owner (or an admin).
func (s *Service) Profile(ctx context.Context, id int64) (*entity.Account, error) {
	return s.store.ByID(ctx, id)
}

// ProfileUpdate carries the owner-mutable fields; nil means leave as is.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Phone    *string
	Bio      *string
}

// UpdateProfile applies owner edits to the mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) error {
	release := s.locks.Acquire(id)
	defer release()

	acc, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
		}
		acc.Username = name
	}
	if upd.Email != nil {
		addr := strings.ToLower(strings.TrimSpace(*upd.Email))
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
		}
		acc.Email = addr
	}
	if upd.Phone != nil {
		p := strings.TrimSpace(*upd.Phone)
		acc.Phone = &p
	}
	if upd.Bio != nil {
		b := strings.TrimSpace(*upd.Bio)
		acc.Bio = &b
	}
	return s.store.Update(ctx, acc)
}

// ResolveUsername is the lookup the rest of the marketplace (listings,
// chat, reports) uses to label content by account id.
func (s *Service) ResolveUsername(ctx context.Context, id int64) (string, error) {
	acc, err := s.store.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	return acc.Username, nil
}

// IsUsable reports whether the account may act right now; external
// collaborators consult this instead of reading raw status fields.
func (s *Service) IsUsable(ctx context.Context, id int64) (bool, error) {
	acc, err := s.store.ByID(ctx, id)
	if err != nil {
		return false, err
	}
	return acc.Usable(s.now()), nil
}

func (s *Service) checkPassword(pw string) error {
	if len(pw) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooWeak, minPasswordLength)
	}
	if err := passwordvalidator.Validate(pw, minPasswordEntropy); err != nil {
		return fmt.Errorf("%w: %s", ErrPasswordTooWeak, err.Error())
	}
	return nil
}
