package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thriftique/service-account-go/internal/account/entity"
)

var (
	ErrMissingDuration = errors.New("duration is required for disabling an account")
	ErrInvalidAction   = errors.New("invalid function, must be 'enable' or 'disable'")
	ErrInvalidField    = errors.New("invalid field")
)

// Admin status actions.
const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
)

// AdminService applies administrator overrides directly against the
// credential store, bypassing the lockout policy's automatic counting. It
// must share Locks with the Service so moderation cannot race a login's
// read-modify-write.
type AdminService struct {
	store  Store
	hasher PasswordHasher
	locks  *Locks
	logger *zap.SugaredLogger

	now func() time.Time
}

func NewAdminService(store Store, hasher PasswordHasher, locks *Locks, logger *zap.SugaredLogger) *AdminService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if locks == nil {
		locks = NewLocks()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AdminService{store: store, hasher: hasher, locks: locks, logger: logger, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (a *AdminService) WithClock(now func() time.Time) *AdminService {
	a.now = now
	return a
}

// SetStatus enables or disables an account. Disabling requires a positive
// duration in seconds and stamps the suspension deadline. Enabling always
// clears the disabled flag, the deadline AND the failure counter in one
// write, so a re-enabled account cannot be relocked by a stale counter.
// Returns a human-readable message for the moderation UI.
func (a *AdminService) SetStatus(ctx context.Context, id int64, action string, durationSeconds *int64) (string, error) {
	if action != ActionEnable && action != ActionDisable {
		return "", ErrInvalidAction
	}

	release := a.locks.Acquire(id)
	defer release()

	acc, err := a.store.ByID(ctx, id)
	if err != nil {
		return "", err
	}

	var message string
	switch action {
	case ActionDisable:
		if durationSeconds == nil || *durationSeconds <= 0 {
			return "", ErrMissingDuration
		}
		until := a.now().Add(time.Duration(*durationSeconds) * time.Second)
		acc.Disabled = true
		acc.DisabledUntil = &until
		message = fmt.Sprintf("%s disabled for %d seconds.", acc.Username, *durationSeconds)
	case ActionEnable:
		acc.Disabled = false
		acc.DisabledUntil = nil
		acc.FailedAttempts = 0
		message = fmt.Sprintf("%s enabled successfully.", acc.Username)
	}

	if err := a.store.Update(ctx, acc); err != nil {
		return "", err
	}
	a.logger.Infow("account status updated", "account_id", id, "action", action)
	return message, nil
}

// List returns all accounts as sanitized summaries, sorted by id.
func (a *AdminService) List(ctx context.Context) ([]entity.Summary, error) {
	accounts, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Summary, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Summary())
	}
	return out, nil
}

// UpdateInformation rewrites a single account field on behalf of an
// administrator. Allowed fields: username, email, password. Passwords are
// hashed; the admin never sees or stores the raw secret.
func (a *AdminService) UpdateInformation(ctx context.Context, id int64, field, value string) error {
	release := a.locks.Acquire(id)
	defer release()

	acc, err := a.store.ByID(ctx, id)
	if err != nil {
		return err
	}

	switch field {
	case "username":
		acc.Username = value
	case "email":
		acc.Email = value
	case "password":
		hash, err := a.hasher.Hash(value)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		acc.PasswordHash = hash
	default:
		return fmt.Errorf("%w: %q, allowed fields are username, email, password", ErrInvalidField, field)
	}

	if err := a.store.Update(ctx, acc); err != nil {
		return err
	}
	a.logger.Infow("account information updated", "account_id", id, "field", field)
	return nil
}

// Delete removes an account record. Snowflake ids are never reused, so a
// later registration cannot collide with the deleted id.
func (a *AdminService) Delete(ctx context.Context, id int64) error {
	release := a.locks.Acquire(id)
	defer release()

	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	a.logger.Infow("account deleted", "account_id", id)
	return nil
}
