package entity

import "time"

// Role is the authorization level of an account. Two variants only; keep
// checks exhaustive when switching on it.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status tracks the email-verification workflow. Verification is advisory:
// login does not gate on it.
type Status string

const (
	StatusActive              Status = "active"
	StatusPendingVerification Status = "pending_verification"
)

// Account represents one row in the `accounts` table.
type Account struct {
	ID                int64
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	Status            Status
	VerificationToken *string
	FailedAttempts    int
	Disabled          bool
	DisabledUntil     *time.Time
	Phone             *string
	Bio               *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AvailabilityKind discriminates the derived account availability.
type AvailabilityKind int

const (
	// Unrestricted means login attempts may proceed.
	Unrestricted AvailabilityKind = iota
	// AutoLocked means the failed-attempt lockout window is still open.
	AutoLocked
	// AdminDisabled means an administrator suspension is in effect.
	AdminDisabled
)

// Availability is the tagged view computed from the raw Disabled /
// DisabledUntil fields. Until is set for AutoLocked and for timed
// AdminDisabled; nil means indefinite.
type Availability struct {
	Kind  AvailabilityKind
	Until *time.Time
}

// Availability derives the current availability at the given instant.
// Expiry is lazy: a deadline in the past yields Unrestricted even when the
// stored flags have not been cleared yet.
//
// The Disabled flag and DisabledUntil share storage between administrator
// suspension and automatic lockout; this method is the single place that
// untangles them. Every entry point must consult it rather than reading the
// raw fields.
func (a *Account) Availability(now time.Time) Availability {
	if a.Disabled {
		if a.DisabledUntil == nil || now.Before(*a.DisabledUntil) {
			return Availability{Kind: AdminDisabled, Until: a.DisabledUntil}
		}
		return Availability{Kind: Unrestricted}
	}
	if a.DisabledUntil != nil && now.Before(*a.DisabledUntil) {
		return Availability{Kind: AutoLocked, Until: a.DisabledUntil}
	}
	return Availability{Kind: Unrestricted}
}

// Usable reports whether the account can authenticate right now. This is the
// predicate exposed to the rest of the marketplace.
func (a *Account) Usable(now time.Time) bool {
	return a.Availability(now).Kind == Unrestricted
}

// Summary is the sanitized projection used for listings and registration
// responses. Never carries the password hash.
type Summary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary returns the sanitized projection of the account.
func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Username: a.Username, Email: a.Email}
}
