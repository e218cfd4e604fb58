// Package repo provides the Postgres-backed credential store.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/thriftique/service-account-go/internal/account"
	"github.com/thriftique/service-account-go/internal/account/entity"
)

// AccountRepo implements account.Store on Postgres using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id BIGINT PRIMARY KEY,
  username TEXT NOT NULL,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  status TEXT NOT NULL DEFAULT 'active',
  verification_token TEXT,
  failed_attempts INT NOT NULL DEFAULT 0,
  disabled BOOLEAN NOT NULL DEFAULT false,
  disabled_until TIMESTAMPTZ,
  phone TEXT,
  bio TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
CREATE INDEX IF NOT EXISTS idx_accounts_verification_token ON accounts(verification_token);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type accountRow struct {
	ID                int64      `db:"id"`
	Username          string     `db:"username"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	Role              string     `db:"role"`
	Status            string     `db:"status"`
	VerificationToken *string    `db:"verification_token"`
	FailedAttempts    int        `db:"failed_attempts"`
	Disabled          bool       `db:"disabled"`
	DisabledUntil     *time.Time `db:"disabled_until"`
	Phone             *string    `db:"phone"`
	Bio               *string    `db:"bio"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (row *accountRow) toEntity() *entity.Account {
	return &entity.Account{
		ID:                row.ID,
		Username:          row.Username,
		Email:             row.Email,
		PasswordHash:      row.PasswordHash,
		Role:              entity.Role(row.Role),
		Status:            entity.Status(row.Status),
		VerificationToken: row.VerificationToken,
		FailedAttempts:    row.FailedAttempts,
		Disabled:          row.Disabled,
		DisabledUntil:     row.DisabledUntil,
		Phone:             row.Phone,
		Bio:               row.Bio,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

const selectColumns = `SELECT id, username, email, password_hash, role, status,
	verification_token, failed_attempts, disabled, disabled_until, phone, bio,
	created_at, updated_at FROM accounts`

func (r *AccountRepo) ByID(ctx context.Context, id int64) (*entity.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE id=$1`, id); err != nil {
		return nil, mapNotFound(err)
	}
	return row.toEntity(), nil
}

func (r *AccountRepo) ByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE email=$1`, email); err != nil {
		return nil, mapNotFound(err)
	}
	return row.toEntity(), nil
}

func (r *AccountRepo) ByVerificationToken(ctx context.Context, tok string) (*entity.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE verification_token=$1`, tok); err != nil {
		return nil, mapNotFound(err)
	}
	return row.toEntity(), nil
}

func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts (id, username, email, password_hash, role, status,
			verification_token, failed_attempts, disabled, disabled_until, phone, bio)
		VALUES (:id, :username, :email, :password_hash, :role, :status,
			:verification_token, :failed_attempts, :disabled, :disabled_until, :phone, :bio)`
	if _, err := r.db.NamedExecContext(ctx, q, toParams(a)); err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *AccountRepo) Update(ctx context.Context, a *entity.Account) error {
	const q = `UPDATE accounts SET username=:username, email=:email,
			password_hash=:password_hash, role=:role, status=:status,
			verification_token=:verification_token, failed_attempts=:failed_attempts,
			disabled=:disabled, disabled_until=:disabled_until, phone=:phone, bio=:bio,
			updated_at=NOW()
		WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, toParams(a))
	if err != nil {
		return mapUniqueViolation(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) List(ctx context.Context) ([]*entity.Account, error) {
	var rows []accountRow
	if err := r.db.SelectContext(ctx, &rows, selectColumns+` ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]*entity.Account, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out, nil
}

func toParams(a *entity.Account) map[string]any {
	return map[string]any{
		"id":                 a.ID,
		"username":           a.Username,
		"email":              a.Email,
		"password_hash":      a.PasswordHash,
		"role":               string(a.Role),
		"status":             string(a.Status),
		"verification_token": a.VerificationToken,
		"failed_attempts":    a.FailedAttempts,
		"disabled":           a.Disabled,
		"disabled_until":     a.DisabledUntil,
		"phone":              a.Phone,
		"bio":                a.Bio,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return account.ErrNotFound
	}
	return err
}

// mapUniqueViolation converts the Postgres unique-violation code on the
// email constraint into the store-level sentinel.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return account.ErrDuplicateEmail
	}
	return err
}
