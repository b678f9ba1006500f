// Package pgstore implements authcore.AccountStore on PostgreSQL via pgx.
//
// Failed-login accounting is a single conditional UPDATE so that concurrent
// attempts against the same account serialize on the row and the lock
// threshold is applied exactly once.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/authcore"
)

// Schema is the DDL the store expects. Apply it with your migration tooling;
// the store never creates tables itself.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id              TEXT PRIMARY KEY,
    username        TEXT NOT NULL,
    email           TEXT NOT NULL,
    credential_hash TEXT NOT NULL,
    phone_hash      TEXT NOT NULL DEFAULT '',
    phone_suffix    TEXT NOT NULL DEFAULT '',
    role            TEXT NOT NULL DEFAULT 'user',
    failed_attempts INT  NOT NULL DEFAULT 0,
    locked_until    TIMESTAMPTZ,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    last_login      TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT accounts_email_key    UNIQUE (email),
    CONSTRAINT accounts_username_key UNIQUE (username)
);
`

const accountColumns = `id, username, email, credential_hash, phone_hash, phone_suffix,
role, failed_attempts, locked_until, active, last_login, created_at`

// Store is a PostgreSQL-backed account store. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool. The caller owns the pool lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanAccount(row pgx.Row) (authcore.Account, error) {
	var (
		acct authcore.Account
		role string
	)
	err := row.Scan(
		&acct.ID,
		&acct.Username,
		&acct.Email,
		&acct.CredentialHash,
		&acct.PhoneHash,
		&acct.PhoneSuffix,
		&role,
		&acct.FailedAttempts,
		&acct.LockedUntil,
		&acct.Active,
		&acct.LastLogin,
		&acct.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	if err != nil {
		return authcore.Account{}, fmt.Errorf("pgstore: scan account: %w", err)
	}
	acct.Role = authcore.Role(role)
	return acct, nil
}

// FindByEmail looks an account up by its email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (authcore.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByID looks an account up by its primary key.
func (s *Store) FindByID(ctx context.Context, id string) (authcore.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// EmailTaken reports whether any account already uses the email address.
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("pgstore: email lookup: %w", err)
	}
	return taken, nil
}

// UsernameTaken reports whether any account already uses the username.
func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("pgstore: username lookup: %w", err)
	}
	return taken, nil
}

// Create inserts a new account. Unique-constraint violations are mapped to
// authcore.ErrEmailExists / ErrUsernameExists so that pre-insert availability
// checks stay advisory and the database remains the authority.
func (s *Store) Create(ctx context.Context, acct authcore.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts
		   (id, username, email, credential_hash, phone_hash, phone_suffix,
		    role, failed_attempts, locked_until, active, last_login, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		acct.ID, acct.Username, acct.Email, acct.CredentialHash,
		acct.PhoneHash, acct.PhoneSuffix, string(acct.Role),
		acct.FailedAttempts, acct.LockedUntil, acct.Active,
		acct.LastLogin, acct.CreatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("pgstore: insert account: %w", err)
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return authcore.ErrEmailExists
	case strings.Contains(pgErr.ConstraintName, "username"):
		return authcore.ErrUsernameExists
	}
	return fmt.Errorf("pgstore: unique violation on %s: %w", pgErr.ConstraintName, err)
}

// UpdateCredentialHash replaces the stored credential hash.
func (s *Store) UpdateCredentialHash(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET credential_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("pgstore: update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// RecordFailedLogin increments the failure counter and, when the new count
// reaches the threshold, stamps locked_until in the same statement. Returns
// the updated row.
func (s *Store) RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration) (authcore.Account, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE accounts
		    SET failed_attempts = failed_attempts + 1,
		        locked_until = CASE
		            WHEN failed_attempts + 1 >= $2
		            THEN now() + make_interval(secs => $3)
		            ELSE locked_until
		        END
		  WHERE id = $1
		  RETURNING `+accountColumns,
		id, threshold, lockFor.Seconds(),
	)
	return scanAccount(row)
}

// ResetLockout clears failure state after a successful login and records the
// login time.
func (s *Store) ResetLockout(ctx context.Context, id string, lastLogin time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		    SET failed_attempts = 0, locked_until = NULL, last_login = $2
		  WHERE id = $1`,
		id, lastLogin,
	)
	if err != nil {
		return fmt.Errorf("pgstore: reset lockout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// Deactivate marks the account inactive. Existing lockout state is left as is.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: deactivate account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}
