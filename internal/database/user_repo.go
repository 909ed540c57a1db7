package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/radixapp/radix/internal/domain"
)

// maxSessionsPerUser caps stored sessions; the oldest is evicted when
// a new one would exceed it.
const maxSessionsPerUser = 7

// UserRepository handles user, account and session data access for the
// auth adapter.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The ID is assigned here if the caller
// left it zero.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, email, name, image, email_verified, access_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.Name, user.Image, user.EmailVerified, user.AccessToken)
	return err
}

// GetByID finds a user by ID, with linked accounts and sessions.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

// GetByEmail finds a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

// GetByAccount finds the user linked to an OAuth account.
func (r *UserRepository) GetByAccount(ctx context.Context, provider, providerAccountID string) (*domain.User, error) {
	return r.getUser(ctx, `
		WHERE id = (
			SELECT user_id FROM accounts
			WHERE provider = $1 AND provider_account_id = $2
		)`, provider, providerAccountID)
}

func (r *UserRepository) getUser(ctx context.Context, where string, args ...any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, email, name, image, email_verified, access_token
		FROM users `+where,
		args...,
	).Scan(
		&user.ID, &user.Email, &user.Name,
		&user.Image, &user.EmailVerified, &user.AccessToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.Accounts, err = r.accountsFor(ctx, user.ID); err != nil {
		return nil, err
	}
	if user.Sessions, err = r.sessionsFor(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) accountsFor(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT provider, provider_type, provider_account_id, access_token,
		       expires_at, scope, token_type, id_token
		FROM accounts WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		err := rows.Scan(
			&a.Provider, &a.ProviderType, &a.ProviderAccountID, &a.AccessToken,
			&a.ExpiresAt, &a.Scope, &a.TokenType, &a.IDToken,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *UserRepository) sessionsFor(ctx context.Context, userID uuid.UUID) ([]domain.Session, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_token, user_id, expires
		FROM sessions WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.SessionToken, &s.UserID, &s.Expires); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AddAccount links an OAuth account to an existing user.
func (r *UserRepository) AddAccount(ctx context.Context, userID uuid.UUID, account domain.Account) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, provider, provider_type, provider_account_id,
		                      access_token, expires_at, scope, token_type, id_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.New(), userID, account.Provider, account.ProviderType, account.ProviderAccountID,
		account.AccessToken, account.ExpiresAt, account.Scope, account.TokenType, account.IDToken)
	return err
}

// CreateSession stores a new session and evicts the user's oldest one
// when the cap is exceeded.
func (r *UserRepository) CreateSession(ctx context.Context, session domain.Session) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (session_token, user_id, expires)
		VALUES ($1, $2, $3)
	`, session.SessionToken, session.UserID, session.Expires)
	if err != nil {
		return err
	}

	var count int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE user_id = $1
	`, session.UserID).Scan(&count); err != nil {
		return err
	}
	if count > maxSessionsPerUser {
		_, err = tx.Exec(ctx, `
			DELETE FROM sessions WHERE session_token = (
				SELECT session_token FROM sessions
				WHERE user_id = $1
				ORDER BY expires ASC
				LIMIT 1
			)
		`, session.UserID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetBySessionToken resolves a session token to its user, rejecting
// missing and expired sessions.
func (r *UserRepository) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	var userID uuid.UUID
	var expires time.Time
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, expires FROM sessions WHERE session_token = $1
	`, token).Scan(&userID, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(expires) {
		return nil, domain.ErrSessionExpired
	}
	return r.GetByID(ctx, userID)
}

// GetSessionAndUser is the adapter lookup: session plus its user.
func (r *UserRepository) GetSessionAndUser(ctx context.Context, token string) (*domain.SessionAndUser, error) {
	var session domain.Session
	err := r.db.Pool.QueryRow(ctx, `
		SELECT session_token, user_id, expires FROM sessions WHERE session_token = $1
	`, token).Scan(&session.SessionToken, &session.UserID, &session.Expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	user, err := r.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.SessionAndUser{Session: session, User: *user}, nil
}

// DeleteSession removes a session; deleting an unknown token is a no-op.
func (r *UserRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE session_token = $1`, token)
	return err
}

// UpdateSessionExpiry extends a session.
func (r *UserRepository) UpdateSessionExpiry(ctx context.Context, token string, expires time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET expires = $2 WHERE session_token = $1
	`, token, expires)
	return err
}
