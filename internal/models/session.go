package models

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

type Session struct {
	ID     int `json:"id"`
	UserID int `json:"user_id"`
	//Token is only set when creating a new session. When looking up a session
	//this will be left empty, as we only store the hash of a session token
	//in our database and we cannot reverse it into a raw token.
	Token     string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

const (
	// MinBytesPerToken is the minimum number of bytes for a session token
	MinBytesPerToken = 32
	// DefaultTokenLength is the default token length (32 bytes = 256 bits)
	DefaultTokenLength = 32
	// SessionDuration is how long a session lasts (24 hours)
	SessionDuration = 24 * time.Hour
)

type SessionService struct {
	DB *sql.DB

	BytesPerToken   int
	SessionDuration time.Duration
}

func NewSessionService(db *sql.DB) *SessionService {
	return &SessionService{
		DB:              db,
		BytesPerToken:   DefaultTokenLength,
		SessionDuration: SessionDuration,
	}
}

// Create new session for user
func (ss *SessionService) Create(ctx context.Context, userID int) (*Session, error) {
	bytesPerToken := ss.BytesPerToken
	if bytesPerToken < MinBytesPerToken {
		bytesPerToken = MinBytesPerToken
	}
	token, err := ss.generateToken(bytesPerToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session := Session{
		UserID:    userID,
		Token:     token,
		TokenHash: ss.hash(token),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ss.SessionDuration),
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := ss.DB.QueryRowContext(ctx, `
	INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
	VALUES($1, $2, NOW(), NOW() + INTERVAL '24 hours')
	ON CONFLICT (user_id)
	DO UPDATE
	SET token_hash = $2
	RETURNING id, created_at, expires_at
	`, session.UserID, session.TokenHash)

	err = row.Scan(&session.ID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// User validates a raw session token and returns the owning user.
func (ss *SessionService) User(ctx context.Context, token string) (*User, error) {
	tokenHash := ss.hash(token)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var user User
	row := ss.DB.QueryRowContext(ctx, `
	SELECT users.id,
		users.email,
		users.username,
		users.password_hash,
		users.fitchecks_used,
		users.fitchecks_limit
	FROM sessions
	JOIN users ON users.id = sessions.user_id
	WHERE sessions.token_hash = $1 AND sessions.expires_at > NOW();`, tokenHash)
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FitchecksUsed, &user.FitchecksLimit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	return &user, nil
}

func (ss *SessionService) Delete(ctx context.Context, token string) error {
	tokenHash := ss.hash(token)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := ss.DB.ExecContext(ctx, `
	DELETE FROM sessions
	WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (ss *SessionService) generateToken(length int) (string, error) {
	b := make([]byte, length)

	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to read random: %w", err)
	}

	// Encode to base64 for URL-safe string
	token := base64.URLEncoding.EncodeToString(b)
	return token, nil
}

// Store hash in database, never the raw token.
func (ss *SessionService) hash(token string) string {
	hash := sha256.Sum256([]byte(token))
	tokenHash := base64.URLEncoding.EncodeToString(hash[:])
	return tokenHash
}
