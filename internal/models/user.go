package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`

	// Fitcheck usage tracking
	FitchecksUsed  int `json:"fitchecks_used"`
	FitchecksLimit int `json:"fitchecks_limit"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// RemainingQuota returns how many fitchecks the user can still run.
func (u *User) RemainingQuota() int {
	return u.FitchecksLimit - u.FitchecksUsed
}

// QuotaPercentUsed returns quota usage as a percentage for display.
func (u *User) QuotaPercentUsed() int {
	if u.FitchecksLimit == 0 {
		return 100
	}
	return (u.FitchecksUsed * 100) / u.FitchecksLimit
}

type UserService struct {
	DB *sql.DB

	// DefaultQuota is the fitcheck limit assigned to new accounts.
	DefaultQuota int
}

func NewUserService(db *sql.DB, defaultQuota int) *UserService {
	if defaultQuota <= 0 {
		defaultQuota = 50
	}
	return &UserService{DB: db, DefaultQuota: defaultQuota}
}

// Create registers a new user from email/password signup.
func (us *UserService) Create(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:          email,
		Username:       email, // Default username to email
		PasswordHash:   string(hashedBytes),
		FitchecksLimit: us.DefaultQuota,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = us.DB.QueryRowContext(
		ctx,
		`INSERT INTO users (email, username, password_hash, fitchecks_used, fitchecks_limit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		user.Email,
		user.Username,
		user.PasswordHash,
		0,
		user.FitchecksLimit,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ByID retrieves a user by their ID.
func (us *UserService) ByID(ctx context.Context, id int) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user := &User{}
	err := us.DB.QueryRowContext(
		ctx,
		`SELECT id, email, username, password_hash, fitchecks_used, fitchecks_limit,
		        created_at, updated_at, last_login
		 FROM users
		 WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FitchecksUsed, &user.FitchecksLimit,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// Authenticate verifies email/password login credentials.
func (us *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user := &User{}
	err := us.DB.QueryRowContext(
		ctx,
		`SELECT id, email, username, password_hash, fitchecks_used, fitchecks_limit,
		        created_at, updated_at, last_login
		 FROM users
		 WHERE email = $1`,
		email,
	).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FitchecksUsed, &user.FitchecksLimit,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// UpdateLastLogin updates user's last login time
func (us *UserService) UpdateLastLogin(ctx context.Context, userID int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := us.DB.ExecContext(
		ctx,
		`UPDATE users SET last_login = NOW()
		 WHERE id = $1`,
		userID,
	)

	return err
}

// IncrementQuota records one completed fitcheck against the user's quota.
func (us *UserService) IncrementQuota(ctx context.Context, userID int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := us.DB.ExecContext(
		ctx,
		`UPDATE users SET fitchecks_used = fitchecks_used + 1, updated_at = NOW()
		 WHERE id = $1`,
		userID,
	)

	if err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete deletes a user from the database
func (us *UserService) Delete(ctx context.Context, userID int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := us.DB.ExecContext(
		ctx,
		`DELETE FROM users WHERE id = $1`,
		userID,
	)

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
