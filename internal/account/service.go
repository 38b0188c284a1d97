package account

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/etudehq/etude-auth/internal/database"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

var (
	ErrUserNotFound = apperrors.NotFoundError("user not found", nil)

	// ErrInvalidCredentials deliberately covers both unknown-user and
	// wrong-password so login failures never reveal which one happened.
	ErrInvalidCredentials = apperrors.AccessDeniedError("invalid email or password", nil)
)

type Service struct {
	DB *database.Database
}

func NewService(db *database.Database) Service {
	return Service{
		DB: db,
	}
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	var user User

	query := `SELECT id, email, full_name, password_hash, department, is_leader, disabled, created_at FROM users WHERE email = $1`
	row := s.DB.QueryRow(ctx, query, email)
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.Department, &user.IsLeader, &user.Disabled, &user.CreatedAt); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, apperrors.StoreUnavailableError("failed to get user by email", err)
	}

	return user, nil
}

// Authenticate verifies a user's password. Unknown users and bad passwords
// both come back as ErrInvalidCredentials; disabled users are treated the
// same way so the account state does not leak either.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if user.Disabled {
		return User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) CreateUser(ctx context.Context, user User, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperrors.InternalError("failed to hash password", err)
	}
	user.PasswordHash = string(hash)

	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (email, full_name, password_hash, department, is_leader, disabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if err := s.DB.QueryRow(ctx, query,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Department,
		user.IsLeader,
		user.Disabled,
	).Scan(&user.ID, &user.CreatedAt); err != nil {
		return User{}, fmt.Errorf("failed to save user: %w", err)
	}

	return user, nil
}
