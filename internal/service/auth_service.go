package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
	"github.com/divyandj/IMAGE-Hackathon/internal/security"
)

type AuthService struct {
	users repository.UserRepository
	cfg   config.SecurityConfig
	hash  func(password string) ([]byte, error)
	log   zerolog.Logger
}

func NewAuthService(users repository.UserRepository, cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		hash:  security.HashPassword,
		log:   log,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token string
	User  models.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and signs the caller in. Duplicate emails are rejected by
// the store's unique index, so concurrent registrations cannot both succeed.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" {
		return AuthResult{}, apperr.Validation("email and username are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthResult{}, apperr.Validation("invalid email address")
	}

	var passwordHash []byte
	if input.Password != "" {
		hash, err := s.hash(input.Password)
		if err != nil {
			return AuthResult{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
		}
		passwordHash = hash
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Credits:      0,
		Plan:         models.DefaultPlan,
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, apperr.Conflict("User already exists")
		}
		return AuthResult{}, apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	user.ID = id

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return AuthResult{}, apperr.Validation("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.NotFound("User not found")
		}
		return AuthResult{}, apperr.Internal(fmt.Errorf("find user: %w", err))
	}

	// Accounts registered without a password sign in by email alone.
	if user.HasPassword() {
		ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		}
		if err != nil || !ok {
			return AuthResult{}, apperr.Auth("invalid credentials")
		}
	}

	return s.issue(user)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal(fmt.Errorf("load user: %w", err))
	}
	return user, nil
}

func (s *AuthService) issue(user models.User) (AuthResult, error) {
	token, err := security.IssueToken(s.cfg.TokenSecret, user.ID, s.cfg.TokenTTL)
	if err != nil {
		return AuthResult{}, apperr.Internal(fmt.Errorf("issue token: %w", err))
	}
	return AuthResult{Token: token, User: user}, nil
}
