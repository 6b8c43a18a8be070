package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const (
	msgEmailTaken         = "User already exists with this email"
	msgEmailExists        = "Email already exists"
	msgInvalidCredentials = "Invalid email or password"
)

// AuthService coordinates registration, login and profile flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	revoked    auth.RevocationList
	bcryptCost int
	logger     *zap.Logger

	// dummyHash is compared against when the email is unknown so that login
	// latency does not reveal whether an account exists.
	dummyHash string
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Revocation auth.RevocationList
	Logger     *zap.Logger
}

// RegisterInput describes a registration request after boundary validation.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.UserRole
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := auth.HashPassword("task-service-dummy-password", cfg.BcryptCost)
	if err != nil {
		logger.Warn("failed to prepare dummy hash", zap.Error(err))
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		revoked:    deps.Revocation,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
		dummyHash:  dummy,
	}
}

// Register creates a new account and issues a token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, time.Time, error) {
	email := repository.NormalizeEmail(input.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict(msgEmailTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	role := input.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", time.Time{}, apperrors.NewConflict(msgEmailTaken)
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, token, exp, nil
}

// Login authenticates a user. Unknown email and wrong password yield the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewInternalError(err)
		}
		if s.dummyHash != "" {
			_ = auth.ComparePassword(s.dummyHash, password)
		}
		return nil, "", time.Time{}, apperrors.NewUnauthorized(msgInvalidCredentials)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(msgInvalidCredentials)
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Profile returns the user behind a verified token.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// UpdateProfile changes name and/or email. An empty patch returns the current profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	if patch.Empty() {
		return s.Profile(ctx, userID)
	}
	user, err := s.users.UpdateProfile(ctx, userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, apperrors.NewConflict(msgEmailExists)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoked == nil || claims == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.TokenID(), claims.Remaining(time.Now())); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
