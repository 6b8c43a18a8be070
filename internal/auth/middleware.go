package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UnauthorizedMessage is returned for every token failure so callers cannot
// tell a missing token from a forged or expired one.
const UnauthorizedMessage = "Not authorized to access this route"

// Principal represents the authenticated caller. User is nil when the route
// only verified the token.
type Principal struct {
	UserID string
	User   *domain.User
	Token  string
	Claims *Claims
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	users   repository.UserRepository
	revoked RevocationList
	logger  *zap.Logger
}

// NewAuthMiddleware constructs middleware. users and revoked may be nil, which
// skips the account lookup and the revocation check respectively.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, revoked RevocationList, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, revoked: revoked, logger: logger}
}

// Handle enforces authentication for protected routes and loads the account.
// A token whose user no longer exists is rejected.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.verify(c)
	if err != nil {
		return err
	}
	if m.users != nil {
		user, err := m.users.GetByID(c.UserContext(), principal.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized(UnauthorizedMessage)
			}
			return apperrors.NewInternalError(err)
		}
		principal.User = user
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// HandleToken verifies the token without loading the account, leaving a
// missing user for the handler to report.
func (m *AuthMiddleware) HandleToken(c *fiber.Ctx) error {
	principal, err := m.verify(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *AuthMiddleware) verify(c *fiber.Ctx) (*Principal, error) {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return nil, apperrors.NewUnauthorized(UnauthorizedMessage)
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized(UnauthorizedMessage)
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(c.UserContext(), claims.TokenID())
		if err != nil {
			m.logger.Warn("revocation lookup failed", zap.Error(err))
		}
		if revoked {
			return nil, apperrors.NewUnauthorized(UnauthorizedMessage)
		}
	}

	return &Principal{UserID: claims.SubjectID(), Token: token, Claims: claims}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
