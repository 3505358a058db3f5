package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/pkg/auth"
	"github.com/thereayou/concord/pkg/log"
	"golang.org/x/crypto/bcrypt"
)

// TokenBlacklist tracks revoked tokens.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users      UserStore
	jwtManager *auth.JWTManager
	blacklist  TokenBlacklist
	hashCost   int
}

func NewAuthService(users UserStore, jwtManager *auth.JWTManager, blacklist TokenBlacklist) *AuthService {
	return &AuthService{
		users:      users,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		hashCost:   bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.hashCost = cost
	return s
}

// Authenticate resolves a bearer token to the principal it was issued for.
// Missing, revoked, malformed, badly signed and expired tokens are all
// rejected with ErrUnauthorized. A blacklist lookup failure also rejects.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*auth.Principal, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, auth.ErrMissingToken)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, rawToken)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("token blacklist unavailable")
		return nil, fmt.Errorf("%w: cannot verify token revocation", ErrUnauthorized)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", ErrUnauthorized)
	}

	claims, err := s.jwtManager.Verify(rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	principal, err := claims.Principal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return principal, nil
}

// bcrypt rejects longer passwords.
const maxPasswordBytes = 72

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" {
		return nil, validationError("username and email are required")
	}
	if len(in.Password) < 6 {
		return nil, validationError("password must be at least 6 characters")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, validationError("password must be at most %d bytes", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("user %q: %w", username, ErrConflict)
		}
		return nil, storeError("save user", err)
	}

	log.Ctx(ctx).Info().Str(log.FieldUserID, user.ID.String()).Msg("user registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, storeError("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if err := s.users.UpdateLastSeen(ctx, user.ID); err != nil {
		return nil, storeError("update last seen", err)
	}

	return s.issue(user)
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	exp, err := s.jwtManager.Expiry(rawToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := s.blacklist.Revoke(ctx, rawToken, exp); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.jwtManager.Generate(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
