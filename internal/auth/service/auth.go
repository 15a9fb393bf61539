package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	"github.com/peopleops/hrms-backend/internal/auth/repository"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// bcryptCost satisfies the adaptive-hash cost floor.
const bcryptCost = 12

// AuthService handles registration, login and token lifecycle.
type AuthService struct {
	repo       *repository.UserRepository
	jwtManager *jwt.Manager
	recorder   *audit.Recorder
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(repo *repository.UserRepository, jwtManager *jwt.Manager, recorder *audit.Recorder, log *logger.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		jwtManager: jwtManager,
		recorder:   recorder,
		logger:     log,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *Profile  `json:"user"`
}

// Profile is the public view of a user.
type Profile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Roles       []string   `json:"roles"`
	Enabled     bool       `json:"enabled"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func profileOf(u *repository.User) *Profile {
	return &Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Roles:       u.Roles,
		Enabled:     u.Enabled,
		LastLoginAt: u.LastLoginAt,
	}
}

// Register creates a user with the baseline USER role. The password is
// stored as a bcrypt hash and never logged.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password")
	}

	user := &repository.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Enabled:      true,
	}

	if err := s.repo.Create(ctx, user, []string{repository.RoleUser}); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "user", user.Username, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})

	return profileOf(user), nil
}

// Login authenticates a user and issues a token pair. The LOGIN audit
// event is written inline so it is durable before the response.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if apperr.Is(err, apperr.ErrNotFound) {
			return nil, apperr.InvalidCredentials()
		}
		return nil, err
	}

	if !user.Enabled {
		return nil, apperr.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.InvalidCredentials()
	}

	tokens, err := s.jwtManager.Issue(user.Username, user.Roles)
	if err != nil {
		return nil, apperr.Internal("failed to issue tokens")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to update last login")
	}

	s.recorder.RecordSync(ctx, audit.ActionLogin, "user", user.Username, nil)

	return &LoginResponse{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         profileOf(user),
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByUsername(ctx, claims.Username)
	if err != nil {
		return nil, apperr.Unauthenticated("unknown user")
	}
	if !user.Enabled {
		return nil, apperr.Unauthenticated("user disabled")
	}

	return s.jwtManager.Issue(user.Username, user.Roles)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, username string) (*Profile, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

// Logout records the LOGOUT audit event. Access tokens are short-lived
// and stateless; there is no server-side session to revoke.
func (s *AuthService) Logout(ctx context.Context, username string) {
	s.recorder.RecordSync(ctx, audit.ActionLogout, "user", username, nil)
}
