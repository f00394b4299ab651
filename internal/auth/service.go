// Package auth keeps the local user directory and issues the bearer tokens the
// API accepts. Credentials live with the external identity provider; this
// service only mirrors who a user is and what role they hold.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	Upsert(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Service registers users and issues tokens.
type Service struct {
	repo      Repository
	jwtSecret string
	jwtExpiry time.Duration
	logger    logger.Logger
}

func NewService(repo Repository, jwtSecret string, jwtExpiry time.Duration, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    log,
	}
}

// RegisterRequest mirrors a user known to the identity provider.
type RegisterRequest struct {
	ID       *uuid.UUID      `json:"id,omitempty"`
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required,max=200"`
	UserType domain.UserType `json:"user_type" validate:"omitempty,oneof=individual admin"`
}

// TokenResponse is returned when a token is issued.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *domain.User `json:"user"`
}

// Register stores a user. The id is kept when the identity provider supplies one.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.Validation("email is required")
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && (req.ID == nil || *req.ID != existing.ID) {
		return nil, pkgerrors.ErrUserAlreadyExists
	}

	userType := req.UserType
	if userType == "" {
		userType = domain.UserTypeIndividual
	}
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		UserType:  userType,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if req.ID != nil {
		user.ID = *req.ID
	}

	if err := s.repo.Upsert(ctx, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, pkgerrors.ErrUserAlreadyExists
		}
		return nil, pkgerrors.Wrap(err, "failed to register user")
	}

	s.logger.Info("User registered", map[string]interface{}{"user_id": user.ID, "user_type": user.UserType})
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// IssueToken signs an access token for an active user.
func (s *Service) IssueToken(ctx context.Context, userID uuid.UUID) (*TokenResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, pkgerrors.State("user %s is inactive", user.ID)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := jwt.MapClaims{
		"user_id":   user.ID.String(),
		"email":     user.Email,
		"user_type": string(user.UserType),
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}
