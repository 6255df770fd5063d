package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

var (
	ErrUserNotFound = fmt.Errorf("%w: user not found", apperrors.ErrNotFound)
	ErrUserExists   = fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	ErrInvalidRole  = fmt.Errorf("%w: invalid user role", apperrors.ErrValidation)
	ErrMissingName  = fmt.Errorf("%w: name is required", apperrors.ErrValidation)
)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// UserService handles user registration and lookup
type UserService struct {
	userRepo repositories.UserRepository
	reviews  *ReviewService
	logger   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, reviews *ReviewService, log *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		reviews:  reviews,
		logger:   log,
	}
}

// RegisterUserParams contains parameters for creating a new user
type RegisterUserParams struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Phone string          `json:"phone,omitempty"`
	Role  models.UserRole `json:"role"`
}

// Register creates a user and binds any review invitations addressed to
// their email.
func (s *UserService) Register(ctx context.Context, params RegisterUserParams) (*models.User, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrMissingName
	}
	if !isValidEmail(params.Email) {
		return nil, ErrInvalidEmail
	}
	if !params.Role.IsValid() {
		return nil, ErrInvalidRole
	}

	user := &models.User{
		Name:  strings.TrimSpace(params.Name),
		Email: params.Email,
		Phone: params.Phone,
		Role:  params.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.reviews != nil {
		bound, err := s.reviews.ResolveInvitations(ctx, user)
		if err != nil {
			// The user exists either way; invitations are retried on submit.
			s.logger.Warn("failed to resolve review invitations", "user_id", user.ID, "error", err)
		} else if bound > 0 {
			s.logger.Info("review invitations resolved", "user_id", user.ID, "count", bound)
		}
	}
	return user, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func isValidEmail(email string) bool {
	return emailRegex.MatchString(strings.ToLower(strings.TrimSpace(email)))
}
