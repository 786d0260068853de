package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/internal/modules/user/dto"
	"anoa.com/storerating/internal/modules/user/repository"
	"anoa.com/storerating/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperror.ErrUnauthenticated)

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, input dto.UpdatePasswordInput) error
}

// StatsInvalidator drops cached dashboard counts once a new user exists.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

type authService struct {
	repo       repository.UserRepository
	tokens     *TokenManager
	stats      StatsInvalidator
	log        logrus.FieldLogger
	bcryptCost int
}

func NewAuthService(repo repository.UserRepository, tokens *TokenManager, stats StatsInvalidator, log logrus.FieldLogger) AuthService {
	return &authService{
		repo:       repo,
		tokens:     tokens,
		stats:      stats,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register always creates a normal_user; elevated roles are granted by an admin or by store assignment.
func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	email := strings.TrimSpace(input.Email)

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hash),
		Address:      strings.TrimSpace(input.Address),
		Role:         entity.RoleNormalUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("email already registered: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	s.log.WithField("user_id", user.ID).Info("user registered")

	return s.buildAuthResponse(user)
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.buildAuthResponse(user)
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	res := dto.NewUserResponse(user)
	return &res, nil
}

func (s *authService) UpdatePassword(ctx context.Context, userID uuid.UUID, input dto.UpdatePasswordInput) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", apperror.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return err
	}

	s.log.WithField("user_id", userID).Info("password updated")
	return nil
}

func (s *authService) buildAuthResponse(user *entity.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt.Unix(),
		User:      dto.NewUserResponse(user),
	}, nil
}
