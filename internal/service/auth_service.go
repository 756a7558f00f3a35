package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/repository"
	"github.com/iNeydlis/schooltest/pkg/jwtauth"

	"golang.org/x/crypto/bcrypt"
)

type NewUserInput struct {
	Username string
	Password string
	FullName string
	Role     string
	GradeID  string
}

type AuthService struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewAuthService(db *sql.DB, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  repository.NewUserRepository(db),
		jwtSecret: jwtSecret,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, *jwtauth.TokenPair, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := jwtauth.GenerateTokenPair(user.ID, user.Username, user.Role, s.jwtSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user row
// is reloaded so revoked accounts and role changes take effect immediately.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwtauth.TokenPair, error) {
	claims, err := jwtauth.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := jwtauth.GenerateTokenPair(user.ID, user.Username, user.Role, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return pair, nil
}

// CreateUser registers an account. Only admins may call this.
func (s *AuthService) CreateUser(ctx context.Context, input *NewUserInput, callerID string) (*models.User, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get caller: %w", err)
	}
	if caller.Role != models.RoleAdmin {
		return nil, ErrAccessDenied
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: string(hash),
		FullName:     input.FullName,
		Role:         input.Role,
	}
	if input.GradeID != "" {
		user.GradeID = sql.NullString{String: input.GradeID, Valid: true}
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
