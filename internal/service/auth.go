package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/jwt"
	"threaded_messaging/pkg/logger"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{3,150}$`)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	// Login accepts either a username or an email address as login.
	Login(ctx context.Context, login, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.User, error)
}

type LoginResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

type authService struct {
	store  repository.Store
	tokens *jwt.Manager
	log    logger.Logger
}

func NewAuthService(store repository.Store, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		store:  store,
		tokens: jwt.NewManager(jwtCfg.AccessSecret, jwtCfg.AccessTTL, jwtCfg.Issuer),
		log:    log,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if !usernamePattern.MatchString(username) {
		return nil, apperrors.Validation("username", "must be 3-150 letters, digits or @.+-_")
	}
	if email == "" || len(email) > 255 {
		return nil, apperrors.Validation("email", "is required and at most 255 characters")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return nil, apperrors.Validation("email", "invalid format")
	}
	if len(password) < 8 {
		return nil, apperrors.Validation("password", "must be at least 8 characters")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, err
		}
		s.log.Error("Failed to create user", "error", err, "username", username)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("User registered", "user_id", user.ID, "username", username)
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, login, password string) (*LoginResponse, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.store.Users().GetByEmail(ctx, login)
	} else {
		user, err = s.store.Users().GetByUsername(ctx, login)
	}
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	user.PasswordHash = ""
	return &LoginResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// account deleted after the token was issued
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}
