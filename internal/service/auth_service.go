package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"beerich/internal/auth"
	"beerich/internal/model"
	"beerich/internal/repository"
)

const bcryptCost = 10

var (
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserAlreadyExists is returned when trying to sign up an existing user.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidSession is returned when a session token is invalid or expired.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// AuthService handles signup, login, and logout.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (token string, user *model.User, err error)
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
	Logout(ctx context.Context, token string) error
}

type authService struct {
	userRepo     repository.UserRepository
	jwtService   *auth.JWTService
	sessionStore auth.SessionStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, sessionStore auth.SessionStoreInterface) AuthService {
	return &authService{
		userRepo:     userRepo,
		jwtService:   jwtService,
		sessionStore: sessionStore,
	}
}

// Register creates a new user with a hashed password and opens a session.
func (s *authService) Register(ctx context.Context, email, password, name string) (string, *model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return "", nil, ErrUserAlreadyExists
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return "", nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login authenticates a user and opens a session.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout removes the session from the registry so the cookie stops working.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtService.ValidateSessionToken(token)
	if err != nil {
		return ErrInvalidSession
	}
	return s.sessionStore.Delete(ctx, claims.ID)
}

func (s *authService) openSession(ctx context.Context, user *model.User) (string, error) {
	tokenID, token, err := s.jwtService.IssueSessionToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	if err := s.sessionStore.Put(ctx, tokenID, user.ID, user.Email, auth.SessionExpiry); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}
