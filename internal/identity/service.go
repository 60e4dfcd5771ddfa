// Package identity covers accounts, roles and bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type Service struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens *TokenIssuer
	log    logrus.FieldLogger
}

func NewService(users repository.UserRepository, hasher PasswordHasher, tokens *TokenIssuer, log logrus.FieldLogger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log,
	}
}

// Register creates a Customer account. Duplicate emails return repository.ErrEmailTaken.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	return s.createUser(ctx, email, password, fullName, domain.RoleCustomer)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		logger.FromContext(ctx, s.log).WithField("user_id", u.ID).Info("login rejected")
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(token string) (*Principal, error) {
	return s.tokens.Verify(token)
}

func (s *Service) createUser(ctx context.Context, email, password, fullName string, role domain.Role) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
