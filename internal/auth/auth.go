// Package auth implements sign-up, sign-in and the acknowledgment-only
// account operations against the user table.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/newslens/internal/store"
	"github.com/HerbHall/newslens/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Table is the store table holding user records.
const Table = "users"

// DefaultAvatar is the avatar assigned to new accounts.
const DefaultAvatar = "/img/avatars/thumb-1.jpg"

// SignInGuidance is the message returned with a failed sign-in.
const SignInGuidance = "loginName: admin | credentialSecret: 123Qwe"

// DefaultRoles are granted to every new account.
var DefaultRoles = []string{models.RoleAdmin, models.RoleUser}

// Sentinel errors returned by Service.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateLogin     = errors.New("user already exist")
	ErrDuplicateEmail     = errors.New("email already used")
)

// Session is returned by a successful sign-in or sign-up.
type Session struct {
	User  models.Profile `json:"user"`
	Token string         `json:"token"`
}

// SignUpRequest carries the fields of a new account.
type SignUpRequest struct {
	DisplayName      string `json:"displayName"`
	LoginName        string `json:"loginName"`
	CredentialSecret string `json:"credentialSecret"`
	Email            string `json:"email"`
}

// Service implements the account operations.
type Service struct {
	store  *store.Store
	tokens TokenIssuer
	cost   int
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost sets the bcrypt cost used when hashing new secrets.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a Service over st. A nil tokens issuer issues the
// static placeholder token.
func NewService(st *store.Store, tokens TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	if tokens == nil {
		tokens = StaticIssuer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: st, tokens: tokens, cost: bcrypt.DefaultCost, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the issuer sessions are minted with.
func (s *Service) Tokens() TokenIssuer {
	return s.tokens
}

// SignIn returns a session for the user whose login name and secret both
// match. Any mismatch yields ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, loginName, secret string) (*Session, error) {
	u, ok, err := store.FindOne(s.store, Table, func(u models.User) bool {
		return u.LoginName == loginName
	})
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !ok || !CheckSecret(u.CredentialSecret, secret) {
		s.logger.Info("sign-in rejected")
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// SignUp creates an account. A taken login name is reported before a
// taken email.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	hash, err := HashSecret(req.CredentialSecret, s.cost)
	if err != nil {
		return nil, err
	}

	rec := models.User{
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		CredentialSecret: hash,
		LoginName:        req.LoginName,
		AvatarRef:        DefaultAvatar,
		Roles:            models.RoleSet(DefaultRoles...),
	}
	u, err := store.InsertChecked(s.store, Table, rec, func(existing []models.User) error {
		for _, e := range existing {
			if e.LoginName == req.LoginName {
				return ErrDuplicateLogin
			}
		}
		for _, e := range existing {
			if e.Email == req.Email {
				return ErrDuplicateEmail
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateLogin) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", u.ID))
	return s.session(u)
}

// SignOut acknowledges a sign-out. Tokens are not tracked server side.
func (s *Service) SignOut(context.Context) (bool, error) { return true, nil }

// ForgotPassword acknowledges a password-reset request.
func (s *Service) ForgotPassword(context.Context) (bool, error) { return true, nil }

// ResetPassword acknowledges a password reset.
func (s *Service) ResetPassword(context.Context) (bool, error) { return true, nil }

func (s *Service) session(u models.User) (*Session, error) {
	p := u.Profile()
	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: p, Token: token}, nil
}

// HashSecret hashes a credential secret with bcrypt.
func HashSecret(secret string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// CheckSecret reports whether secret matches hash.
func CheckSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
