package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

// Token is a signed bearer session.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session is the result of register and login.
type Session struct {
	Account account.Account
	Token   Token
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
	PlanID   string
}

func (in RegisterInput) validate() error {
	return validator.Apply(
		validator.Required("email", in.Email),
		validator.Email("email", in.Email),
		validator.MaxLen("email", in.Email, 255),
		validator.Required("name", in.Name),
		validator.MaxLen("name", in.Name, 255),
		validator.Required("password", in.Password),
		validator.MinLen("password", in.Password, 8),
		validator.MaxLen("password", in.Password, 72),
	)
}

// Service registers and authenticates accounts and issues bearer tokens.
type Service struct {
	accounts  account.Store
	lifecycle *lifecycle.Service
	hasher    *Hasher
	tokens    *jwt.Service
	log       *slog.Logger
}

func NewService(accounts account.Store, lc *lifecycle.Service, hasher *Hasher, tokens *jwt.Service, log *slog.Logger) *Service {
	if accounts == nil || lc == nil || hasher == nil || tokens == nil {
		panic("auth: nil dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{accounts: accounts, lifecycle: lc, hasher: hasher, tokens: tokens, log: log}
}

// Register creates the account in trial or pending and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := in.validate(); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	acc, err := s.lifecycle.Register(ctx, lifecycle.RegisterParams{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		PlanID:       in.PlanID,
	})
	if errors.Is(err, account.ErrEmailTaken) {
		var verr validator.ValidationErrors
		verr.Add("email", "email is already registered")
		return Session{}, errors.Join(err, verr)
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(acc)
}

// Login verifies credentials, reconciles the account and signs it in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validator.Apply(
		validator.Required("email", email),
		validator.Email("email", email),
		validator.Required("password", password),
	); err != nil {
		return Session{}, err
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.hasher.Verify(acc.PasswordHash, password); err != nil {
		s.log.InfoContext(ctx, "login failed", logger.Component("auth"), logger.AccountID(acc.ID))
		return Session{}, ErrInvalidCredentials
	}

	res, err := s.lifecycle.Reconcile(ctx, acc.ID)
	if err != nil {
		return Session{}, err
	}
	return s.session(res.Account)
}

// Authenticate resolves the account id carried by verified token claims.
func (s *Service) Authenticate(claims *jwt.Claims) (uuid.UUID, error) {
	if claims == nil {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}

func (s *Service) session(acc account.Account) (Session, error) {
	token, exp, err := s.tokens.Issue(acc.ID.String(), acc.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Account: acc,
		Token:   Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp},
	}, nil
}
