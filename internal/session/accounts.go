package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zombor/eco-receipts/internal/latency"
)

// Directory checks credentials and creates identities
type Directory interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	Lookup(ctx context.Context, email string) (*User, error)
}

type registration struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Accounts is a Directory backed by an AccountDB with bcrypt password hashes.
// Every call waits for delay first to behave like a remote auth service.
type Accounts struct {
	db       AccountDB
	delay    time.Duration
	cost     int
	validate *validator.Validate
	now      func() time.Time
}

// NewAccounts creates an Accounts directory
func NewAccounts(db AccountDB, delay time.Duration) *Accounts {
	return NewAccountsWithCost(db, delay, bcrypt.DefaultCost)
}

// NewAccountsWithCost creates an Accounts directory with a custom bcrypt cost for testing
func NewAccountsWithCost(db AccountDB, delay time.Duration, cost int) *Accounts {
	return &Accounts{
		db:       db,
		delay:    delay,
		cost:     cost,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Register creates a new account
func (a *Accounts) Register(ctx context.Context, name, email, password string) (*User, error) {
	req := registration{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	if err := latency.Sleep(ctx, a.delay); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &Account{
		User: User{
			ID:        uuid.NewString(),
			Email:     req.Email,
			Name:      req.Name,
			CreatedAt: a.now().UTC(),
		},
		PasswordHash: hash,
	}
	if err := a.db.CreateAccount(account); err != nil {
		return nil, err
	}
	return &account.User, nil
}

// Authenticate checks an email and password pair
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*User, error) {
	req := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	if err := latency.Sleep(ctx, a.delay); err != nil {
		return nil, err
	}

	account, err := a.db.GetAccount(req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &account.User, nil
}

// Lookup returns the user registered under email
func (a *Accounts) Lookup(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := a.db.GetAccount(email)
	if err != nil {
		return nil, err
	}
	return &account.User, nil
}

// describe turns validator errors into a short message naming the failing fields
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
