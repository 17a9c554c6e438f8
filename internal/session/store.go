package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store holds the authentication state of the dashboard. Login and Register
// move anonymous to authenticating, then to authenticated on success or back
// to anonymous on failure. Signing in over an authenticated session keeps
// the old session until the new one is established. A session restored from
// disk starts unverified and becomes authenticated only once its token has
// been checked.
type Store struct {
	persist Persistence
	dir     Directory
	tokens  *Tokens

	mu      sync.Mutex
	state   State
	user    *User
	token   string
	attempt uint64 // bumped by every login, register and logout
	pending uint64 // attempt still waiting on the directory, 0 when none
}

// NewStore creates an anonymous session store
func NewStore(persist Persistence, dir Directory, tokens *Tokens) *Store {
	return &Store{persist: persist, dir: dir, tokens: tokens}
}

// Current returns a snapshot of the session
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() Session {
	out := Session{State: s.state, Token: s.token}
	if s.user != nil {
		u := *s.user
		out.User = &u
	}
	return out
}

// Restore loads the persisted session into the unverified state. A
// persisted session whose user cannot be decoded is cleared and reported as
// a *StorageError; the store stays anonymous.
func (s *Store) Restore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Anonymous {
		return nil
	}

	persisted, err := s.persist.LoadSession()
	if err != nil {
		return &StorageError{Op: "restore", Err: err}
	}
	if persisted == nil {
		return nil
	}

	var user User
	if err := decodeUser(persisted.User, &user); err != nil {
		slog.Warn("Discarding corrupt persisted session", "error", err)
		return &StorageError{Op: "restore", Err: errors.Join(err, s.persist.ClearSession())}
	}

	s.state = Unverified
	s.user = &user
	s.token = persisted.Token
	slog.Info("Session restored, pending verification", "user_id", user.ID)
	return nil
}

func decodeUser(data []byte, user *User) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: user missing", ErrCorruptSession)
	}
	if err := json.Unmarshal(data, user); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSession, err)
	}
	if user.ID == "" || user.Email == "" {
		return fmt.Errorf("%w: user has no identity", ErrCorruptSession)
	}
	return nil
}

// Verify checks the token of an unverified session. A valid token
// authenticates the session; an invalid one clears it.
func (s *Store) Verify(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Authenticated:
		s.mu.Unlock()
		return nil
	case Unverified:
	default:
		s.mu.Unlock()
		return &AuthError{Op: "verify", Err: ErrNotAuthenticated}
	}
	token, user, attempt := s.token, *s.user, s.attempt
	s.mu.Unlock()

	err := s.check(ctx, token, &user)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt || s.state != Unverified || s.token != token {
		// someone else moved the session on
		if s.state == Authenticated {
			return nil
		}
		return &AuthError{Op: "verify", Err: ErrNotAuthenticated}
	}

	switch {
	case err == nil:
		s.state = Authenticated
		slog.Info("Session verified", "user_id", user.ID)
		return nil
	case errors.Is(err, ErrInvalidToken):
		slog.Warn("Persisted session rejected", "user_id", user.ID, "error", err)
		s.resetLocked()
		return &AuthError{Op: "verify", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &AuthError{Op: "verify", Err: err}
	default:
		return &StorageError{Op: "verify", Err: err}
	}
}

func (s *Store) check(ctx context.Context, token string, user *User) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if claims.Subject != user.ID {
		return fmt.Errorf("%w: token subject does not match persisted user", ErrInvalidToken)
	}
	if _, err := s.dir.Lookup(ctx, user.Email); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return err
	}
	return nil
}

// Login authenticates with an email and password
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	attempt, err := s.begin("login")
	if err != nil {
		return Session{}, err
	}
	user, err := s.dir.Authenticate(ctx, email, password)
	return s.finish(ctx, "login", attempt, user, err)
}

// Register creates an account and signs it in
func (s *Store) Register(ctx context.Context, name, email, password string) (Session, error) {
	attempt, err := s.begin("register")
	if err != nil {
		return Session{}, err
	}
	user, err := s.dir.Register(ctx, name, email, password)
	return s.finish(ctx, "register", attempt, user, err)
}

func (s *Store) begin(op string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != 0 {
		return 0, &AuthError{Op: op, Err: ErrAuthInProgress}
	}
	s.attempt++
	s.pending = s.attempt
	if s.state != Authenticated {
		s.state = Authenticating
		s.user = nil
		s.token = ""
	}
	return s.attempt, nil
}

func (s *Store) finish(ctx context.Context, op string, attempt uint64, user *User, err error) (Session, error) {
	if err == nil {
		err = ctx.Err()
	}

	var token string
	if err == nil {
		token, err = s.tokens.Issue(user)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != attempt {
		// logged out while we were waiting
		return Session{}, &AuthError{Op: op, Err: ErrNotAuthenticated}
	}
	s.pending = 0
	if err != nil {
		s.abandonLocked()
		return Session{}, classify(op, err)
	}

	data, err := json.Marshal(user)
	if err == nil {
		err = s.persist.SaveSession(token, data)
	}
	if err != nil {
		s.abandonLocked()
		return Session{}, &StorageError{Op: op, Err: err}
	}

	s.state = Authenticated
	s.user = user
	s.token = token
	slog.Info("Signed in", "op", op, "user_id", user.ID)
	return s.snapshot(), nil
}

// abandonLocked ends a failed attempt. A session that was already
// authenticated survives it; s.mu must be held.
func (s *Store) abandonLocked() {
	if s.state == Authenticated {
		return
	}
	s.resetLocked()
}

func classify(op string, err error) error {
	for _, target := range []error{
		ErrInvalidCredentials,
		ErrDuplicateEmail,
		ErrInvalidInput,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return &AuthError{Op: op, Err: err}
		}
	}
	return &StorageError{Op: op, Err: err}
}

// Logout ends the session and clears the persisted token and user
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempt++
	s.pending = 0
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	if err := s.resetLocked(); err != nil {
		return &StorageError{Op: "logout", Err: err}
	}
	slog.Info("Signed out", "user_id", userID)
	return nil
}

// Authorize returns the session user when token belongs to the current
// session. An unverified session is verified first.
func (s *Store) Authorize(ctx context.Context, token string) (*User, error) {
	if s.Current().State == Unverified {
		if err := s.Verify(ctx); err != nil {
			return nil, err
		}
	}

	cur := s.Current()
	if cur.State != Authenticated || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cur.Token)) != 1 {
		return nil, &AuthError{Op: "authorize", Err: ErrNotAuthenticated}
	}
	if _, err := s.tokens.Parse(token); err != nil {
		s.mu.Lock()
		if s.token == token {
			s.resetLocked()
		}
		s.mu.Unlock()
		return nil, &AuthError{Op: "authorize", Err: err}
	}
	return cur.User, nil
}

// resetLocked moves to anonymous and clears the persisted session; s.mu must be held
func (s *Store) resetLocked() error {
	s.state = Anonymous
	s.user = nil
	s.token = ""
	if err := s.persist.ClearSession(); err != nil {
		slog.Error("Failed to clear persisted session", "error", err)
		return err
	}
	return nil
}
