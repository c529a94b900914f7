package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/logging"
	"github.com/bnema/sessionkit/internal/ports"
)

const (
	DefaultLoginPath   = "/auth/login"
	DefaultProfilePath = "/auth/me"
	DefaultTokenKey    = "auth_token"

	loginFailedMessage = "Login failed"
)

// LoginResult is what a login response yields once parsed.
type LoginResult struct {
	Token string
	User  domain.User
}

type (
	LoginBodyFunc     func(username, password string) any
	LoginResponseFunc func(response any) (LoginResult, error)
	LogoutFunc        func(token string)
)

type SessionConfig struct {
	LoginPath          string
	ProfilePath        string
	TokenKey           string
	BuildLoginBody     LoginBodyFunc
	ParseLoginResponse LoginResponseFunc
	OnLogout           LogoutFunc
	Storage            ports.Storage
	Logger             logging.Logger
	Clock              ports.Clock
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.ProfilePath == "" {
		c.ProfilePath = DefaultProfilePath
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.BuildLoginBody == nil {
		c.BuildLoginBody = DefaultLoginBody
	}
	if c.ParseLoginResponse == nil {
		c.ParseLoginResponse = DefaultLoginResponse
	}
	if c.Clock == nil {
		c.Clock = ports.SystemClock{}
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// DefaultLoginBody sends {"username": ..., "password": ...}.
func DefaultLoginBody(username, password string) any {
	return map[string]string{
		"username": username,
		"password": password,
	}
}

// DefaultLoginResponse reads the top-level "token" and "user" fields.
func DefaultLoginResponse(response any) (LoginResult, error) {
	fields, ok := response.(map[string]any)
	if !ok {
		return LoginResult{}, domain.ErrMissingToken
	}
	token, _ := fields["token"].(string)
	if token == "" {
		return LoginResult{}, domain.ErrMissingToken
	}
	return LoginResult{Token: token, User: domain.UserFrom(fields["user"])}, nil
}

// SessionStore owns the authentication state and the auth-related backend
// calls. Overlapping logins are not coordinated: the last one to resolve wins.
type SessionStore struct {
	requester ports.Requester
	cfg       SessionConfig

	mu        sync.Mutex
	state     domain.SessionState
	listeners map[int]func(domain.SessionState)
	nextID    int
}

// NewSessionStore seeds the token from storage. A missing key is an
// unauthenticated start; any other storage error fails construction.
func NewSessionStore(ctx context.Context, requester ports.Requester, cfg SessionConfig) (*SessionStore, error) {
	if cfg.Storage == nil {
		return nil, domain.ErrNoStorage
	}
	cfg = cfg.withDefaults()

	token, err := cfg.Storage.Get(ctx, cfg.TokenKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			return nil, fmt.Errorf("read session token: %w", err)
		}
		token = ""
	}

	return &SessionStore{
		requester: requester,
		cfg:       cfg,
		state: domain.SessionState{
			Token:           token,
			IsAuthenticated: token != "",
		},
		listeners: map[int]func(domain.SessionState){},
	}, nil
}

func (s *SessionStore) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change and returns a func that
// removes it.
func (s *SessionStore) Subscribe(fn func(domain.SessionState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Login posts the credentials, persists the returned token and marks the
// session authenticated. On failure the message is recorded in state, the
// prior token and user are kept, and the error is returned.
func (s *SessionStore) Login(ctx context.Context, username, password string) error {
	s.update(func(state *domain.SessionState) {
		state.IsLoading = true
		state.Error = ""
	})

	result, err := s.login(ctx, username, password)
	if err != nil {
		message := err.Error()
		if message == "" {
			message = loginFailedMessage
		}
		s.cfg.Logger.Debugf("session: login failed: %s", message)
		s.update(func(state *domain.SessionState) {
			state.Error = message
			state.IsAuthenticated = false
			state.IsLoading = false
		})
		return err
	}

	s.update(func(state *domain.SessionState) {
		*state = domain.SessionState{
			Token:           result.Token,
			User:            result.User,
			IsAuthenticated: true,
		}
	})
	return nil
}

func (s *SessionStore) login(ctx context.Context, username, password string) (LoginResult, error) {
	response, err := s.requester.Post(ctx, s.cfg.LoginPath, s.cfg.BuildLoginBody(username, password))
	if err != nil {
		return LoginResult{}, err
	}

	result, err := s.cfg.ParseLoginResponse(response)
	if err != nil {
		return LoginResult{}, err
	}
	if result.Token == "" {
		return LoginResult{}, domain.ErrMissingToken
	}

	if err := s.cfg.Storage.Set(ctx, s.cfg.TokenKey, result.Token); err != nil {
		return LoginResult{}, fmt.Errorf("persist session token: %w", err)
	}
	return result, nil
}

// Logout hands the persisted token to OnLogout without waiting for it,
// removes the token and resets the session. The state is reset even when
// removal fails; the removal error is still returned. IsLoading is left as is.
func (s *SessionStore) Logout(ctx context.Context) error {
	token, err := s.cfg.Storage.Get(ctx, s.cfg.TokenKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.cfg.Logger.Warnf("session: read token before logout: %v", err)
		}
		token = ""
	}

	if s.cfg.OnLogout != nil {
		go s.cfg.OnLogout(token)
	}

	removeErr := s.cfg.Storage.Remove(ctx, s.cfg.TokenKey)

	s.update(func(state *domain.SessionState) {
		state.Token = ""
		state.User = nil
		state.IsAuthenticated = false
		state.Error = ""
	})

	if removeErr != nil {
		return fmt.Errorf("remove session token: %w", removeErr)
	}
	return nil
}

// LoadUser fetches the profile. Any failure is treated as an invalid session:
// the token is removed and the state de-authenticated. The error is not
// surfaced and the error field is not set.
func (s *SessionStore) LoadUser(ctx context.Context) {
	response, err := s.requester.Get(ctx, s.cfg.ProfilePath)
	if err != nil {
		s.cfg.Logger.Debugf("session: load user failed: %v", err)
		if removeErr := s.cfg.Storage.Remove(ctx, s.cfg.TokenKey); removeErr != nil {
			s.cfg.Logger.Warnf("session: remove token after failed profile load: %v", removeErr)
		}
		s.update(func(state *domain.SessionState) {
			state.Token = ""
			state.User = nil
			state.IsAuthenticated = false
		})
		return
	}

	s.update(func(state *domain.SessionState) {
		state.User = domain.UserFrom(response)
		state.IsAuthenticated = true
	})
}

func (s *SessionStore) ClearError() {
	s.mu.Lock()
	if s.state.Error == "" {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.update(func(state *domain.SessionState) {
		state.Error = ""
	})
}

func (s *SessionStore) update(mutate func(*domain.SessionState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	listeners := make([]func(domain.SessionState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
