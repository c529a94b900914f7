// Package devserver is a small in-memory JSON backend speaking the protocol
// sessionkit clients expect. `sk dev-server` runs it and the tests use it as
// a real peer.
package devserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/sessionkit/internal/logging"
	"github.com/bnema/sessionkit/internal/ports"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAddr     = "127.0.0.1:8787"
	DefaultTokenTTL = 12 * time.Hour
	PathPrefix      = "/api"

	tokenIssuer       = "sessionkit-devserver"
	heartbeatInterval = 15 * time.Second
	subscriberBuffer  = 16
)

// Credentials seeds one login.
type Credentials struct {
	Username string
	Password string
	Email    string
	Name     string
}

// DefaultCredentials is the account seeded when Config.Users is empty.
var DefaultCredentials = Credentials{Username: "demo", Password: "demo", Email: "demo@sessionkit.dev", Name: "Demo User"}

type Config struct {
	Users      []Credentials
	TokenTTL   time.Duration
	SigningKey []byte
	Logger     logging.Logger
	Clock      ports.Clock
}

type account struct {
	id       string
	username string
	email    string
	name     string
	hash     []byte
}

func (a *account) profile() map[string]any {
	return map[string]any{
		"id":       a.id,
		"username": a.username,
		"email":    a.email,
		"name":     a.name,
	}
}

type Server struct {
	cfg    Config
	router *mux.Router

	mu       sync.RWMutex
	accounts map[string]*account
	sessions map[string]session
	items    map[string]Item
	order    []string

	subMu       sync.Mutex
	subscribers map[int]chan []byte
	nextSubID   int

	upgrader websocket.Upgrader
}

// New hashes the seeded passwords and builds the router.
func New(cfg Config) (*Server, error) {
	if len(cfg.Users) == 0 {
		cfg.Users = []Credentials{DefaultCredentials}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if len(cfg.SigningKey) == 0 {
		key, err := randomKey()
		if err != nil {
			return nil, err
		}
		cfg.SigningKey = key
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	cfg.Logger = logging.OrNop(cfg.Logger)

	s := &Server{
		cfg:         cfg,
		accounts:    map[string]*account{},
		sessions:    map[string]session{},
		items:       map[string]Item{},
		subscribers: map[int]chan []byte{},
	}

	for i, creds := range cfg.Users {
		if creds.Username == "" {
			return nil, fmt.Errorf("seed user %d: username is empty", i)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", creds.Username, err)
		}
		s.accounts[creds.Username] = &account{
			id:       fmt.Sprintf("%d", i+1),
			username: creds.Username,
			email:    creds.Email,
			name:     creds.Name,
			hash:     hash,
		}
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix(PathPrefix).Subrouter()
	api.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEventStream).Methods(http.MethodGet)
	api.HandleFunc("/events/ws", s.handleEventSocket).Methods(http.MethodGet)

	private := api.NewRoute().Subrouter()
	private.Use(s.requireAuth)
	private.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	private.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	private.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	private.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	private.HandleFunc("/items/{id}", s.handleGetItem).Methods(http.MethodGet)
	private.HandleFunc("/items/{id}", s.handleReplaceItem).Methods(http.MethodPut)
	private.HandleFunc("/items/{id}", s.handlePatchItem).Methods(http.MethodPatch)
	private.HandleFunc("/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)

	return r
}

// ListenAndServe serves on addr until ctx is canceled. ready, when not nil,
// receives the bound address once the listener is up.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if ready != nil {
		ready(listener.Addr())
	}
	s.cfg.Logger.Infof("devserver: listening on http://%s%s", listener.Addr(), PathPrefix)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown devserver: %w", err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.cfg.Clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.cfg.Logger.Debugf("devserver: %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, s.cfg.Clock.Now().Sub(start))
	})
}
