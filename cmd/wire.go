package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/sessionkit/internal/adapters/gateway"
	chainstore "github.com/bnema/sessionkit/internal/adapters/storage/chain"
	filestore "github.com/bnema/sessionkit/internal/adapters/storage/file"
	passstore "github.com/bnema/sessionkit/internal/adapters/storage/pass"
	tomlstore "github.com/bnema/sessionkit/internal/adapters/storage/toml"
	"github.com/bnema/sessionkit/internal/application"
	"github.com/bnema/sessionkit/internal/logging"
	"github.com/bnema/sessionkit/internal/ports"
	"github.com/spf13/viper"
)

const (
	passPrefix    = "sessionkit"
	fileStoreDir  = "tokens"
	logoutTimeout = 5 * time.Second
)

type app struct {
	settings   settings
	config     *viper.Viper
	logger     logging.Logger
	storage    ports.Storage
	client     *gateway.Client
	session    *application.SessionStore
	httpClient *http.Client
	now        func() time.Time

	// logoutDone is signalled once the server-side logout call returns.
	logoutDone chan struct{}
}

func wireApp(ctx context.Context, v *viper.Viper, stderr io.Writer) (*app, error) {
	s, err := loadSettings(v)
	if err != nil {
		return nil, err
	}

	logger := logging.New(stderr, s.LogLevel)

	storage, err := newStorage(v, s)
	if err != nil {
		return nil, fmt.Errorf("wire %s storage: %w", s.StorageBackend, err)
	}

	a := &app{
		settings:   s,
		config:     v,
		logger:     logger,
		storage:    storage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		logoutDone: make(chan struct{}, 1),
	}

	a.client = gateway.New(gateway.Config{
		BaseURL:       s.BaseURL,
		TokenProvider: gateway.StorageTokenProvider(storage, s.TokenKey),
		HTTPClient:    a.httpClient,
		Logger:        logger,
		OnResponseError: func(status int, body string) {
			logger.Debugf("backend answered %d: %s", status, body)
		},
	})

	session, err := application.NewSessionStore(ctx, a.client, application.SessionConfig{
		LoginPath:   s.LoginPath,
		ProfilePath: s.ProfilePath,
		TokenKey:    s.TokenKey,
		Storage:     storage,
		Logger:      logger,
		OnLogout:    a.revokeSession,
	})
	if err != nil {
		return nil, fmt.Errorf("wire session store: %w", err)
	}
	a.session = session

	return a, nil
}

// revokeSession tells the backend the token is no longer in use. The token
// has already left storage, so it is sent explicitly.
func (a *app) revokeSession(token string) {
	defer func() { a.logoutDone <- struct{}{} }()
	if token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()

	revoker := gateway.New(a.client.Config())
	revoker.Configure(gateway.Config{TokenProvider: gateway.StaticTokenProvider(token)})
	if _, err := revoker.Post(ctx, "/auth/logout", nil); err != nil {
		a.logger.Debugf("server-side logout failed: %v", err)
	}
}

func newStorage(v *viper.Viper, s settings) (ports.Storage, error) {
	switch s.StorageBackend {
	case backendTOML:
		return tomlstore.NewStore(v, ports.SystemClock{})
	case backendFile:
		root, err := fileStoreRoot(s)
		if err != nil {
			return nil, err
		}
		return filestore.NewStore(root), nil
	case backendPass:
		return passstore.NewStore(passPrefix), nil
	case backendChain:
		root, err := fileStoreRoot(s)
		if err != nil {
			return nil, err
		}
		return chainstore.NewPassFirstWithFileFallback(passPrefix, root)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.StorageBackend)
	}
}

func fileStoreRoot(s settings) (string, error) {
	if s.StoragePath != "" {
		return s.StoragePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, fileStoreDir), nil
}

// streamingClient shares the transport but drops the request timeout, which
// would otherwise cut long-lived event streams.
func streamingClient(a *app) *http.Client {
	client := *a.httpClient
	client.Timeout = 0
	return &client
}
