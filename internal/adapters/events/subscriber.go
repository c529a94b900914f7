package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/logging"
	"github.com/bnema/sessionkit/internal/ports"
	"github.com/gorilla/websocket"
)

const (
	DefaultPath     = "/events"
	DefaultTokenKey = "auth_token"
)

// ErrStreamEnded is reported through OnError when the server closes the
// channel. There is no reconnect.
var ErrStreamEnded = errors.New("event stream ended")

type Config struct {
	BaseURL string
	Path    string
	// SkipAuth disables the token query parameter.
	SkipAuth bool
	TokenKey string
	Storage  ports.Storage
	OnEvent  func(domain.Event)
	OnError  func(error)

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     logging.Logger
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// Subscription owns one live push channel. Closing it is the caller's job;
// canceling the context passed to Connect closes it too.
type Subscription struct {
	url    string
	cancel context.CancelFunc
	closer func() error
	done   chan struct{}
	// handling is set while OnEvent or OnError runs on the read loop.
	handling atomic.Bool

	mu     sync.Mutex
	closed bool
	err    error
}

// URL is the address the channel was opened against, token included.
func (s *Subscription) URL() string {
	return s.url
}

// Done is closed once the read loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the read loop. It is nil while the
// channel is open and after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the channel down and waits for the read loop to exit. Called
// from inside OnEvent or OnError it returns without waiting and Done reports
// the exit instead.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wait()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.closer()
	s.cancel()
	s.wait()
	return err
}

func (s *Subscription) wait() {
	if s.handling.Load() {
		return
	}
	<-s.done
}

func (s *Subscription) handle(fn func()) {
	s.handling.Store(true)
	defer s.handling.Store(false)
	fn()
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Connect opens the channel at BaseURL+Path. http(s) base URLs use
// Server-Sent Events, ws(s) base URLs use a websocket. A failure to open is
// returned and also reported to OnError, as are later failures.
func Connect(ctx context.Context, cfg Config) (*Subscription, error) {
	if cfg.OnEvent == nil {
		return nil, domain.ErrNoEventSink
	}
	cfg = cfg.withDefaults()

	target := BuildURL(ctx, cfg)
	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		url:    target,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var (
		read func() error
		err  error
	)
	if isWebsocketURL(target) {
		read, sub.closer, err = dialWebsocket(streamCtx, cfg, target, sub.deliver(cfg))
	} else {
		read, sub.closer, err = openEventStream(streamCtx, cfg, target, sub.deliver(cfg))
	}
	if err != nil {
		cancel()
		cfg.Logger.Debugf("events: connect %s: %v", redact(target), err)
		if cfg.OnError != nil {
			cfg.OnError(err)
		}
		return nil, err
	}

	cfg.Logger.Debugf("events: connected to %s", redact(target))

	go func() {
		defer close(sub.done)
		readErr := read()
		if sub.isClosed() {
			return
		}
		if readErr == nil {
			readErr = ErrStreamEnded
		}
		sub.mu.Lock()
		sub.err = readErr
		sub.mu.Unlock()
		cfg.Logger.Debugf("events: channel closed: %v", readErr)
		if cfg.OnError != nil {
			sub.handle(func() { cfg.OnError(readErr) })
		}
	}()

	return sub, nil
}

// BuildURL resolves the channel address. With auth enabled and a token in
// storage, token=<token> is appended with '&' when the path already has a
// query and '?' otherwise.
func BuildURL(ctx context.Context, cfg Config) string {
	cfg = cfg.withDefaults()
	target := cfg.BaseURL + cfg.Path
	if cfg.SkipAuth || cfg.Storage == nil {
		return target
	}

	token, err := cfg.Storage.Get(ctx, cfg.TokenKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			cfg.Logger.Debugf("events: read token: %v", err)
		}
		return target
	}
	if token == "" {
		return target
	}

	separator := "?"
	if strings.Contains(cfg.Path, "?") {
		separator = "&"
	}
	return target + separator + "token=" + url.QueryEscape(token)
}

// deliver decodes one payload and hands it to OnEvent. Every valid JSON
// value is forwarded, null included. Payloads that do not parse are dropped.
func (s *Subscription) deliver(cfg Config) func(payload []byte) {
	return func(payload []byte) {
		var value any
		if err := json.Unmarshal(payload, &value); err != nil {
			cfg.Logger.Debugf("events: dropped malformed payload (%d bytes)", len(payload))
			return
		}
		if s.isClosed() {
			return
		}
		s.handle(func() { cfg.OnEvent(domain.Event{Payload: value}) })
	}
}

func isWebsocketURL(target string) bool {
	return strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://")
}

func redact(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	query := parsed.Query()
	if query.Has("token") {
		query.Set("token", "redacted")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}
