package devserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownSession     = errors.New("unknown session")
)

type session struct {
	username  string
	expiresAt time.Time
}

type accountKey struct{}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return key, nil
}

func (s *Server) issueToken(acc *account) (string, error) {
	now := s.cfg.Clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   acc.id,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.mu.Lock()
	s.sessions[claims.ID] = session{username: acc.username, expiresAt: claims.ExpiresAt.Time}
	s.mu.Unlock()

	return signed, nil
}

// authenticate checks the signature, the expiry and that the session was not
// revoked by a logout.
func (s *Server) authenticate(token string) (*account, string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.cfg.Clock.Now),
	)
	if err != nil {
		return nil, "", fmt.Errorf("parse token: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[claims.ID]
	if !ok {
		return nil, "", ErrUnknownSession
	}
	acc, ok := s.accounts[sess.username]
	if !ok {
		return nil, "", ErrUnknownSession
	}
	return acc, claims.ID, nil
}

func (s *Server) checkPassword(username, password string) (*account, error) {
	s.mu.RLock()
	acc, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, sessionID, err := s.authenticate(bearerToken(r))
		if err != nil {
			s.cfg.Logger.Debugf("devserver: rejected %s %s: %v", r.Method, r.URL.Path, err)
			writeText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), accountKey{}, authContext{account: acc, sessionID: sessionID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authContext struct {
	account   *account
	sessionID string
}

func authFrom(r *http.Request) authContext {
	auth, _ := r.Context().Value(accountKey{}).(authContext)
	return auth
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := s.checkPassword(req.Username, req.Password)
	if err != nil {
		writeText(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.issueToken(acc)
	if err != nil {
		s.cfg.Logger.Errorf("devserver: %v", err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	s.publish("session.started", map[string]any{"user_id": acc.id})
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  acc.profile(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth := authFrom(r)

	s.mu.Lock()
	delete(s.sessions, auth.sessionID)
	s.mu.Unlock()

	s.publish("session.ended", map[string]any{"user_id": auth.account.id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authFrom(r).account.profile())
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeText answers with a bare text body so clients see the message
// verbatim.
func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
