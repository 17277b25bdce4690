package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// pendingAuth is one in-flight browser consent flow. Tokens are filled
// in by the callback handler and handed out exactly once by poll.
type pendingAuth struct {
	ID           string
	State        string
	CodeVerifier string
	ClientIP     string
	CreatedAt    time.Time
	ExpiresAt    time.Time

	Tokens *clientTokens
}

// clientTokens is what the poll endpoint ultimately returns to the CLI.
type clientTokens struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *userIdentity `json:"user"`
}

type userIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthStore tracks pending consent flows in memory. Flows are short
// lived; a relay restart simply means the user signs in again.
type AuthStore struct {
	mu         sync.Mutex
	byID       map[string]*pendingAuth
	byState    map[string]string
	perIP      map[string]int
	maxPerIP   int
	maxTotal   int
	timeout    time.Duration
}

func NewAuthStore(cfg *Config) *AuthStore {
	store := &AuthStore{
		byID:     make(map[string]*pendingAuth),
		byState:  make(map[string]string),
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxSessionsPerIP,
		maxTotal: cfg.MaxTotalSessions,
		timeout:  cfg.SessionTimeout,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			store.cleanup()
		}
	}()

	return store
}

func (s *AuthStore) Create(clientIP string) (*pendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byID) >= s.maxTotal {
		slog.Warn("max pending auth flows reached", "current", len(s.byID), "limit", s.maxTotal)
		return nil, ErrMaxSessionsReached
	}
	if s.perIP[clientIP] >= s.maxPerIP {
		slog.Warn("max pending auth flows per IP reached", "ip", clientIP, "limit", s.maxPerIP)
		return nil, ErrMaxSessionsPerIP
	}

	flow := &pendingAuth{
		ID:           randomToken(32),
		State:        randomToken(32),
		CodeVerifier: randomCodeVerifier(),
		ClientIP:     clientIP,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(s.timeout),
	}

	s.byID[flow.ID] = flow
	s.byState[flow.State] = flow.ID
	s.perIP[clientIP]++

	slog.Info("auth flow created", "session_id", flow.ID, "client_ip", clientIP, "expires_at", flow.ExpiresAt)
	return flow, nil
}

// GetByState resolves the callback's state parameter to its flow.
func (s *AuthStore) GetByState(state string) (*pendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byState[state]
	if !ok {
		return nil, false
	}
	flow, ok := s.byID[id]
	if !ok || time.Now().After(flow.ExpiresAt) {
		return nil, false
	}
	return flow, true
}

// SetTokens attaches the exchanged tokens to a pending flow.
func (s *AuthStore) SetTokens(id string, tokens *clientTokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow, ok := s.byID[id]; ok {
		flow.Tokens = tokens
	}
}

// TakeTokens returns the flow's tokens and deletes the flow, so each
// sign-in can only be collected once. The bool distinguishes "still
// pending" (flow exists, no tokens yet) from "gone".
func (s *AuthStore) TakeTokens(id string) (*clientTokens, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.byID[id]
	if !ok || time.Now().After(flow.ExpiresAt) {
		if ok {
			s.remove(flow)
		}
		return nil, false, false
	}
	if flow.Tokens == nil {
		return nil, true, true
	}

	tokens := flow.Tokens
	s.remove(flow)
	return tokens, false, true
}

func (s *AuthStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, flow := range s.byID {
		if now.After(flow.ExpiresAt) {
			s.remove(flow)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("expired auth flows removed", "count", removed, "remaining", len(s.byID))
	}
}

// remove assumes the lock is held.
func (s *AuthStore) remove(flow *pendingAuth) {
	delete(s.byID, flow.ID)
	delete(s.byState, flow.State)
	if s.perIP[flow.ClientIP] > 1 {
		s.perIP[flow.ClientIP]--
	} else {
		delete(s.perIP, flow.ClientIP)
	}
}

func randomToken(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// randomCodeVerifier produces a PKCE verifier within the RFC 7636 length
// bounds.
func randomCodeVerifier() string {
	return randomToken(48)
}
