// Package session owns the process-wide authentication state. The store
// is the single writer: every mutation funnels through SignIn, SignOut or
// Refresh, and request handling only ever reads a derived State.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/security"
)

// Identity is the signed-in user as reported by the relay.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the persisted authentication blob.
type Session struct {
	Token *oauth2.Token `json:"token"`
	User  *Identity     `json:"user"`
}

// State is the per-request authorization snapshot. It is recomputed on
// every request and never cached by callers.
type State struct {
	IsAuthenticated bool
	User            *Identity
	AccessToken     string
}

// Store holds the current session with a lazy initialization lifecycle:
// the first Resolve after a cold start loads and decrypts the persisted
// blob before answering.
type Store struct {
	mu          sync.Mutex
	dataDir     string
	sessionPath string
	encryptor   *security.SessionEncryptor
	initialized bool
	current     *Session
}

func NewStore(dataDir string) (*Store, error) {
	encryptor, err := security.NewSessionEncryptor(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session encryption: %w", err)
	}

	return &Store{
		dataDir:     dataDir,
		sessionPath: filepath.Join(dataDir, "session.enc"),
		encryptor:   encryptor,
	}, nil
}

// ensureInit performs the one-time load. A missing or unreadable blob
// means "not signed in", not an error: the user can always sign in again.
func (s *Store) ensureInit() {
	if s.initialized {
		return
	}
	s.initialized = true

	sess, err := s.load()
	if err != nil {
		logger.Debug("no session restored", "error", err)
		return
	}
	s.current = sess
	if sess.User != nil {
		logger.Info("session restored", "user", sess.User.Email)
	}
}

// Resolve computes the authorization state for one request, initializing
// the store first if this is the first call after process start.
func (s *Store) Resolve() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	if s.current == nil || s.current.User == nil || s.current.Token == nil {
		return State{}
	}

	return State{
		IsAuthenticated: true,
		User:            s.current.User,
		AccessToken:     s.current.Token.AccessToken,
	}
}

// AccessToken returns the current bearer token or "" when absent. An
// empty token means the remote strategy is unusable.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	if s.current == nil || s.current.Token == nil {
		return ""
	}
	return s.current.Token.AccessToken
}

// Set installs a freshly acquired session and persists it. Used by the
// sign-in and refresh flows only.
func (s *Store) Set(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	s.current = sess
	if err := s.save(sess); err != nil {
		logger.Error("Failed to persist session", "error", err)
		return err
	}
	return nil
}

// Clear removes the session from memory and disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	s.current = nil
	if err := os.Remove(s.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Current returns a copy of the held session, or nil.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Expired reports whether the held token is past its expiry. A session
// with no expiry set is treated as live.
func (s *Store) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()

	if s.current == nil || s.current.Token == nil {
		return false
	}
	if s.current.Token.Expiry.IsZero() {
		return false
	}
	return time.Now().After(s.current.Token.Expiry)
}

func (s *Store) load() (*Session, error) {
	encrypted, err := os.ReadFile(s.sessionPath)
	if err != nil {
		return nil, err
	}

	decrypted, err := s.encryptor.Decrypt(string(encrypted))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(decrypted, &sess); err != nil {
		return nil, fmt.Errorf("invalid session data: %w", err)
	}
	return &sess, nil
}

func (s *Store) save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	encrypted, err := s.encryptor.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	if err := os.WriteFile(s.sessionPath, []byte(encrypted), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
