package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SessionData is the persisted part of a session.
type SessionData struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// SessionStore persists session data between process runs.
type SessionStore interface {
	Load() (*SessionData, error)
	Save(*SessionData) error
	Clear() error
}

// Session holds the current user and token. It is passed explicitly to the
// Client; nothing about it is global.
type Session struct {
	mu    sync.RWMutex
	store SessionStore
	data  SessionData
}

// NewSession creates an empty session backed by store. store may be nil for
// an in-memory session.
func NewSession(store SessionStore) *Session {
	return &Session{store: store}
}

// Token returns the bearer token or "".
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

// User returns the signed-in user or nil.
func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set stores a fresh token and user, persisting them.
func (s *Session) Set(token string, user *User) error {
	s.mu.Lock()
	s.data = SessionData{Token: token, User: user}
	data := s.data
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Save(&data)
}

func (s *Session) setUser(user *User) error {
	s.mu.Lock()
	s.data.User = user
	data := s.data
	s.mu.Unlock()
	if s.store == nil || data.Token == "" {
		return nil
	}
	return s.store.Save(&data)
}

// Clear drops the session from memory and storage.
func (s *Session) Clear() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.data = SessionData{}
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

// Restore rehydrates a stored session and verifies the token against the
// server. A rejected token clears the session; other failures leave it intact
// and are returned.
func (s *Session) Restore(ctx context.Context, c *Client) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if data == nil || data.Token == "" {
		return nil
	}
	s.mu.Lock()
	s.data = *data
	s.mu.Unlock()

	if _, err := c.Me(ctx); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return s.Clear()
		}
		return err
	}
	return nil
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	Path string
}

// DefaultSessionPath returns the per-user session file location.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "taskctl", "session.json")
}

// Load reads the session file. A missing file yields nil data.
func (f FileStore) Load() (*SessionData, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &data, nil
}

// Save writes the session file with mode 0600.
func (f FileStore) Save(data *SessionData) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, raw, 0o600)
}

// Clear removes the session file.
func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
