// Package session holds the API key issued at sign-in. It starts empty, is set
// by SignIn and cleared by SignOut. When a path is configured the key is kept
// on disk so a restart does not sign the user out.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type Session struct {
	mu    sync.RWMutex
	token string
	path  string
}

type persisted struct {
	Token string `json:"token"`
}

// New returns an empty session that is not persisted.
func New() *Session {
	return &Session{}
}

// Open restores a session from path. A missing file yields an empty session.
func Open(path string) (*Session, error) {
	s := &Session{path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session file %s: %w", path, err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", path, err)
	}
	s.token = p.Token
	return s, nil
}

// IsAuthenticated reports whether a key is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the key for the transport layer only.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Session) SignIn(token string) error {
	if token == "" {
		return errors.New("empty session token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if s.path == "" {
		return nil
	}

	data, err := json.Marshal(persisted{Token: token})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file %s: %w", s.path, err)
	}
	return nil
}

// SignOut forgets the key and removes the persisted copy.
func (s *Session) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file %s: %w", s.path, err)
	}
	return nil
}
