// Package session persists the bearer token and a minimal cached user
// record across runs, standing in for the browser's durable storage.
// Login-state changes are delivered through an explicit subscription
// instead of ambient global events, so independently mounted views stay
// in sync without a shared state container.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hearthlabs/homeboard/pkg/logger"
)

// CachedUser is the subset of the user record kept in durable storage.
type CachedUser struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Event describes a login-state change.
type Event struct {
	Authenticated bool
	Username      string
}

type state struct {
	AccessToken string     `json:"access_token,omitempty"`
	User        CachedUser `json:"user"`
}

// Store is a file-backed session store. Safe for concurrent use.
type Store struct {
	path string
	log  *logger.Logger

	mu      sync.Mutex
	state   state
	subs    map[int]func(Event)
	nextSub int
}

// Open loads the session at path, treating a missing or corrupt file as an
// empty session. The parent directory is created on first write.
func Open(path string, log *logger.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path is required")
	}
	if log == nil {
		log = logger.NewDefault("session")
	}
	s := &Store{
		path: path,
		log:  log,
		subs: make(map[int]func(Event)),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("read session file failed, starting empty")
		}
		return s, nil
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		log.WithError(err).Warn("corrupt session file, starting empty")
		s.state = state{}
	}
	return s, nil
}

// SetToken persists the bearer token. It must complete before any
// authenticated call is issued after login.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	wasAuthed := s.state.AccessToken != ""
	s.state.AccessToken = token
	err := s.persistLocked()
	username := s.state.User.Username
	s.mu.Unlock()

	if !wasAuthed && token != "" {
		s.notify(Event{Authenticated: true, Username: username})
	}
	return err
}

// Token returns the persisted bearer token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken, s.state.AccessToken != ""
}

// SetUser caches the minimal user fields alongside the token.
func (s *Store) SetUser(user CachedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = user
	return s.persistLocked()
}

// User returns the cached user fields.
func (s *Store) User() (CachedUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User, s.state.User.Username != ""
}

// Authenticated reports whether a token is persisted. Expiry is not
// tracked client-side; it is discovered via a failed authenticated call.
func (s *Store) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// Clear removes the token and cached user fields.
func (s *Store) Clear() error {
	s.mu.Lock()
	wasAuthed := s.state.AccessToken != ""
	s.state = state{}
	err := s.persistLocked()
	s.mu.Unlock()

	if wasAuthed {
		s.notify(Event{Authenticated: false})
	}
	return err
}

// Subscribe registers a login-state listener and returns an unsubscribe
// function. Listeners are invoked synchronously.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// persistLocked writes the session atomically. Persistence is best effort:
// a write failure leaves the in-memory session intact.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
