package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/campuspay/student-portal/internal/model"
)

const serviceName = "studentportal"

// Persisted keys. Absence of any of them reads as "logged out".
const (
	KeyAccessToken  = "student-token"
	KeyRefreshToken = "student-refresh-token"
	KeyProfile      = "student-user"
)

// Store is the credential store: pure key-value persistence for tokens and
// the cached profile, with no logic of its own. The session manager is the
// only writer; every component reads the access token through it.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/studentportal/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("studentportal-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewWithKeyring returns a Store over an explicit keyring backend.
// Tests pass keyring.NewArrayKeyring(nil).
func NewWithKeyring(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a raw credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a raw credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key. A missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Tokens reads the persisted token pair. ok is false when either token is
// absent, which callers must treat as logged out.
func (s *Store) Tokens() (access, refresh string, ok bool) {
	access, err := s.Get(KeyAccessToken)
	if err != nil || access == "" {
		return "", "", false
	}
	refresh, err = s.Get(KeyRefreshToken)
	if err != nil || refresh == "" {
		return "", "", false
	}
	return access, refresh, true
}

// Profile reads the persisted user profile, if any.
func (s *Store) Profile() (*model.Student, error) {
	raw, err := s.Get(KeyProfile)
	if err != nil {
		return nil, err
	}

	var student model.Student
	if err := json.Unmarshal([]byte(raw), &student); err != nil {
		return nil, fmt.Errorf("decoding stored profile: %w", err)
	}
	return &student, nil
}

// SaveSession persists the token pair and profile in one pass.
func (s *Store) SaveSession(student *model.Student, access, refresh string) error {
	raw, err := json.Marshal(student)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := s.Set(KeyAccessToken, access); err != nil {
		return err
	}
	if err := s.Set(KeyRefreshToken, refresh); err != nil {
		return err
	}
	return s.Set(KeyProfile, string(raw))
}

// Clear removes every persisted credential. It keeps going on partial
// failure so a single broken backend entry cannot block a logout.
func (s *Store) Clear() error {
	var firstErr error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyProfile} {
		if err := s.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
