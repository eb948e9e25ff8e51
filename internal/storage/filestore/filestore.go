// Package filestore persists session state to a single encrypted file.
// The file holds a JSON map sealed with chacha20poly1305; the 32 byte key
// comes from configuration (see cmd/genkey). A store that cannot read or
// write its file degrades to misses and ErrStorageUnavailable instead of
// failing the session layer.
package filestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/storage"
)

type entry struct {
	Value     string          `json:"value"`
	Options   storage.Options `json:"options"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now)
}

type Store struct {
	mu      sync.Mutex
	path    string
	aead    cipher.AEAD
	entries map[string]entry
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the encrypted store at path.
// hexKey is a 64 character hex string encoding the 32 byte cipher key.
func New(path string, hexKey string) (*Store, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("error while decoding storage key. Err: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("error while initializing cipher. Err: %w", err)
	}

	s := &Store{
		path:    path,
		aead:    aead,
		entries: make(map[string]entry),
		now:     time.Now,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Set(key string, value string, opts storage.Options) error {
	e := entry{Value: value, Options: opts}
	if opts.TTL > 0 {
		e.ExpiresAt = s.now().Add(opts.TTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = e
	return s.flushLocked()
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		_ = s.flushLocked()
		return "", false
	}
	return e.Value, true
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	_ = s.flushLocked()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry)
	_ = s.flushLocked()
}

// load reads and decrypts the backing file. A missing file is a fresh store.
func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	nonceSize := chacha20poly1305.NonceSizeX
	if len(raw) < nonceSize {
		return fmt.Errorf("%w: storage file truncated", apperrors.ErrStorageUnavailable)
	}

	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return fmt.Errorf("%w: storage file can't be decrypted", apperrors.ErrStorageUnavailable)
	}

	if err := json.Unmarshal(plain, &s.entries); err != nil {
		return fmt.Errorf("%w: storage file corrupted", apperrors.ErrStorageUnavailable)
	}
	return nil
}

// flushLocked encrypts and atomically rewrites the backing file
func (s *Store) flushLocked() error {
	plain, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}
