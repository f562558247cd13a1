package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileStore keeps the credential set as a JSON cookie array on disk.
// Writers are serialized in-process by mu and across processes by a lock file.
type FileStore struct {
	path      string
	domain    string
	clearance string
	lock      *flock.Flock
	mu        sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path, domain, clearance string) *FileStore {
	if clearance == "" {
		clearance = DefaultClearanceCookie
	}
	return &FileStore{
		path:      path,
		domain:    domain,
		clearance: clearance,
		lock:      flock.New(path + ".lock"),
	}
}

// Path returns the credential file location
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the credential file. Missing, corrupt or clearance-less files yield an empty set.
func (f *FileStore) Load() CredentialSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			storeLogger().WithError(err).Warn("credential file unreadable")
		}
		return CredentialSet{}
	}

	set, err := decodeCookies(data, f.clearance)
	if err != nil {
		storeLogger().WithError(err).DebugWithFields("ignoring stored credentials", map[string]interface{}{
			"path": f.path,
		})
		return CredentialSet{}
	}
	return set
}

// Save atomically replaces the credential file with set
func (f *FileStore) Save(set CredentialSet) error {
	data, err := marshalCookies(set, f.domain)
	if err != nil {
		return err
	}

	return f.withLock(func() error {
		return writeFileAtomic(f.path, data, 0600)
	})
}

// Invalidate removes the credential file so the next Load is empty
func (f *FileStore) Invalidate() error {
	return f.withLock(func() error {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		return nil
	})
}

func (f *FileStore) withLock(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock credentials: %w", err)
	}
	defer f.lock.Unlock()

	return fn()
}
