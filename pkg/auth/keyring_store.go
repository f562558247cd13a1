package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "competesync"
	keyringUser    = "clearance"
)

// KeyringStore keeps the cookie array in a single system keychain entry
type KeyringStore struct {
	domain    string
	clearance string
}

// NewKeyringStore checks that a keychain is reachable and returns a store using it
func NewKeyringStore(domain, clearance string) (*KeyringStore, error) {
	if clearance == "" {
		clearance = DefaultClearanceCookie
	}

	probe := "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)

	return &KeyringStore{domain: domain, clearance: clearance}, nil
}

// Load reads the keychain entry; absence or corruption yields an empty set
func (k *KeyringStore) Load() CredentialSet {
	data, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			storeLogger().WithError(err).Warn("keyring read failed")
		}
		return CredentialSet{}
	}

	set, err := decodeCookies([]byte(data), k.clearance)
	if err != nil {
		storeLogger().WithError(err).Debug("ignoring keyring credentials")
		return CredentialSet{}
	}
	return set
}

// Save replaces the keychain entry
func (k *KeyringStore) Save(set CredentialSet) error {
	data, err := marshalCookies(set, k.domain)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringUser, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Invalidate deletes the keychain entry
func (k *KeyringStore) Invalidate() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
