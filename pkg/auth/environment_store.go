package auth

import "os"

const (
	EnvClearance     = "SIMPLYCOMPETE_CF_CLEARANCE"
	EnvCookieConsent = "SIMPLYCOMPETE_COOKIE_CONSENT"

	cookieConsentName = "cookieconsent_dismissed"
)

// EnvironmentStore reads a pre-obtained clearance token from the environment.
// It cannot persist refreshed credentials.
type EnvironmentStore struct {
	clearance string
}

// NewEnvironmentStore creates a read-only environment-backed store
func NewEnvironmentStore(clearance string) *EnvironmentStore {
	if clearance == "" {
		clearance = DefaultClearanceCookie
	}
	return &EnvironmentStore{clearance: clearance}
}

// Load builds a set from the environment, empty when the clearance variable is unset
func (e *EnvironmentStore) Load() CredentialSet {
	token := os.Getenv(EnvClearance)
	if token == "" {
		return CredentialSet{}
	}

	consent := os.Getenv(EnvCookieConsent)
	if consent == "" {
		consent = "yes"
	}

	return CredentialSet{
		e.clearance:       token,
		cookieConsentName: consent,
	}
}

// Save is not supported
func (e *EnvironmentStore) Save(CredentialSet) error {
	return ErrStoreUnavailable
}

// Invalidate is a no-op; the environment cannot be cleared from here
func (e *EnvironmentStore) Invalidate() error {
	return nil
}
