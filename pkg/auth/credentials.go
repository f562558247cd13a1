package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"competesync/pkg/config"
	"competesync/pkg/logger"
)

// DefaultClearanceCookie is the token whose presence makes a credential set usable
const DefaultClearanceCookie = "cf_clearance"

// CredentialSet maps token names to values.
// Sets are replaced wholesale; methods never mutate the receiver.
type CredentialSet map[string]string

// ValidFor reports whether the clearance token is present and non-empty
func (s CredentialSet) ValidFor(clearance string) bool {
	return s[clearance] != ""
}

// Valid reports whether the default clearance token is present
func (s CredentialSet) Valid() bool {
	return s.ValidFor(DefaultClearanceCookie)
}

// Clone returns an independent copy
func (s CredentialSet) Clone() CredentialSet {
	out := make(CredentialSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the token names in sorted order
func (s CredentialSet) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// HTTPCookies converts the set to request cookies in name order
func (s CredentialSet) HTTPCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s))
	for _, name := range s.Names() {
		cookies = append(cookies, &http.Cookie{Name: name, Value: s[name]})
	}
	return cookies
}

// CredentialStore persists the credential set between runs.
// Load never fails: anything unreadable is reported as an empty set.
type CredentialStore interface {
	Load() CredentialSet
	Save(set CredentialSet) error
	Invalidate() error
}

// Cookie is the persisted shape of one token, matching what browsers export
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// ToCookies expands a set into persisted cookies scoped to domain
func ToCookies(set CredentialSet, domain string) []Cookie {
	cookies := make([]Cookie, 0, len(set))
	for _, name := range set.Names() {
		cookies = append(cookies, Cookie{
			Name:   name,
			Value:  set[name],
			Domain: domain,
			Path:   "/",
			Secure: true,
		})
	}
	return cookies
}

// FromCookies collapses persisted cookies into a set; later duplicates win
func FromCookies(cookies []Cookie) CredentialSet {
	set := make(CredentialSet, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		set[c.Name] = c.Value
	}
	return set
}

func marshalCookies(set CredentialSet, domain string) ([]byte, error) {
	data, err := json.MarshalIndent(ToCookies(set, domain), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return data, nil
}

// decodeCookies parses a JSON cookie array and enforces the clearance rule
func decodeCookies(data []byte, clearance string) (CredentialSet, error) {
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	set := FromCookies(cookies)
	if !set.ValidFor(clearance) {
		return nil, ErrMissingClearance
	}
	return set, nil
}

// NewStore builds the credential backend selected in the configuration
func NewStore(cfg *config.Config) (CredentialStore, error) {
	clearance := cfg.Credentials.ClearanceCookie
	if clearance == "" {
		clearance = DefaultClearanceCookie
	}
	domain := cookieDomain(cfg.Remote.BaseURL)

	switch strings.ToLower(cfg.Credentials.Backend) {
	case "", "file":
		return NewFileStore(cfg.Credentials.File, domain, clearance), nil
	case "encrypted":
		path := cfg.Credentials.File
		if path == "" || path == "cookies.json" {
			dir, err := getConfigDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "credentials.enc")
		}
		return NewEncryptedFileStore(path, "", domain, clearance)
	case "keyring":
		return NewKeyringStore(domain, clearance)
	case "env":
		return NewEnvironmentStore(clearance), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend: %q", cfg.Credentials.Backend)
	}
}

// cookieDomain derives the cookie scope from the service base URL
func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return u.Hostname()
}

// getConfigDir returns the per-user configuration directory, creating it if needed
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "competesync")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "competesync")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "competesync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "competesync")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// writeFileAtomic replaces path with data via a synced temp file and rename
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}

// Sanitize returns a copy of set with every value masked
func Sanitize(set CredentialSet) CredentialSet {
	out := make(CredentialSet, len(set))
	for k, v := range set {
		out[k] = Mask(v)
	}
	return out
}

// Mask hides all but the first and last 4 characters of a token
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func storeLogger() logger.Logger {
	return logger.Component("credentials")
}

var (
	ErrMissingClearance = errors.New("clearance token missing")
	ErrStoreUnavailable = errors.New("credential store is read-only")
)
