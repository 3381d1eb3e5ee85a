package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/sjank/fbgrab/internal/config"
)

// CookieStore handles storage of Facebook session cookies
type CookieStore struct {
	path string
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk
// TODO: Encrypt cookies at rest
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Find the earliest expiration among auth-related cookies
	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name == "c_user" || c.Name == "xs" {
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks if stored cookies are still valid
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if time.Now().After(stored.ExpiresAt) {
		return false
	}

	// c_user carries the logged-in account id, xs the session secret.
	// Both must be present for an authenticated session.
	hasCUser := false
	hasXS := false
	for _, c := range stored.Cookies {
		if c.Name == "c_user" {
			hasCUser = true
		}
		if c.Name == "xs" {
			hasXS = true
		}
	}

	return hasCUser && hasXS
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	return os.Remove(cs.path)
}

// GetFacebookCookies returns only the facebook.com related cookies for use in sessions
func (cs *CookieStore) GetFacebookCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var fbCookies []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".facebook.com" || c.Domain == "facebook.com" ||
			c.Domain == "m.facebook.com" {
			fbCookies = append(fbCookies, c)
		}
	}

	return fbCookies, nil
}

// SelfID returns the account id of the stored session, parsed from the c_user
// cookie. Returns 0 when no valid session is stored.
func (cs *CookieStore) SelfID() int64 {
	stored, err := cs.Load()
	if err != nil {
		return 0
	}
	for _, c := range stored.Cookies {
		if c.Name == "c_user" {
			var id int64
			for _, r := range c.Value {
				if r < '0' || r > '9' {
					return 0
				}
				id = id*10 + int64(r-'0')
			}
			return id
		}
	}
	return 0
}
