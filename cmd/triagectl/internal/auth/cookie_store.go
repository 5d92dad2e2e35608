package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const cookiesFile = "cookies.json"

// storedCookie is the on-disk form of one cookie. The access token is never
// written; only the refresh cookie set by the backend ends up here.
type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (c storedCookie) key() string {
	return c.URL + "|" + c.Domain + "|" + c.Path + "|" + c.Name
}

// FileJar is an http.CookieJar that can persist its cookies to a JSON file so
// a later triagectl run can restore the session through /auth/refresh.
type FileJar struct {
	path string

	mu      sync.Mutex
	jar     *cookiejar.Jar
	cookies map[string]storedCookie
	now     func() time.Time
}

// Ensure FileJar implements http.CookieJar at compile time.
var _ http.CookieJar = (*FileJar)(nil)

// DefaultCookiePath returns ~/.triage/cookies.json, creating the directory.
func DefaultCookiePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(home, ".triage")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create .triage directory: %w", err)
	}
	return filepath.Join(dir, cookiesFile), nil
}

// NewFileJar creates a jar backed by path and loads any cookies saved there.
// Expired cookies are dropped on load.
func NewFileJar(path string) (*FileJar, error) {
	j := &FileJar{path: path, now: time.Now}
	if err := j.reset(); err != nil {
		return nil, err
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	origin := originOf(u)
	now := j.now()
	for _, c := range cookies {
		sc := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if sc.Path == "" {
			sc.Path = defaultPath(u.Path)
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!sc.Expires.IsZero() && !sc.Expires.After(now)) {
			delete(j.cookies, sc.key())
			continue
		}
		j.cookies[sc.key()] = sc
	}
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Save writes the live cookies to disk with owner-only permissions.
func (j *FileJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return j.removeFile()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	return os.WriteFile(j.path, data, 0600)
}

// Delete forgets every cookie and removes the file.
func (j *FileJar) Delete() error {
	if err := j.reset(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.removeFile()
}

// Len returns the number of live cookies held.
func (j *FileJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

func (j *FileJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.mu.Lock()
	j.jar = jar
	j.cookies = map[string]storedCookie{}
	j.mu.Unlock()
	return nil
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read cookie file: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal cookie file: %w", err)
	}
	for _, sc := range stored {
		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}
		j.SetCookies(u, []*http.Cookie{{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}})
	}
	return nil
}

func (j *FileJar) removeFile() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cookie file: %w", err)
	}
	return nil
}

// defaultPath is the cookie default-path of a request path (RFC 6265 5.1.4).
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func originOf(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
