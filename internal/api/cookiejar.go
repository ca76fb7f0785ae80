package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CookieJar is the cookie session against the single backend host. It keeps
// cookies in insertion order keyed by name and path, including session
// cookies, and drops them once expired. A jar created with a store writes
// itself there on Save and is restored by load.
type CookieJar struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	store   SessionStore
	cookies []*storedCookie
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func newCookieJar(clock clockwork.Clock) *CookieJar {
	return &CookieJar{clock: clock}
}

func newPersistentCookieJar(ctx context.Context, clock clockwork.Clock, store SessionStore) (*CookieJar, error) {
	jar := &CookieJar{clock: clock, store: store}
	if err := jar.load(ctx); err != nil {
		return nil, err
	}
	return jar, nil
}

// SetCookies implements http.CookieJar.
func (j *CookieJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		j.setLocked(c)
	}
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked()

	path := u.Path
	if path == "" {
		path = "/"
	}

	var out []*http.Cookie
	for _, c := range j.cookies {
		if !pathMatch(path, c.Path) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Set adds or replaces a single cookie.
func (j *CookieJar) Set(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.setLocked(c)
}

// Get returns the value of the named cookie.
func (j *CookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked()
	for _, c := range j.cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Len reports the number of live cookies.
func (j *CookieJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked()
	return len(j.cookies)
}

// Clear removes every cookie, persistent and session scoped alike.
func (j *CookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = nil
}

// Persistent reports whether the jar is backed by a session store.
func (j *CookieJar) Persistent() bool {
	return j.store != nil
}

// Save writes the jar to its session store. It is a no-op for in-memory jars.
func (j *CookieJar) Save(ctx context.Context) error {
	if j.store == nil {
		return nil
	}

	j.mu.Lock()
	j.expireLocked()
	data, err := json.Marshal(j.cookies)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal cookie jar: %w", err)
	}

	if err := j.store.Save(ctx, CookieJarSessionKey, data); err != nil {
		return fmt.Errorf("save cookie jar: %w", err)
	}
	return nil
}

func (j *CookieJar) load(ctx context.Context) error {
	data, err := j.store.Load(ctx, CookieJarSessionKey)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cookie jar: %w", err)
	}

	var cookies []*storedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("parse cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = cookies
	j.expireLocked()
	return nil
}

func (j *CookieJar) setLocked(c *http.Cookie) {
	path := c.Path
	if path == "" {
		path = "/"
	}

	idx := -1
	for i, existing := range j.cookies {
		if existing.Name == c.Name && existing.Path == path {
			idx = i
			break
		}
	}

	var expires time.Time
	switch {
	case c.MaxAge < 0:
		if idx >= 0 {
			j.cookies = append(j.cookies[:idx], j.cookies[idx+1:]...)
		}
		return
	case c.MaxAge > 0:
		expires = j.clock.Now().Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		expires = c.Expires
	}

	sc := &storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     path,
		Domain:   c.Domain,
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}

	if idx >= 0 {
		j.cookies[idx] = sc
		return
	}
	j.cookies = append(j.cookies, sc)
}

func (j *CookieJar) expireLocked() {
	now := j.clock.Now()
	live := j.cookies[:0]
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		live = append(live, c)
	}
	j.cookies = live
}

func pathMatch(requestPath, cookiePath string) bool {
	if cookiePath == "/" || requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}
