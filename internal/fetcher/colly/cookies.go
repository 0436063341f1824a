package collyfetcher

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// CookieStore keeps the most recent cookie per name across the fetches of one crawl.
type CookieStore struct {
	mu      sync.RWMutex
	cookies map[string]*http.Cookie
}

// NewCookieStore returns an empty store.
func NewCookieStore() *CookieStore {
	return &CookieStore{cookies: make(map[string]*http.Cookie)}
}

// Store parses Set-Cookie header values from a response to requestURL.
// Cookies without a Domain attribute are scoped to the request host.
func (s *CookieStore) Store(requestURL *url.URL, setCookies []string) {
	if len(setCookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range setCookies {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		if c.Domain == "" && requestURL != nil {
			c.Domain = requestURL.Hostname()
		}
		s.cookies[c.Name] = c
	}
}

// HeaderFor builds a Cookie header value from every stored cookie whose domain appears in rawURL.
func (s *CookieStore) HeaderFor(rawURL string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.cookies))
	for name, c := range s.cookies {
		if strings.Contains(rawURL, strings.TrimPrefix(c.Domain, ".")) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		c := s.cookies[name]
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Len reports how many cookies are stored.
func (s *CookieStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cookies)
}

type cookieStoreKey struct{}

// WithCookieStore returns a context whose fetches read and write store.
func WithCookieStore(ctx context.Context, store *CookieStore) context.Context {
	return context.WithValue(ctx, cookieStoreKey{}, store)
}

// CookieStoreFrom returns the store attached by WithCookieStore, or nil.
func CookieStoreFrom(ctx context.Context) *CookieStore {
	store, _ := ctx.Value(cookieStoreKey{}).(*CookieStore)
	return store
}

// NewCrawlScope attaches a fresh, empty store to ctx. Every fetch made under the
// returned context shares it, and nothing outside sees it.
func NewCrawlScope(ctx context.Context) context.Context {
	return WithCookieStore(ctx, NewCookieStore())
}
