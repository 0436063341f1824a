package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/fetcher"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	var doc *document.Document
	collector := f.buildCollector(NewCookieStore(), &doc, new(error))
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected error responses to reach OnResponse")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected revisits to be allowed")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	require.Equal(t, DefaultUserAgent, f.cfg.UserAgent)
	require.Equal(t, 10*time.Second, f.cfg.Timeout)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	cookies := NewCookieStore()
	cookies.Store(mustParseURL(t, "https://example.com"), []string{"sid=abc"})
	var doc *document.Document
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, cookies, &doc, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}, URL: mustParseURL(t, "https://example.com/about")}
	hooks.onRequest(collyReq)
	require.Equal(t, "en-US,en;q=0.8", collyReq.Headers.Get("Accept-Language"))
	require.Equal(t, "sid=abc", collyReq.Headers.Get("Cookie"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<p>hello</p>"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/about")},
	})
	require.NoError(t, fetchErr)
	require.NotNil(t, doc)
	require.Equal(t, []string{"hello"}, doc.Paragraphs())

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusForbidden,
		Headers:    &http.Header{},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/secret")},
	})
	require.True(t, fetcher.IsKind(fetchErr, fetcher.KindHTTPStatus))

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestFetchParsesPage(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><p>Wir sind Acme.</p><a href="/ueber-uns">Über uns</a></body></html>`))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	doc, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, DefaultUserAgent, gotUA)
	require.Equal(t, []string{"Wir sind Acme."}, doc.Paragraphs())
	require.Equal(t, "utf-8", doc.Charset())
	require.Len(t, doc.Anchors(), 1)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte("<p>\xdcber uns</p>"))
	}))
	t.Cleanup(srv.Close)

	doc, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"Über uns"}, doc.Paragraphs())
	require.Equal(t, "iso-8859-1", doc.Charset())
}

func TestFetchStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var fe *fetcher.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fetcher.KindHTTPStatus, fe.Kind)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetchReplaysCookies(t *testing.T) {
	t.Parallel()

	var second string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "consent", Value: "yes"})
		} else {
			second = r.Header.Get("Cookie")
		}
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	ctx := NewCrawlScope(context.Background())
	_, err := f.Fetch(ctx, srv.URL+"/")
	require.NoError(t, err)
	_, err = f.Fetch(ctx, srv.URL+"/about")
	require.NoError(t, err)
	require.Equal(t, "consent=yes", second)
	require.Equal(t, 1, CookieStoreFrom(ctx).Len())
}

func TestFetchKeepsCookiesWithinOneCrawl(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "site-a-secret"})
		}
		mu.Lock()
		seen[r.URL.Path] = r.Header.Get("Cookie")
		mu.Unlock()
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	first := NewCrawlScope(context.Background())
	_, err := f.Fetch(first, srv.URL+"/login")
	require.NoError(t, err)
	_, err = f.Fetch(first, srv.URL+"/same-crawl")
	require.NoError(t, err)

	second := NewCrawlScope(context.Background())
	_, err = f.Fetch(second, srv.URL+"/other-crawl")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL+"/unscoped")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "session=site-a-secret", seen["/same-crawl"])
	require.Empty(t, seen["/other-crawl"])
	require.Empty(t, seen["/unscoped"])
}

func TestFetchRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	for _, raw := range []string{"", "ftp://acme.com", "acme.com", "http://"} {
		_, err := f.Fetch(context.Background(), raw)
		require.True(t, fetcher.IsKind(err, fetcher.KindMalformedURL), "url %q", raw)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{}).Fetch(ctx, srv.URL)
	require.True(t, fetcher.IsKind(err, fetcher.KindTimeout), "got %v", err)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
