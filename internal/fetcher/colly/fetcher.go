// Package collyfetcher implements the direct page fetch using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/fetcher"
)

// DefaultUserAgent is a desktop Chrome identity; many company sites reject unknown bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

var requestHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Encoding": "gzip, deflate, sdch",
	"Accept-Language": "en-US,en;q=0.8",
	"Connection":      "keep-alive",
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Cookies live in the CookieStore carried by the fetch context.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.DisableCookies()

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch GETs rawURL and parses the body. Failures are *fetcher.Error values.
// Without a store from WithCookieStore the fetch keeps its cookies to itself.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*document.Document, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	var (
		doc      *document.Document
		fetchErr error
	)
	cookies := CookieStoreFrom(ctx)
	if cookies == nil {
		cookies = NewCookieStore()
	}
	collector := f.buildCollector(cookies, &doc, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return nil, fetcher.Classify(rawURL, err)
	}
	if doc == nil {
		return nil, &fetcher.Error{Kind: fetcher.KindIO, URL: rawURL, Err: errors.New("no response body")}
	}
	return doc, nil
}

func (f *Fetcher) buildCollector(cookies *CookieStore, doc **document.Document, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	f.configureCollectorHooks(collector, cookies, doc, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	cookies *CookieStore,
	doc **document.Document,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		for k, v := range requestHeaders {
			r.Headers.Set(k, v)
		}
		if cookie := cookies.HeaderFor(r.URL.String()); cookie != "" {
			r.Headers.Set("Cookie", cookie)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		finalURL := r.Request.URL.String()
		contentType := ""
		if r.Headers != nil {
			cookies.Store(r.Request.URL, r.Headers.Values("Set-Cookie"))
			contentType = r.Headers.Get("Content-Type")
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			*fetchErr = fetcher.StatusError(finalURL, r.StatusCode)
			return
		}
		parsed, err := parseBody(finalURL, r.Body, contentType)
		if err != nil {
			*fetchErr = &fetcher.Error{Kind: fetcher.KindIO, URL: finalURL, Err: err}
			return
		}
		*doc = parsed
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 300 {
			*fetchErr = fetcher.StatusError(r.Request.URL.String(), r.StatusCode)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// parseBody builds the document. Colly already transcodes bodies whose Content-Type names a
// charset, so only undeclared encodings are sniffed here.
func parseBody(rawURL string, body []byte, contentType string) (*document.Document, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		return document.Restore(rawURL, string(body), strings.ToLower(params["charset"]))
	}
	return document.Parse(rawURL, body, contentType)
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &fetcher.Error{Kind: fetcher.KindMalformedURL, URL: rawURL, Err: err}
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
