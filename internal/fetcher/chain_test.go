package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
)

type stubFetcher struct {
	doc   *document.Document
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (*document.Document, error) {
	s.calls++
	return s.doc, s.err
}

func mustDoc(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.ParseString("https://acme.com/", "<p>hi</p>")
	require.NoError(t, err)
	return doc
}

func TestChainDirectSuccessSkipsRender(t *testing.T) {
	t.Parallel()

	direct := &stubFetcher{doc: mustDoc(t)}
	render := &stubFetcher{}
	tracker := errtrack.New()

	res := NewChain(direct, render, zap.NewNop()).FetchPage(context.Background(), "https://acme.com/", tracker)
	require.NotNil(t, res.Document)
	require.Nil(t, res.Err)
	require.Zero(t, render.calls)
	require.Zero(t, tracker.Len())
}

func TestChainFallsBackToRender(t *testing.T) {
	t.Parallel()

	direct := &stubFetcher{err: StatusError("https://acme.com/", 403)}
	render := &stubFetcher{doc: mustDoc(t)}
	tracker := errtrack.New()

	res := NewChain(direct, render, zap.NewNop()).FetchPage(context.Background(), "https://acme.com/", tracker)
	require.NotNil(t, res.Document)
	require.Nil(t, res.Err)

	records := tracker.Records()
	require.Len(t, records, 1)
	require.Equal(t, errtrack.SourceDirect, records[0].Source)
	require.Equal(t, KindHTTPStatus, records[0].Kind)
	require.NotNil(t, records[0].StatusCode)
	require.Equal(t, 403, *records[0].StatusCode)
}

func TestChainBothFailRecordsTwice(t *testing.T) {
	t.Parallel()

	direct := &stubFetcher{err: &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}}
	render := &stubFetcher{err: fmt.Errorf("chromedp run: %w", context.DeadlineExceeded)}
	tracker := errtrack.New()

	res := NewChain(direct, render, nil).FetchPage(context.Background(), "https://nowhere.invalid/", tracker)
	require.Nil(t, res.Document)
	require.NotNil(t, res.Err)
	require.Equal(t, errtrack.SourceRender, res.Err.Source)

	records := tracker.Records()
	require.Len(t, records, 2)
	require.Equal(t, KindUnknownHost, records[0].Kind)
	require.Equal(t, errtrack.SourceRender, records[1].Source)
	require.Equal(t, KindTimeout, records[1].Kind)
	require.Nil(t, records[1].StatusCode)
}

func TestChainWithoutRender(t *testing.T) {
	t.Parallel()

	direct := &stubFetcher{err: errors.New("connection reset")}
	tracker := errtrack.New()

	res := NewChain(direct, nil, nil).FetchPage(context.Background(), "https://acme.com/", tracker)
	require.Nil(t, res.Document)
	require.Equal(t, 1, tracker.Len())
	require.Equal(t, KindIO, tracker.Records()[0].Kind)
}

func TestKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"status", StatusError("u", 500), KindHTTPStatus},
		{"malformed", &Error{Kind: KindMalformedURL, URL: "::"}, KindMalformedURL},
		{"dns", &net.DNSError{Err: "no such host", IsNotFound: true}, KindUnknownHost},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), KindTimeout},
		{"tls", errors.New("remote error: tls: handshake failure"), KindTLSHandshake},
		{"other", errors.New("unexpected EOF"), KindIO},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestClassifyPassesThroughAndIsKind(t *testing.T) {
	t.Parallel()

	orig := StatusError("https://acme.com/", 404)
	wrapped := fmt.Errorf("colly response failed: %w", orig)
	require.Same(t, orig, Classify("https://other", wrapped))
	require.True(t, IsKind(wrapped, KindHTTPStatus))
	require.False(t, IsKind(errors.New("x"), KindHTTPStatus))
	require.Nil(t, Classify("u", nil))
	require.Contains(t, orig.Error(), "status 404")
}

type promoteAll bool

func (p promoteAll) ShouldRender(*document.Document) bool { return bool(p) }

func TestChainPromotesShellToRender(t *testing.T) {
	t.Parallel()

	shell, err := document.ParseString("https://acme.com/", `<div id="__next"></div>`)
	require.NoError(t, err)
	rendered := mustDoc(t)
	direct := &stubFetcher{doc: shell}
	render := &stubFetcher{doc: rendered}

	res := NewChain(direct, render, nil).WithPromoter(promoteAll(true)).
		FetchPage(context.Background(), "https://acme.com/", errtrack.New())
	require.Same(t, rendered, res.Document)
	require.Equal(t, 1, render.calls)
}

func TestChainPromotionFailureKeepsDirectDocument(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t)
	direct := &stubFetcher{doc: doc}
	render := &stubFetcher{err: errors.New("chrome crashed")}
	tracker := errtrack.New()

	res := NewChain(direct, render, nil).WithPromoter(promoteAll(true)).
		FetchPage(context.Background(), "https://acme.com/", tracker)
	require.Same(t, doc, res.Document)
	require.Nil(t, res.Err)
	require.Equal(t, 1, tracker.Len())
	require.Equal(t, errtrack.SourceRender, tracker.Records()[0].Source)
}

func TestChainPromoterDeclines(t *testing.T) {
	t.Parallel()

	direct := &stubFetcher{doc: mustDoc(t)}
	render := &stubFetcher{doc: mustDoc(t)}

	res := NewChain(direct, render, nil).WithPromoter(promoteAll(false)).
		FetchPage(context.Background(), "https://acme.com/", errtrack.New())
	require.NotNil(t, res.Document)
	require.Zero(t, render.calls)
}
