// Package fetcher holds the fetch error taxonomy and the direct-then-render fallback chain.
package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Failure kinds recorded for a URL.
const (
	KindHTTPStatus   = "HTTPStatusError"
	KindTLSHandshake = "TLSHandshakeError"
	KindUnknownHost  = "UnknownHostError"
	KindTimeout      = "TimeoutError"
	KindMalformedURL = "MalformedURLError"
	KindIO           = "IOError"
)

// Error is a classified fetch failure.
type Error struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d", e.Kind, e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError builds an HTTPStatusError for a non-2xx response.
func StatusError(rawURL string, status int) *Error {
	return &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: status}
}

// Classify wraps err in an *Error with the best-matching kind. An *Error passes through unchanged.
func Classify(rawURL string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: Kind(err), URL: rawURL, Err: err}
}

// Kind names the failure class of err.
func Kind(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindUnknownHost
	}
	if isTLSError(err) {
		return KindTLSHandshake
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindIO
}

func isTLSError(err error) bool {
	var (
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &recordErr), errors.As(err, &verifyErr), errors.As(err, &authErr),
		errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
