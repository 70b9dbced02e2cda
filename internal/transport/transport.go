// Package transport builds the HTTP round-trippers used to reach the commerce API.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

// Profile selects how backend TLS connections are established.
type Profile string

const (
	// ProfileDefault uses Go's standard TLS stack.
	ProfileDefault Profile = "default"

	// ProfileChrome presents a Chrome ClientHello. Some CDNs in front of the
	// commerce API rate-limit Go's JA3 fingerprint.
	ProfileChrome Profile = "chrome"
)

// ParseProfile maps a configuration value onto a Profile.
// Blank means ProfileDefault.
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProfileDefault:
		return ProfileDefault, nil
	case ProfileChrome:
		return ProfileChrome, nil
	default:
		return "", fmt.Errorf("unknown TLS profile %q (want default or chrome)", s)
	}
}

// New returns the round-tripper for the given profile, instrumented with
// OpenTelemetry so backend calls join the inbound request's trace.
func New(profile Profile, dialTimeout time.Duration) http.RoundTripper {
	var base http.RoundTripper
	switch profile {
	case ProfileChrome:
		base = NewChromeTransport(dialTimeout)
	default:
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
		t.MaxIdleConnsPerHost = 16
		base = t
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "market-api " + r.Method
		}),
	)
}

// NewChromeTransport dials with uTLS using HelloChrome_Auto and lets ALPN
// pick h2 or http/1.1.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}
	h1 := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{h2: h2, h1: h1}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends plain-http requests over HTTP/1.1 directly. HTTPS requests
// try HTTP/2 first and fall back to HTTP/1.1 when the server refuses h2.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Body already consumed by the h2 attempt.
		return nil, err
	}
	if req.GetBody != nil {
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
