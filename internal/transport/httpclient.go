package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// HTTPClientOptions tunes the shared http.Client handed to the AWS SDK
// clients. Mirrors attacker.Attack's transport construction: idle-conn
// pool sized off concurrency, keep-alive toggle, optional H2C for
// talking to a local/dev mock of the runtime over plaintext HTTP/2.
type HTTPClientOptions struct {
	MaxConcurrentSessions int
	Insecure              bool
	KeepAlive             bool
	Timeout               time.Duration
	H2C                   bool // plaintext HTTP/2, for local mock runtimes only
}

// NewHTTPClient builds the *http.Client corral's AWS SDK clients share.
func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	maxConns := opts.MaxConcurrentSessions * 2
	if maxConns < 100 {
		maxConns = 100
	}

	var roundTripper http.RoundTripper
	if opts.H2C {
		roundTripper = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext(ctx, network, addr)
			},
		}
	} else {
		transport := &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.Insecure},
			MaxIdleConns:        maxConns,
			MaxIdleConnsPerHost: maxConns,
			MaxConnsPerHost:     maxConns,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   !opts.KeepAlive,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
		_ = http2.ConfigureTransport(transport) // best effort; falls back to HTTP/1.1
		roundTripper = transport
	}

	client := &http.Client{Transport: roundTripper, Timeout: opts.Timeout}
	if client.Timeout == 0 {
		client.Timeout = 30 * time.Second
	}
	return client
}
