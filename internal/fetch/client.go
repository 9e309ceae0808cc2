package fetch

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Upstream connection pooling
const (
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 8
	tcpKeepAlive        = 15 * time.Second
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
)

// NewHTTPClient returns the client used for upstream fetches. Timeouts are
// applied per attempt through the request context, not on the client.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: tcpKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}

	// Health-check idle HTTP/2 connections so a dead origin connection is
	// dropped before a request is queued on it.
	if h2, err := http2.ConfigureTransports(transport); err == nil {
		h2.ReadIdleTimeout = 30 * time.Second
		h2.PingTimeout = 10 * time.Second
	}

	return &http.Client{Transport: transport}
}
