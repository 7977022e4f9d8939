package scheduler

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// DialChecker probes connectivity with a TCP dial against the API
// endpoint, the same host the sync run is about to call.
type DialChecker struct {
	addr    string
	timeout time.Duration
}

// NewDialChecker builds a checker for the API base URL.
func NewDialChecker(rawURL string, timeout time.Duration) (*DialChecker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse probe url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("probe url %q has no host", rawURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		default:
			port = "443"
		}
	}

	return &DialChecker{
		addr:    net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
	}, nil
}

// Online reports whether the endpoint accepts a TCP connection.
func (c *DialChecker) Online(ctx context.Context) bool {
	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
