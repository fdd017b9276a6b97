// Package guestnet gives guests typed access to the net.dns and net.filter
// capabilities. Both are loaded through the gate on first use, so a guest
// whose allow-list lacks "net" gets a denial, never a socket.
package guestnet

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/capgate/guest"
)

// Option configures a lookup or address check.
type Option func(*config)

type config struct {
	client  *guest.Client
	timeout time.Duration
}

func defaultConfig() config {
	return config{
		client:  guest.Default(),
		timeout: 5 * time.Second,
	}
}

// WithClient routes requests through c instead of the host imports.
func WithClient(c *guest.Client) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.client = c
		}
	}
}

// WithTimeout bounds the request. The host never waits longer than its own
// deadline regardless.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

func apply(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type lookupRequest struct {
	Hostname   string `json:"hostname"`
	RecordType string `json:"type,omitempty"`
}

type lookupResponse struct {
	Records []string `json:"records"`
}

// LookupHost returns the addresses of hostname.
func LookupHost(ctx context.Context, hostname string, opts ...Option) ([]string, error) {
	return lookup(ctx, hostname, "", opts)
}

// LookupIPv4 returns only A records.
func LookupIPv4(ctx context.Context, hostname string, opts ...Option) ([]string, error) {
	return lookup(ctx, hostname, "A", opts)
}

// LookupIPv6 returns only AAAA records.
func LookupIPv6(ctx context.Context, hostname string, opts ...Option) ([]string, error) {
	return lookup(ctx, hostname, "AAAA", opts)
}

// LookupTXT returns the TXT records of domain.
func LookupTXT(ctx context.Context, domain string, opts ...Option) ([]string, error) {
	return lookup(ctx, domain, "TXT", opts)
}

func lookup(ctx context.Context, hostname, recordType string, opts []Option) ([]string, error) {
	cfg := apply(opts)
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	m, err := cfg.client.Load(ctx, "net.dns")
	if err != nil {
		return nil, fmt.Errorf("load net.dns: %w", err)
	}
	var resp lookupResponse
	if err := m.Call(ctx, "lookup", lookupRequest{Hostname: hostname, RecordType: recordType}, &resp); err != nil {
		return nil, fmt.Errorf("dns lookup %s: %w", hostname, err)
	}
	return resp.Records, nil
}
