package guestnet

import (
	"context"
	"fmt"
)

// AddressCheck is the host's verdict on an outbound address.
type AddressCheck struct {
	Reason     string `json:"reason,omitempty"`
	ResolvedIP string `json:"resolved_ip,omitempty"`
	Allowed    bool   `json:"allowed"`
}

type checkRequest struct {
	Address string `json:"address"`
}

// CheckAddress asks net.filter whether address ("host" or "host:port") is
// safe to connect to: public, not loopback, link-local or metadata.
func CheckAddress(ctx context.Context, address string, opts ...Option) (*AddressCheck, error) {
	cfg := apply(opts)
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	m, err := cfg.client.Load(ctx, "net.filter")
	if err != nil {
		return nil, fmt.Errorf("load net.filter: %w", err)
	}
	var out AddressCheck
	if err := m.Call(ctx, "check", checkRequest{Address: address}, &out); err != nil {
		return nil, fmt.Errorf("check %s: %w", address, err)
	}
	return &out, nil
}
