package ports

import "context"

// DNSResolver backs the net.dns capability.
type DNSResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupTXT(ctx context.Context, domain string) ([]string, error)
}
