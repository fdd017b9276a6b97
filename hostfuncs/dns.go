package hostfuncs

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"

	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/ports"
)

var _ ports.DNSResolver = (*NetResolver)(nil)

// DNSOption configures a NetResolver.
type DNSOption func(*dnsConfig)

type dnsConfig struct {
	nameserver string
	timeout    time.Duration
}

func defaultDNSConfig() dnsConfig {
	return dnsConfig{timeout: 5 * time.Second}
}

// WithDNSLookupTimeout sets the per-query timeout.
func WithDNSLookupTimeout(d time.Duration) DNSOption {
	return func(c *dnsConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDNSNameserver queries ns ("host" or "host:port") instead of the
// system resolver.
func WithDNSNameserver(ns string) DNSOption {
	return func(c *dnsConfig) {
		c.nameserver = ns
	}
}

// NetResolver implements ports.DNSResolver with the pure Go resolver.
type NetResolver struct {
	resolver *net.Resolver
	config   dnsConfig
}

// NewNetResolver creates a NetResolver.
func NewNetResolver(opts ...DNSOption) *NetResolver {
	cfg := defaultDNSConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &net.Resolver{PreferGo: true}
	if cfg.nameserver != "" {
		ns := cfg.nameserver
		if _, _, err := net.SplitHostPort(ns); err != nil {
			ns = net.JoinHostPort(ns, "53")
		}
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: cfg.timeout}
			return d.DialContext(ctx, network, ns)
		}
	}
	return &NetResolver{resolver: r, config: cfg}
}

// LookupHost resolves host to IP addresses.
func (r *NetResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.timeout)
	defer cancel()
	return r.resolver.LookupHost(ctx, host)
}

// LookupTXT returns the TXT records of domain.
func (r *NetResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.timeout)
	defer cancel()
	return r.resolver.LookupTXT(ctx, domain)
}

// DNSLookupRequest asks for records of Hostname. Type is A, AAAA, TXT, or
// empty for all addresses.
type DNSLookupRequest struct {
	Hostname   string `json:"hostname"`
	RecordType string `json:"type,omitempty"`
}

// DNSLookupResponse carries the records found.
type DNSLookupResponse struct {
	Records []string `json:"records"`
}

// NetDNSBundle returns the members of net.dns.
func NetDNSBundle(resolver ports.DNSResolver) HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"lookup": NewJSONHandler(func(ctx context.Context, req DNSLookupRequest) (DNSLookupResponse, error) {
			if req.Hostname == "" {
				return DNSLookupResponse{}, argErrorf("hostname is required")
			}
			kind := strings.ToUpper(req.RecordType)
			if kind == "TXT" {
				txt, err := resolver.LookupTXT(ctx, req.Hostname)
				if err != nil {
					return DNSLookupResponse{}, &domainerrors.NetworkError{Operation: "dns_txt", Target: req.Hostname, Err: err}
				}
				return DNSLookupResponse{Records: txt}, nil
			}
			if kind != "" && kind != "A" && kind != "AAAA" {
				return DNSLookupResponse{}, argErrorf("unsupported record type: %s", req.RecordType)
			}

			addrs, err := resolver.LookupHost(ctx, req.Hostname)
			if err != nil {
				return DNSLookupResponse{}, &domainerrors.NetworkError{Operation: "dns_lookup", Target: req.Hostname, Err: err}
			}
			records := []string{}
			for _, a := range addrs {
				ip, err := netip.ParseAddr(a)
				if err != nil {
					continue
				}
				ip = ip.Unmap()
				if (kind == "A" && !ip.Is4()) || (kind == "AAAA" && !ip.Is6()) {
					continue
				}
				records = append(records, ip.String())
			}
			return DNSLookupResponse{Records: records}, nil
		}),
	})
}

func netDNSModule(resolver ports.DNSResolver) ModuleDef {
	return ModuleDef{
		Name:     "net.dns",
		Doc:      "DNS lookups",
		New:      static(NetDNSBundle(resolver)),
		Requests: map[string]any{"lookup": DNSLookupRequest{}},
	}
}
