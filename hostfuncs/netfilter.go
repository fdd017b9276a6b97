package hostfuncs

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
)

// NetfilterResult is the verdict on an outbound address.
type NetfilterResult struct {
	Reason     string `json:"reason,omitempty"`
	ResolvedIP string `json:"resolved_ip,omitempty"`
	Allowed    bool   `json:"allowed"`
}

// NetfilterOption configures address validation.
type NetfilterOption func(*netfilterConfig)

type netfilterConfig struct {
	lookup         func(host string) ([]netip.Addr, error)
	allowlist      []string
	blocklist      []string
	allowedPorts   []int
	blockedPorts   []int
	blockPrivate   bool
	blockLocalhost bool
	blockLinkLocal bool
	blockMulticast bool
	resolveDNS     bool
}

// defaultNetfilterConfig blocks every address class usable for SSRF.
func defaultNetfilterConfig() netfilterConfig {
	return netfilterConfig{
		lookup:         lookupAddrs,
		blockPrivate:   true,
		blockLocalhost: true,
		blockLinkLocal: true,
		blockMulticast: true,
		resolveDNS:     true,
	}
}

func lookupAddrs(host string) ([]netip.Addr, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if a, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, a.Unmap())
		}
	}
	return out, nil
}

// WithAllowlist sets hosts, wildcard domains (*.example.com) or CIDRs that
// bypass every other check.
func WithAllowlist(patterns ...string) NetfilterOption {
	return func(c *netfilterConfig) { c.allowlist = patterns }
}

// WithBlocklist sets hosts, wildcard domains or CIDRs that are always refused.
func WithBlocklist(patterns ...string) NetfilterOption {
	return func(c *netfilterConfig) { c.blocklist = patterns }
}

// WithBlockPrivate toggles blocking of RFC 1918 and ULA addresses.
func WithBlockPrivate(block bool) NetfilterOption {
	return func(c *netfilterConfig) { c.blockPrivate = block }
}

// WithBlockLocalhost toggles blocking of loopback addresses.
func WithBlockLocalhost(block bool) NetfilterOption {
	return func(c *netfilterConfig) { c.blockLocalhost = block }
}

// WithBlockLinkLocal toggles blocking of link-local addresses.
func WithBlockLinkLocal(block bool) NetfilterOption {
	return func(c *netfilterConfig) { c.blockLinkLocal = block }
}

// WithResolveDNS toggles resolving hostnames before checking their address.
func WithResolveDNS(resolve bool) NetfilterOption {
	return func(c *netfilterConfig) { c.resolveDNS = resolve }
}

// WithLookup replaces the resolver used when WithResolveDNS is on.
func WithLookup(fn func(host string) ([]netip.Addr, error)) NetfilterOption {
	return func(c *netfilterConfig) {
		if fn != nil {
			c.lookup = fn
		}
	}
}

// WithAllowedPorts restricts connections to the given ports.
func WithAllowedPorts(ports ...int) NetfilterOption {
	return func(c *netfilterConfig) { c.allowedPorts = ports }
}

// WithBlockedPorts refuses the given ports.
func WithBlockedPorts(ports ...int) NetfilterOption {
	return func(c *netfilterConfig) { c.blockedPorts = ports }
}

func deny(reason string) NetfilterResult {
	return NetfilterResult{Reason: reason}
}

// ValidateAddress decides whether an outbound connection to address
// ("host", "host:port", "[v6]:port") is safe. It must run before any
// connection a capability makes on a requester's behalf.
func ValidateAddress(address string, opts ...NetfilterOption) NetfilterResult {
	cfg := defaultNetfilterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	host, port, err := splitAddress(address)
	if err != nil {
		return deny("invalid address format: " + err.Error())
	}

	if port > 0 {
		if len(cfg.allowedPorts) > 0 && !slices.Contains(cfg.allowedPorts, port) {
			return deny("port not in allowlist")
		}
		if slices.Contains(cfg.blockedPorts, port) {
			return deny("port is blocked")
		}
	}

	for _, p := range cfg.allowlist {
		if matchesHost(host, p) {
			return NetfilterResult{Allowed: true}
		}
	}
	for _, p := range cfg.blocklist {
		if matchesHost(host, p) {
			return deny("address in blocklist")
		}
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		if !cfg.resolveDNS {
			return NetfilterResult{Allowed: true}
		}
		addrs, lerr := cfg.lookup(host)
		if lerr != nil || len(addrs) == 0 {
			reason := "DNS resolution returned no addresses"
			if lerr != nil {
				reason = "DNS resolution failed: " + lerr.Error()
			}
			return deny(reason)
		}
		// Every resolved address must pass, or rebinding can pick the bad one.
		for _, a := range addrs {
			if res := checkAddr(a, cfg); !res.Allowed {
				return res
			}
		}
		ip = addrs[0]
	}

	res := checkAddr(ip.Unmap(), cfg)
	if res.Allowed {
		res.ResolvedIP = ip.Unmap().String()
	}
	return res
}

func checkAddr(ip netip.Addr, cfg netfilterConfig) NetfilterResult {
	for _, p := range cfg.blocklist {
		if prefix, err := netip.ParsePrefix(p); err == nil && prefix.Contains(ip) {
			return deny("IP in blocklist CIDR")
		}
	}
	for _, p := range cfg.allowlist {
		if prefix, err := netip.ParsePrefix(p); err == nil && prefix.Contains(ip) {
			return NetfilterResult{Allowed: true}
		}
	}
	switch {
	case cfg.blockLocalhost && ip.IsLoopback():
		return deny("localhost/loopback addresses blocked")
	case cfg.blockPrivate && ip.IsPrivate():
		return deny("private addresses blocked (RFC 1918)")
	case cfg.blockLinkLocal && (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()):
		return deny("link-local addresses blocked")
	case cfg.blockMulticast && ip.IsMulticast():
		return deny("multicast addresses blocked")
	case ip.IsUnspecified():
		return deny("unspecified address blocked")
	}
	return NetfilterResult{Allowed: true}
}

func splitAddress(address string) (string, int, error) {
	if address == "" {
		return "", 0, &net.AddrError{Err: "empty address", Addr: address}
	}
	if _, err := netip.ParseAddr(address); err == nil {
		return address, 0, nil
	}
	if !strings.Contains(address, ":") {
		return address, 0, nil
	}
	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, &net.AddrError{Err: "invalid port", Addr: address}
	}
	return host, port, nil
}

func matchesHost(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix)
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		if prefix, err := netip.ParsePrefix(pattern); err == nil {
			return prefix.Contains(ip.Unmap())
		}
	}
	return false
}

// SSRFCheckRequest asks whether Address is safe to connect to.
type SSRFCheckRequest struct {
	Address string `json:"address"`
}

// NetFilterBundle returns the members of net.filter.
func NetFilterBundle(opts ...NetfilterOption) HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"check": NewJSONHandler(func(_ context.Context, req SSRFCheckRequest) (NetfilterResult, error) {
			return ValidateAddress(req.Address, opts...), nil
		}),
	})
}

func netFilterModule(opts ...NetfilterOption) ModuleDef {
	return ModuleDef{
		Name:     "net.filter",
		Doc:      "outbound address (SSRF) checks",
		New:      static(NetFilterBundle(opts...)),
		Requests: map[string]any{"check": SSRFCheckRequest{}},
	}
}
