package spf

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// ResolvConf holds the path to a resolv.conf(5) format file used to
// configure DefaultResolver when no nameserver is set explicitly.
var ResolvConf = "/etc/resolv.conf"

var _ Resolver = &DefaultResolver{}

// DefaultResolverOption configures a DefaultResolver at construction
// time.
type DefaultResolverOption func(*DefaultResolver)

// WithNameservers pins DefaultResolver to a fixed set of "host:port"
// nameserver addresses instead of reading ResolvConf.
func WithNameservers(servers ...string) DefaultResolverOption {
	return func(r *DefaultResolver) {
		r.servers = append([]string(nil), servers...)
	}
}

// WithDNSClient overrides the *dns.Client used for lookups, e.g. to
// force TCP or to tune timeouts.
func WithDNSClient(client *dns.Client) DefaultResolverOption {
	return func(r *DefaultResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// DefaultResolver is a Resolver backed by github.com/miekg/dns. It
// reads nameservers from ResolvConf the first time it is used unless
// WithNameservers was supplied, and normalizes internationalized
// domain names to their ASCII (punycode) form before querying, as
// check_host() never sees anything but A-label names on the wire.
type DefaultResolver struct {
	mu      sync.Mutex
	client  *dns.Client
	servers []string
}

// NewDefaultResolver constructs a DefaultResolver.
func NewDefaultResolver(opts ...DefaultResolverOption) *DefaultResolver {
	r := &DefaultResolver{client: new(dns.Client)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DefaultResolver) ensureServers() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.servers) > 0 {
		return nil
	}
	clientConfig, err := dns.ClientConfigFromFile(ResolvConf)
	if err != nil {
		return fmt.Errorf("spf: failed to load %s: %w", ResolvConf, err)
	}
	if len(clientConfig.Servers) == 0 {
		return fmt.Errorf("spf: no nameservers configured in %s", ResolvConf)
	}
	servers := make([]string, len(clientConfig.Servers))
	for i, server := range clientConfig.Servers {
		servers[i] = net.JoinHostPort(server, clientConfig.Port)
	}
	r.servers = servers
	return nil
}

// asciiName converts a possibly-internationalized name to its ASCII
// (A-label) form. Names that are already ASCII, or that fail IDNA
// conversion for reasons that don't matter for a DNS query (already
// punycode, trailing dot, etc.), are passed through unchanged.
func asciiName(name string) string {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return name
	}
	if strings.HasSuffix(name, ".") {
		return dns.Fqdn(ascii)
	}
	return ascii
}

func (r *DefaultResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	if err := r.ensureServers(); err != nil {
		return nil, &TempError{Err: err}
	}
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(asciiName(name)), qtype)
	req.SetEdns0(4096, false)

	var lastErr error
	r.mu.Lock()
	servers := append([]string(nil), r.servers...)
	client := r.client
	r.mu.Unlock()
	for _, server := range servers {
		m, _, err := client.ExchangeContext(ctx, req, server)
		if err != nil {
			lastErr = err
			continue
		}
		return m, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("spf: no nameservers available")
	}
	return nil, &TempError{Err: lastErr}
}

// classify turns a completed exchange into either a list of answer
// RRs of the requested type, or the sentinel/typed error the rest of
// the package expects.
func classify(m *dns.Msg, err error, qtype uint16) ([]dns.RR, error) {
	if err != nil {
		return nil, err
	}
	switch m.Rcode {
	case dns.RcodeNameError:
		return nil, ErrNameNotFound
	case dns.RcodeSuccess:
	default:
		return nil, &TempError{Err: fmt.Errorf("dns rcode %s", dns.RcodeToString[m.Rcode])}
	}
	var rrs []dns.RR
	for _, rr := range m.Answer {
		if rr.Header().Rrtype == qtype {
			rrs = append(rrs, rr)
		}
	}
	if len(rrs) == 0 {
		return nil, ErrNameNotFound
	}
	return rrs, nil
}

// LookupTXT implements Resolver.
func (r *DefaultResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	m, err := r.exchange(ctx, name, dns.TypeTXT)
	rrs, err := classify(m, err, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

// LookupA implements Resolver.
func (r *DefaultResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	m, err := r.exchange(ctx, name, dns.TypeA)
	rrs, err := classify(m, err, dns.TypeA)
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(rrs))
	for _, rr := range rrs {
		if a, ok := rr.(*dns.A); ok {
			out = append(out, a.A)
		}
	}
	return out, nil
}

// LookupAAAA implements Resolver.
func (r *DefaultResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	m, err := r.exchange(ctx, name, dns.TypeAAAA)
	rrs, err := classify(m, err, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(rrs))
	for _, rr := range rrs {
		if aaaa, ok := rr.(*dns.AAAA); ok {
			out = append(out, aaaa.AAAA)
		}
	}
	return out, nil
}

// LookupMX implements Resolver.
func (r *DefaultResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	m, err := r.exchange(ctx, name, dns.TypeMX)
	rrs, err := classify(m, err, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if mx, ok := rr.(*dns.MX); ok {
			out = append(out, mx.Mx)
		}
	}
	return out, nil
}

// LookupPTR implements Resolver.
func (r *DefaultResolver) LookupPTR(ctx context.Context, name string) ([]string, error) {
	m, err := r.exchange(ctx, name, dns.TypePTR)
	rrs, err := classify(m, err, dns.TypePTR)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if ptr, ok := rr.(*dns.PTR); ok {
			out = append(out, ptr.Ptr)
		}
	}
	return out, nil
}
