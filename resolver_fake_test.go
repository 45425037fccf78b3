package spf_test

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/miekg/dns"

	spf "github.com/relaysentry/spfcheck"
)

// fakeHost holds the canned DNS answers for one name in a fakeResolver
// zone.
type fakeHost struct {
	txt     []string
	a       []net.IP
	aaaa    []net.IP
	mx      []string
	ptr     []string
	timeout bool
}

// fakeResolver is an in-memory spf.Resolver backed by a fixed zone, so
// tests never touch the network. Any name absent from the zone
// answers ErrNameNotFound, matching NXDOMAIN.
type fakeResolver struct {
	hosts map[string]*fakeHost
}

var _ spf.Resolver = &fakeResolver{}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{hosts: map[string]*fakeHost{}}
}

func normalizeFakeName(name string) string {
	return strings.ToLower(dns.Fqdn(name))
}

func (r *fakeResolver) host(name string) *fakeHost {
	name = normalizeFakeName(name)
	h, ok := r.hosts[name]
	if !ok {
		h = &fakeHost{}
		r.hosts[name] = h
	}
	return h
}

func (r *fakeResolver) withTXT(name string, txt ...string) *fakeResolver {
	r.host(name).txt = append(r.host(name).txt, txt...)
	return r
}

func (r *fakeResolver) withA(name string, ips ...string) *fakeResolver {
	h := r.host(name)
	for _, ip := range ips {
		h.a = append(h.a, net.ParseIP(ip))
	}
	return r
}

func (r *fakeResolver) withAAAA(name string, ips ...string) *fakeResolver {
	h := r.host(name)
	for _, ip := range ips {
		h.aaaa = append(h.aaaa, net.ParseIP(ip))
	}
	return r
}

func (r *fakeResolver) withMX(name string, targets ...string) *fakeResolver {
	r.host(name).mx = append(r.host(name).mx, targets...)
	return r
}

func (r *fakeResolver) withPTR(name string, targets ...string) *fakeResolver {
	r.host(name).ptr = append(r.host(name).ptr, targets...)
	return r
}

func (r *fakeResolver) withTimeout(name string) *fakeResolver {
	r.host(name).timeout = true
	return r
}

var errFakeTimeout = errors.New("fake: simulated DNS timeout")

func (r *fakeResolver) lookup(name string) (*fakeHost, error) {
	h, ok := r.hosts[normalizeFakeName(name)]
	if !ok {
		return nil, spf.ErrNameNotFound
	}
	if h.timeout {
		return nil, &spf.TempError{Err: errFakeTimeout}
	}
	return h, nil
}

func (r *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	h, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(h.txt) == 0 {
		return nil, spf.ErrNameNotFound
	}
	return h.txt, nil
}

func (r *fakeResolver) LookupA(_ context.Context, name string) ([]net.IP, error) {
	h, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(h.a) == 0 {
		return nil, spf.ErrNameNotFound
	}
	return h.a, nil
}

func (r *fakeResolver) LookupAAAA(_ context.Context, name string) ([]net.IP, error) {
	h, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(h.aaaa) == 0 {
		return nil, spf.ErrNameNotFound
	}
	return h.aaaa, nil
}

func (r *fakeResolver) LookupMX(_ context.Context, name string) ([]string, error) {
	h, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(h.mx) == 0 {
		return nil, spf.ErrNameNotFound
	}
	return h.mx, nil
}

func (r *fakeResolver) LookupPTR(_ context.Context, name string) ([]string, error) {
	h, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(h.ptr) == 0 {
		return nil, spf.ErrNameNotFound
	}
	return h.ptr, nil
}
