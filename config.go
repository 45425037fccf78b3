package spf

import (
	"os"
	"time"
)

// DefaultLookupLimit is the maximum number of DNS-resolving terms
// (include, a, mx, ptr, exists, redirect) allowed during a single
// check_host() evaluation tree, per RFC 7208 §4.6.4.
const DefaultLookupLimit = 10

// DefaultVoidLookupLimit is the maximum number of DNS lookups that may
// return NXDOMAIN or an empty answer set before the check aborts.
const DefaultVoidLookupLimit = 2

// DefaultMXAddressLimit is the maximum number of MX targets an "mx"
// mechanism will resolve addresses for; an MX answer with more targets
// than this is a permerror.
const DefaultMXAddressLimit = 10

// DefaultPTRAddressLimit is the maximum number of PTR answers that
// will be validated for a "ptr" mechanism or a "%{p}" macro.
const DefaultPTRAddressLimit = 10

// DefaultExplainPrefix is prepended to the macro-expanded "exp" text
// for an explicit "fail" result, with "<domain>" replaced by the
// domain whose policy record matched. It is not itself a macro-string.
const DefaultExplainPrefix = "<domain> explained: "

// Checker holds the configuration and limits used to evaluate SPF
// policy for one or more messages. A zero Checker is not usable;
// build one with NewChecker.
type Checker struct {
	// Resolver performs every DNS lookup the check makes.
	Resolver Resolver
	// LookupLimit bounds the total DNS-resolving terms per RFC 7208
	// §4.6.4.
	LookupLimit int
	// VoidLookupLimit bounds the number of DNS lookups that come back
	// empty or NXDOMAIN.
	VoidLookupLimit int
	// MXAddressLimit bounds the number of MX targets an "mx"
	// mechanism will resolve; more targets than this is a permerror.
	MXAddressLimit int
	// PTRAddressLimit bounds the number of PTR answers validated for
	// a "ptr" mechanism or "%{p}" macro.
	PTRAddressLimit int
	// HostDomain is the domain name of the host performing the
	// check, used to expand the "%{r}" macro in "exp" text.
	HostDomain string
	// ExplainPrefix is prepended to the macro-expanded "exp" text when
	// a matched mechanism produces a "fail" result. The literal
	// substring "<domain>" is replaced with the domain whose policy
	// record matched; it is otherwise not a macro-string.
	ExplainPrefix string
	// Hook, if set, is notified at every step of the evaluation.
	Hook Hook

	nowFunc func() time.Time
}

// Option configures a Checker at construction time.
type Option func(*Checker)

// WithLookupLimit overrides DefaultLookupLimit.
func WithLookupLimit(n int) Option {
	return func(c *Checker) { c.LookupLimit = n }
}

// WithVoidLookupLimit overrides DefaultVoidLookupLimit.
func WithVoidLookupLimit(n int) Option {
	return func(c *Checker) { c.VoidLookupLimit = n }
}

// WithMXAddressLimit overrides DefaultMXAddressLimit.
func WithMXAddressLimit(n int) Option {
	return func(c *Checker) { c.MXAddressLimit = n }
}

// WithPTRAddressLimit overrides DefaultPTRAddressLimit.
func WithPTRAddressLimit(n int) Option {
	return func(c *Checker) { c.PTRAddressLimit = n }
}

// WithHostDomain overrides the host name used to expand "%{r}".
func WithHostDomain(domain string) Option {
	return func(c *Checker) { c.HostDomain = domain }
}

// WithExplainPrefix overrides DefaultExplainPrefix.
func WithExplainPrefix(prefix string) Option {
	return func(c *Checker) { c.ExplainPrefix = prefix }
}

// WithResolver overrides the Resolver used for DNS lookups, e.g. with
// a caching or test double implementation.
func WithResolver(r Resolver) Option {
	return func(c *Checker) { c.Resolver = r }
}

// WithHook installs an instrumentation Hook.
func WithHook(h Hook) Option {
	return func(c *Checker) { c.Hook = h }
}

// withNowFunc overrides the clock used for the "%{t}" macro. Exported
// only to tests in this package, so the "t" macro is deterministic.
func withNowFunc(f func() time.Time) Option {
	return func(c *Checker) { c.nowFunc = f }
}

// NewChecker creates a Checker with sensible defaults: limits matching
// RFC 7208 §4.6.4, a DefaultResolver reading /etc/resolv.conf, and the
// local host name for "%{r}" expansion.
func NewChecker(opts ...Option) *Checker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	c := &Checker{
		Resolver:        NewDefaultResolver(),
		LookupLimit:     DefaultLookupLimit,
		VoidLookupLimit: DefaultVoidLookupLimit,
		MXAddressLimit:  DefaultMXAddressLimit,
		PTRAddressLimit: DefaultPTRAddressLimit,
		HostDomain:      hostname,
		ExplainPrefix:   DefaultExplainPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}
