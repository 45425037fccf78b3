package spf

import (
	"context"
	"errors"
	"strings"

	"github.com/miekg/dns"
)

// 5.5.  "ptr" (do not use) (RFC 7208)
//
//   This mechanism tests whether the DNS reverse-mapping for <ip> exists
//   and correctly points to a domain name within a particular domain.
//   This mechanism SHOULD NOT be published.
//
//   ptr              = "ptr"    [ ":" domain-spec ]
//
//   The <ip>'s name is looked up using this procedure:
//
//   o  Perform a DNS reverse-mapping for <ip>: Look up the corresponding
//      PTR record in "in-addr.arpa." if the address is an IPv4 address
//      and in "ip6.arpa." if it is an IPv6 address.
//
//   o  For each record returned, validate the domain name by looking up
//      its IP addresses.  To prevent DoS attacks, the PTR processing
//      limits defined in Section 4.6.4 MUST be applied.  If they are
//      exceeded, processing is terminated and the mechanism does not
//      match.
//
//   o  If <ip> is among the returned IP addresses, then that domain name
//      is validated.
//
//   Check all validated domain names to see if they either match the
//   <target-name> domain or are a subdomain of the <target-name> domain.
//   If any do, this mechanism matches.

// validatedPTRNames computes, once per Context and shared by the ptr
// mechanism and the %{p} macro, the set of PTR names for ec.ip whose
// forward A/AAAA lookup contains ec.ip back (RFC 7208's "validated
// domain name"). At most PTRAddressLimit PTR answers are inspected,
// even if a later one would also have validated.
func (c *Checker) validatedPTRNames(ctx context.Context, ec *Context) ([]string, error) {
	if ec.ptrComputed {
		return ec.ptrNames, nil
	}
	ec.ptrComputed = true

	v6 := ec.ip.To4() == nil

	rev, err := dns.ReverseAddr(ec.ip.String())
	if err != nil {
		return nil, err
	}

	if _, verr := ec.chargeLookup(); verr != nil {
		return nil, verr
	}
	names, err := c.Resolver.LookupPTR(ctx, rev)
	if err != nil && !errors.Is(err, ErrNameNotFound) {
		return nil, err
	}

	if len(names) > c.PTRAddressLimit {
		names = names[:c.PTRAddressLimit]
	}
	if len(names) == 0 {
		if _, verr := ec.chargeVoid(); verr != nil {
			return nil, verr
		}
		return nil, nil
	}

	var validated []string
	for _, name := range names {
		addrs, resultType, err := c.lookupAddresses(ctx, ec, name, v6)
		if errors.Is(err, errLimitExceeded) {
			return nil, err
		}
		if err != nil || resultType != None {
			// A DNS error on the forward lookup skips this candidate
			// name rather than aborting the mechanism (RFC 7208 §5.5).
			continue
		}
		for _, addr := range addrs {
			if addr.Equal(ec.ip) {
				validated = append(validated, name)
				break
			}
		}
	}
	ec.ptrNames = validated
	return validated, nil
}

// Evaluate implements the "ptr" mechanism.
func (m MechanismPTR) Evaluate(ctx context.Context, ec *Context, domain string) (ResultType, error) {
	c := ec.c
	target, err := c.ExpandDomainSpec(ctx, m.DomainSpec, ec, domain, false)
	if err != nil {
		return Permerror, err
	}
	target = dns.Fqdn(target)

	validated, err := c.validatedPTRNames(ctx, ec)
	if err != nil {
		// A DNS error on the PTR lookup itself causes the mechanism to
		// simply not match, not to abort (RFC 7208 §5.5) - unless the
		// failure was actually the DNS lookup budget being exceeded.
		if errors.Is(err, errLimitExceeded) {
			return Permerror, err
		}
		return None, nil
	}

	for _, name := range validated {
		if dns.IsSubDomain(target, name) {
			return m.Qualifier, nil
		}
	}
	return None, nil
}

// expandPtrMacro implements the %{p} macro: the first validated PTR
// name equal to target, else the first that is a subdomain of it,
// else the first validated name at all, else "unknown". An ordinary
// DNS failure degrades to "unknown" per RFC 7208 §5.5, but a lookup
// or void-lookup budget exceeded by the shared PTR computation is
// returned as an error so the caller aborts the check instead.
func (c *Checker) expandPtrMacro(ctx context.Context, ec *Context, target string) (string, error) {
	validated, err := c.validatedPTRNames(ctx, ec)
	if err != nil {
		if errors.Is(err, errLimitExceeded) {
			return "", err
		}
		return "unknown", nil
	}
	if len(validated) == 0 {
		return "unknown", nil
	}
	target = dns.Fqdn(target)

	for _, name := range validated {
		if strings.EqualFold(name, target) {
			return strings.TrimSuffix(name, "."), nil
		}
	}
	for _, name := range validated {
		if dns.IsSubDomain(target, name) {
			return strings.TrimSuffix(name, "."), nil
		}
	}
	return strings.TrimSuffix(validated[0], "."), nil
}
