package spf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

var (
	// ErrDomainTooLong means the domain exceeds 255 octets.
	ErrDomainTooLong = errors.New("spf: domain name longer than 255 octets")
	// ErrSingleLabel means the domain has fewer than two labels.
	ErrSingleLabel = errors.New("spf: domain is not a multi-label name")
	// ErrEmptyLabel means some non-trailing label has zero length.
	ErrEmptyLabel = errors.New("spf: domain contains an empty label")
	// ErrLabelTooLong means some label exceeds 63 octets.
	ErrLabelTooLong = errors.New("spf: domain label longer than 63 octets")
	// ErrIDNAConversion means the domain could not be converted to its
	// ASCII (punycode) form.
	ErrIDNAConversion = errors.New("spf: domain is not a valid internationalized name")
	// errLimitExceeded marks an error returned by chargeLookup or
	// chargeVoid, so callers that otherwise degrade a failed lookup
	// (e.g. the "%{p}" macro falling back to "unknown") can instead
	// let a budget abort propagate.
	errLimitExceeded = errors.New("spf: lookup budget exceeded")
)

var spfPrefixRe = regexp.MustCompile(`(?i)^v=spf1(?: |$)`)

// getSPFRecord fetches the single SPF TXT record for domain. It
// returns resultType == None with no error when there is no SPF
// record, when the name does not exist, or when the name is invalid;
// resultType == Permerror with no error when there are multiple; and
// resultType == Temperror with the resolver's error for any other DNS
// failure.
func (c *Checker) getSPFRecord(ctx context.Context, domain string) (string, ResultType, error) {
	txts, err := c.Resolver.LookupTXT(ctx, domain)
	if errors.Is(err, ErrNameNotFound) {
		return "", None, nil
	}
	if errors.Is(err, ErrInvalidName) {
		return "", None, nil
	}
	if err != nil {
		return "", Temperror, err
	}

	// 4.5.  Selecting Records (RFC 7208)
	//
	//  Starting with the set of records that were returned by the
	//  lookup, discard records that do not begin with a version
	//  section of exactly "v=spf1". Note that the version section is
	//  terminated by either an SP character or the end of the record.
	spfRecords := make([]string, 0, 1)
	for _, record := range txts {
		if spfPrefixRe.MatchString(record) {
			spfRecords = append(spfRecords, record)
		}
	}

	switch len(spfRecords) {
	case 0:
		return "", None, nil
	case 1:
		return spfRecords[0], None, nil
	default:
		return "", Permerror, nil
	}
}

var validDomainSuffix = regexp.MustCompile(`(?i)\.([a-z0-9][a-z0-9-]*[a-z0-9])\.?$`)
var allNumeric = regexp.MustCompile(`^[0-9]*$`)

// validateDomain applies the initial-processing checks of RFC 7208
// §4.3: overall length, label count, and label length. It also
// normalizes internationalized names to ASCII, matching
// t0gun-go-spf's ValidateDomain, since a malformed IDNA label is as
// invalid a domain as an oversized one.
func validateDomain(raw string) (string, error) {
	name := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", ErrIDNAConversion
	}
	ascii = strings.ToLower(ascii)

	if len(ascii) > 255 {
		return "", ErrDomainTooLong
	}
	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", ErrSingleLabel
	}
	for _, label := range labels {
		if len(label) == 0 {
			return "", ErrEmptyLabel
		}
		if len(label) > 63 {
			return "", ErrLabelTooLong
		}
	}
	return ascii, nil
}

// validDomainName reports whether hostname is a plausible, resolvable
// domain name: DNS allows arbitrary 8-bit label data, so a bare
// dns.IsDomainName() isn't strict enough on its own, and an
// all-numeric TLD is never valid.
func validDomainName(hostname string) bool {
	atoms, ok := dns.IsDomainName(hostname)
	if !ok || atoms < 2 {
		return false
	}
	matches := validDomainSuffix.FindStringSubmatch(hostname)
	if matches == nil {
		return false
	}
	return !allNumeric.MatchString(matches[1])
}

func validOptionalDomainSpec(domainSpec string) bool {
	return domainSpec == "" || validDomainSpec(domainSpec)
}

// validDomainSpec reports whether domainSpec is a legal domain-spec:
// a macro-string whose domain-end is either a macro token or a TLD
// label (RFC 7208 §7.1).
func validDomainSpec(domainSpec string) bool {
	if validDomainName(domainSpec) {
		return true
	}
	if !MacroIsValid(domainSpec) {
		return false
	}
	if strings.HasSuffix(domainSpec, "}") {
		return true
	}
	matches := validDomainSuffix.FindStringSubmatch(domainSpec)
	if matches == nil {
		return false
	}
	return !allNumeric.MatchString(matches[1])
}

// chargeLookup increments the shared DNS-lookup counter and reports
// whether the lookup limit (spec.md §3, "lookups_used <= lookup_limit")
// has just been exceeded.
func (ec *Context) chargeLookup() (ResultType, error) {
	ec.DNSQueries++
	if ec.DNSQueries > ec.c.LookupLimit {
		return Permerror, fmt.Errorf("%w: maximum of %d DNS lookups exceeded", errLimitExceeded, ec.c.LookupLimit)
	}
	return None, nil
}

// chargeVoid increments the shared void-lookup counter and reports
// whether the void-lookup limit has just been exceeded.
func (ec *Context) chargeVoid() (ResultType, error) {
	ec.VoidLookups++
	if ec.VoidLookups > ec.c.VoidLookupLimit {
		return Permerror, fmt.Errorf("%w: maximum of %d void DNS lookups exceeded", errLimitExceeded, ec.c.VoidLookupLimit)
	}
	return None, nil
}

// lookupAddresses resolves A or AAAA records (chosen by v6) for
// target, translating resolver errors into the (ResultType, error)
// convention every mechanism evaluator uses: None with no error for a
// clean result set (possibly empty, after charging a void lookup),
// None with an error for an invalid name (the caller decides whether
// that means "skip this candidate" or "mechanism doesn't match"), and
// Temperror for anything transient.
func (c *Checker) lookupAddresses(ctx context.Context, ec *Context, target string, v6 bool) ([]net.IP, ResultType, error) {
	var addrs []net.IP
	var err error
	if v6 {
		addrs, err = c.Resolver.LookupAAAA(ctx, target)
	} else {
		addrs, err = c.Resolver.LookupA(ctx, target)
	}
	switch {
	case errors.Is(err, ErrNameNotFound):
		if rt, verr := ec.chargeVoid(); verr != nil {
			return nil, rt, verr
		}
		return nil, None, nil
	case errors.Is(err, ErrInvalidName):
		return nil, None, err
	case isTempError(err):
		return nil, Temperror, err
	case err != nil:
		return nil, Temperror, err
	}
	return addrs, None, nil
}

// like net.ParseCIDR but a little less forgiving: requires the mask
// length to be written exactly as net.ParseCIDR would canonicalize it.
func parseCIDR(s string) (net.IP, *net.IPNet, error) {
	ip, mask, err := net.ParseCIDR(s)
	if err != nil {
		return nil, nil, err
	}
	i := strings.Index(s, "/")
	if i < 0 {
		return nil, nil, &net.ParseError{Type: "CIDR address", Text: s}
	}

	maskIn := s[i+1:]
	ones, _ := mask.Mask.Size()
	if maskIn != strconv.Itoa(ones) {
		return nil, nil, &net.ParseError{Type: "CIDR address", Text: s}
	}
	return ip, mask, err
}
