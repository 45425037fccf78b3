package spf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/miekg/dns"
)

// Check checks SPF policy for a message against the package-level
// DefaultChecker, using both smtp.mailfrom and smtp.helo identities.
func Check(ctx context.Context, ip net.IP, mailFrom string, helo string) (ResultType, string) {
	result := DefaultChecker.SPF(ctx, ip, mailFrom, helo)
	return result.Type, result.Explanation
}

// DefaultChecker is the Checker used by the package-level Check
// function.
var DefaultChecker = NewChecker()

// normalizeSender strips surrounding whitespace and a "<>" wrapper and
// applies RFC 7208 §4.3's rule for a sender with no local-part -
// substituting "postmaster". An empty, blank, or "<>" MAIL FROM, which
// all carry the same null-sender meaning in SMTP, normalizes to "".
func normalizeSender(sender string) string {
	sender = strings.TrimSpace(sender)
	sender = strings.TrimPrefix(sender, "<")
	sender = strings.TrimSuffix(sender, ">")
	if sender == "" {
		return ""
	}
	if strings.HasPrefix(sender, "@") {
		return "postmaster" + sender
	}
	if !strings.Contains(sender, "@") {
		return "postmaster@" + sender
	}
	return sender
}

// SPF checks SPF policy for a message, trying smtp.helo first and
// falling back to smtp.mailfrom when the HELO identity doesn't
// produce a decisive result, per the usual SMTP-session check order.
func (c *Checker) SPF(ctx context.Context, ip net.IP, mailFrom string, helo string) Result {
	var result Result
	if helo != "" {
		ec := &Context{ip: ip, sender: normalizeSender(mailFrom), helo: helo, c: c}
		r := c.checkHost(ctx, ec, dns.Fqdn(helo), false, false)
		result = Result{Type: r, Error: ec.err, Explanation: ec.explanation, UsedHELO: true, ctx: ec}
		if r != None && r != Neutral {
			return result
		}
	}

	sender := normalizeSender(mailFrom)
	if sender == "" {
		return result
	}
	at := strings.LastIndex(sender, "@")
	ec := &Context{ip: ip, sender: sender, helo: helo, c: c}
	r := c.checkHost(ctx, ec, dns.Fqdn(sender[at+1:]), false, false)
	return Result{Type: r, Error: ec.err, Explanation: ec.explanation, ctx: ec}
}

// CheckHost implements the SPF check_host() function directly for a
// given domain, sender, and connecting IP.
func (c *Checker) CheckHost(ctx context.Context, ip net.IP, domain, sender string, helo string) Result {
	ec := &Context{ip: ip, sender: normalizeSender(sender), helo: helo, c: c}
	r := c.checkHost(ctx, ec, domain, false, false)
	return Result{Type: r, Error: ec.err, Explanation: ec.explanation, ctx: ec}
}

// Anything not 7 bit ascii or any control character
var invalidCharRe = regexp.MustCompile(`[^ -~]`)

func (c *Checker) checkHost(ctx context.Context, ec *Context, domain string, include bool, redirect bool) ResultType {
	r := c.checkHostCore(ctx, ec, domain, include, redirect)
	if c.Hook != nil {
		c.Hook.RecordResult(domain, ec, r)
	}
	return r
}

// checkHostCore does the actual RFC 7208 check_host work.
func (c *Checker) checkHostCore(ctx context.Context, ec *Context, domain string, include bool, redirect bool) ResultType {
	// 4.3 Initial Processing (RFC 7208)
	//  If the <domain> is malformed (e.g., label longer than 63 characters,
	//	zero-length label not at the end, etc.) or is not a multi-label
	//  domain name, or if the DNS lookup returns "Name Error" (RCODE 3, also
	//  known as "NXDOMAIN" [RFC2308]), check_host() immediately returns the
	//  result "none".

	ascii, verr := validateDomain(domain)
	if verr != nil {
		ec.err = verr
		return None
	}
	domain = dns.Fqdn(ascii)

	// 4.6.4.  DNS Lookup Limits (RFC 7208)
	//
	//  Some mechanisms and modifiers (collectively, "terms") cause DNS
	//  queries at the time of evaluation, and some do not.  The following
	//  terms cause DNS queries: the "include", "a", "mx", "ptr", and
	//  "exists" mechanisms, and the "redirect" modifier.  SPF
	//  implementations MUST limit the total number of those terms to 10
	//  during SPF evaluation, to avoid unreasonable load on the DNS.  If
	//  this limit is exceeded, the implementation MUST return "permerror".
	// The top-level record fetch is not one of those terms.
	if include || redirect {
		if rt, err := ec.chargeLookup(); err != nil {
			ec.err = err
			return rt
		}
	}
	record, resultType, err := c.getSPFRecord(ctx, domain)
	if err != nil {
		ec.err = err
		return resultType
	}
	if c.Hook != nil {
		c.Hook.Record(record, domain)
	}

	if record == "" {
		if redirect {
			return Permerror
		}
		return resultType
	}

	badChar := invalidCharRe.FindString(record)
	if badChar != "" {
		ec.err = fmt.Errorf("invalid character %q", badChar[0])
		return Permerror
	}

	mechanisms, err := ParseSPF(record)
	if err != nil {
		ec.err = err
		return Permerror
	}
	for i, mechanism := range mechanisms.Mechanisms {
		resultType, err = mechanism.Evaluate(ctx, ec, domain)
		if c.Hook != nil {
			c.Hook.Mechanism(domain, i, mechanism, resultType)
		}
		if resultType != None {
			ec.err = err
			if err == nil && !include && resultType == Fail {
				if mechanisms.Exp != "" {
					ec.explanation = c.explain(ctx, ec, mechanisms.Exp, domain)
				}
				if ec.explanation == "" {
					ec.explanation = fmt.Sprintf("Matched %s.", mechanism.String())
				}
			}
			return resultType
		}
	}

	// Fell off the end of the record
	if mechanisms.Redirect != "" {
		if c.Hook != nil {
			c.Hook.Redirect(mechanisms.Redirect)
		}
		target, err := c.ExpandDomainSpec(ctx, mechanisms.Redirect, ec, domain, false)
		if err != nil {
			ec.err = err
			return Permerror
		}
		if !validDomainName(target) {
			return Permerror
		}

		return c.checkHost(ctx, ec, dns.Fqdn(target), include, true)
	}
	return Neutral
}

// explain resolves and expands the "exp" modifier's explanation text
// for a "fail" result, prefixed per ExplainPrefix. Any failure along
// the way - an unresolvable target, a missing or ambiguous TXT
// answer, a bad macro - leaves the explanation empty (the caller
// falls back to the default "Matched <mechanism>." text) rather than
// aborting the overall check_host() result, per RFC 7208 §6.2.
func (c *Checker) explain(ctx context.Context, ec *Context, expSpec string, domain string) string {
	target, err := c.ExpandDomainSpec(ctx, expSpec, ec, domain, false)
	if err != nil || !validDomainName(target) {
		return ""
	}
	txts, err := c.Resolver.LookupTXT(ctx, target)
	if err != nil || len(txts) != 1 {
		return ""
	}
	explanation, err := c.ExpandMacro(ctx, txts[0], ec, domain, true)
	if err != nil {
		return ""
	}
	prefix := strings.ReplaceAll(c.ExplainPrefix, "<domain>", strings.TrimSuffix(domain, "."))
	return prefix + explanation
}

// SPFRecord holds an SPF record parsed from a single DNS TXT record.
type SPFRecord struct {
	Mechanisms     []Mechanism
	Exp            string
	Redirect       string
	OtherModifiers []string
}

//   modifier         = redirect / explanation / unknown-modifier
//   unknown-modifier = name "=" macro-string
//                      ; where name is not any known modifier
//
//   name             = ALPHA *( ALPHA / DIGIT / "-" / "_" / "." )
var modifierRe = regexp.MustCompile(`^((?i)[a-z][a-z0-9_.-]*)=(.*)`)

// ParseSPF parses the text of an SPF record.
func ParseSPF(s string) (*SPFRecord, error) {
	record := &SPFRecord{}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("empty record")
	}
	if strings.ToLower(fields[0]) != "v=spf1" {
		return nil, errors.New("record doesn't begin with v=spf1")
	}

	for i, field := range fields {
		if i == 0 {
			continue
		}
		matches := modifierRe.FindStringSubmatch(field)
		if matches != nil {
			switch strings.ToLower(matches[1]) {
			case "redirect":
				if record.Redirect != "" {
					return nil, errors.New("multiple redirect modifiers")
				}
				if !validDomainSpec(matches[2]) {
					return nil, errors.New("invalid domain-spec in redirect")
				}
				record.Redirect = matches[2]
			case "exp":
				if record.Exp != "" {
					return nil, errors.New("multiple exp modifiers")
				}
				if !validDomainSpec(matches[2]) {
					return nil, errors.New("invalid domain-spec in exp")
				}
				record.Exp = matches[2]
			default:
				if !MacroIsValid(matches[2]) {
					return nil, errors.New("invalid macro-string in modifier")
				}
				record.OtherModifiers = append(record.OtherModifiers, field)
			}
			continue
		}
		m, err := NewMechanism(field)
		if err != nil {
			return nil, fmt.Errorf("In field '%s': %w", field, err)
		}
		record.Mechanisms = append(record.Mechanisms, m)
	}

	return record, nil
}
