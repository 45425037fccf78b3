package spf

import (
	"fmt"
	"net"
)

//go:generate enumer -type ResultType -transform=snake

// Result types, from RFC 7208
// 2.6.1.  None
//
//  A result of "none" means either (a) no syntactically valid DNS domain
//  name was extracted from the SMTP session that could be used as the
//  one to be authorized, or (b) no SPF records were retrieved from
//  the DNS.
//
// 2.6.2.  Neutral
//
//  A "neutral" result means the ADMD has explicitly stated that it is
//  not asserting whether the IP address is authorized.
//
// 2.6.3.  Pass
//
//  A "pass" result is an explicit statement that the client is
//  authorized to inject mail with the given identity.
//
// 2.6.4.  Fail
//
//  A "fail" result is an explicit statement that the client is not
//  authorized to use the domain in the given identity.
//
// 2.6.5.  Softfail
//
//  A "softfail" result is a weak statement by the publishing ADMD that
//  the host is probably not authorized.  It has not published a
//  stronger, more definitive policy that results in a "fail".
//
// 2.6.6.  Temperror
//
//  A "temperror" result means the SPF verifier encountered a transient
//  (generally DNS) error while performing the check.  A later retry may
//  succeed without further DNS operator action.
//
// 2.6.7.  Permerror
//
//  A "permerror" result means the domain's published records could not
//  be correctly interpreted.  This signals an error condition that
//  definitely requires DNS operator intervention to be resolved.

// ResultType is the overall SPF result of a check_host() evaluation.
type ResultType int

const (
	None ResultType = iota
	Neutral
	Pass
	Fail
	Softfail
	Temperror
	Permerror
)

// qualifierResult maps the four SPF directive qualifiers onto the
// result they produce when their mechanism matches.
var qualifierResult = map[byte]ResultType{
	'+': Pass,
	'-': Fail,
	'~': Softfail,
	'?': Neutral,
}

// Context carries everything that is invariant across a check_host()
// recursion tree (ip, sender, helo) together with the counters that
// must be shared by every include/redirect frame. It is the spec's
// "EvaluationContext"; it is threaded by pointer so nested
// checkHostCore calls mutate the same counters as their caller rather
// than a private copy.
type Context struct {
	ip     net.IP
	sender string
	helo   string
	c      *Checker

	// DNSQueries counts every term (a, mx, ptr, exists, include,
	// redirect) that causes a DNS query, across the whole recursion.
	DNSQueries int
	// VoidLookups counts every DNS query so far that returned NXDOMAIN
	// or an empty answer, across the whole recursion.
	VoidLookups int

	// ptrNames caches the validated PTR name set computed for ip, so a
	// ptr mechanism and a %{p} macro in the same check only walk the
	// reverse-DNS validation procedure once.
	ptrNames    []string
	ptrComputed bool

	// err and explanation accumulate the detail behind the final
	// ResultType as checkHostCore recurses; the top-level entry point
	// copies them into the returned Result.
	err         error
	explanation string
}

// Result is the outcome of a completed check_host() evaluation.
type Result struct {
	Type        ResultType
	Error       error
	Explanation string
	UsedHELO    bool

	ctx *Context
}

func (r *Result) String() string {
	return r.Type.String()
}

// AuthenticationResults renders the result as the value of an RFC 8601
// Authentication-Results header field.
func (r *Result) AuthenticationResults(hostID string) string {
	if r.UsedHELO {
		return fmt.Sprintf("%s; spf=%s smtp.helo=%s", hostID, r.Type.String(), r.ctx.helo)
	}
	return fmt.Sprintf("%s; spf=%s smtp.mailfrom=%s", hostID, r.Type.String(), r.ctx.sender)
}
