package spf

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Resolver is used for every DNS lookup an SPF check performs. It
// abstracts away wire format entirely: callers get back the decoded
// values (or an error) for the record type they asked for.
//
// Implementations discriminate three failure modes:
//
//   - ErrNameNotFound (NXDOMAIN, or an empty but successful answer):
//     the policy treats this as "no records", not a failure, and it
//     counts against the void-lookup budget at the call sites named
//     in the mechanism table.
//   - ErrInvalidName: the requested name is malformed. check_host()
//     returns None for this at the top level; a sub-query (mx/ptr
//     targets) is simply skipped.
//   - *TempError: a transient DNS failure (SERVFAIL, timeout, i/o
//     error). check_host() returns Temperror for this, except for a
//     ptr mechanism's own PTR lookup, which instead fails to match.
type Resolver interface {
	// LookupTXT returns every TXT record for name.
	LookupTXT(ctx context.Context, name string) ([]string, error)
	// LookupA returns every A record for name.
	LookupA(ctx context.Context, name string) ([]net.IP, error)
	// LookupAAAA returns every AAAA record for name.
	LookupAAAA(ctx context.Context, name string) ([]net.IP, error)
	// LookupMX returns the target hostname of every MX record for
	// name, in the order the server returned them, duplicates
	// included.
	LookupMX(ctx context.Context, name string) ([]string, error)
	// LookupPTR returns every PTR record for a reverse-lookup name
	// (e.g. "4.3.2.1.in-addr.arpa.").
	LookupPTR(ctx context.Context, name string) ([]string, error)
}

// ErrNameNotFound is returned (or wrapped) by a Resolver when a name
// does not exist (NXDOMAIN).
var ErrNameNotFound = errors.New("spf: name not found")

// ErrInvalidName is returned (or wrapped) by a Resolver when a name is
// not a syntactically valid domain name to query.
var ErrInvalidName = errors.New("spf: invalid domain name")

// TempError wraps a transient DNS failure (SERVFAIL, timeout, network
// error). Use errors.As to detect it.
type TempError struct {
	Err error
}

func (e *TempError) Error() string {
	return fmt.Sprintf("spf: temporary DNS failure: %v", e.Err)
}

func (e *TempError) Unwrap() error {
	return e.Err
}

func isTempError(err error) bool {
	var t *TempError
	return errors.As(err, &t)
}
