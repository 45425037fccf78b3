/*
Package spf implements the SPF (Sender Policy Framework) check_host()
algorithm described in RFC 7208: given a client IP, a claimed sending
domain, a sender mailbox, and the EHLO/HELO parameter of an SMTP
session, it decides whether the client is authorized to send mail for
that domain.

It implements the policy-record parser, the macro-expansion language,
every mechanism (all, ip4, ip6, a, mx, ptr, exists, include) and
modifier (redirect, exp), and the DNS lookup and void-lookup budgets,
driven entirely through an injected Resolver. A Resolver backed by
github.com/miekg/dns is included, but any implementation of the
Resolver interface can be substituted - which is how the test suite
drives the evaluator without touching the network.

The Hook interface can be attached to a Checker to observe selected
records, macro expansions and mechanism results as a check proceeds.
*/
package spf
