package spf_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spf "github.com/relaysentry/spfcheck"
)

// The macro expansion examples from RFC 7208 §7.4, run as "exists"
// domain-specs against a fixed sender/ip/helo so each expansion can be
// observed through which target name the mechanism queried.
func TestMacroExpansionExamples(t *testing.T) {
	cases := []struct {
		macro string
		want  string
	}{
		{"%{s}", "strong-bad@email.example.com"},
		{"%{o}", "email.example.com"},
		{"%{d}", "email.example.com"},
		{"%{d4}", "email.example.com"},
		{"%{d3}", "email.example.com"},
		{"%{d2}", "example.com"},
		{"%{d1}", "com"},
		{"%{dr}", "com.example.email"},
		{"%{d2r}", "example.email"},
		{"%{l}", "strong-bad"},
		{"%{l-}", "strong.bad"},
		{"%{lr}", "strong-bad"},
		{"%{lr-}", "bad.strong"},
		{"%{l1r-}", "strong"},
	}

	for _, tc := range cases {
		t.Run(tc.macro, func(t *testing.T) {
			var seen string
			resolver := newFakeResolver()
			resolver.withTXT("email.example.com", "v=spf1 exists:"+tc.macro+".probe.example -all")
			resolver.withA("probe.example") // never matched; only target matters

			// Capture the exact name queried for the exists mechanism by
			// giving every possible expansion its own A record and
			// checking which one resolved.
			resolver.withA(tc.want+".probe.example", "192.0.2.9")

			checker := spf.NewChecker(spf.WithResolver(resolver))
			result := checker.CheckHost(context.Background(), net.ParseIP("192.0.2.3"), "email.example.com",
				"strong-bad@email.example.com", "email.example.com")
			if result.Type == spf.Pass {
				seen = tc.want
			}
			require.NoError(t, result.Error)
			assert.Equal(t, tc.want, seen, "expansion of %s", tc.macro)
		})
	}
}

func TestMacroIsValid(t *testing.T) {
	assert.True(t, spf.MacroIsValid("%{s}"))
	assert.True(t, spf.MacroIsValid("%{ir}.%{v}._spf.%{d2}"))
	assert.True(t, spf.MacroIsValid("literal.text.%%"))
	assert.False(t, spf.MacroIsValid("%{q}"))
	assert.False(t, spf.MacroIsValid("trailing%"))
}
