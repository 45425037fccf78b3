package spf_test

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	spf "github.com/relaysentry/spfcheck"
)

type scenarioZoneHost struct {
	TXT     []string `yaml:"txt"`
	A       []string `yaml:"a"`
	AAAA    []string `yaml:"aaaa"`
	MX      []string `yaml:"mx"`
	PTR     []string `yaml:"ptr"`
	Timeout bool     `yaml:"timeout"`
}

type scenarioTest struct {
	IP          string `yaml:"ip"`
	MailFrom    string `yaml:"mailfrom"`
	Helo        string `yaml:"helo"`
	Result      string `yaml:"result"`
	Explanation string `yaml:"explanation"`
}

type scenario struct {
	Description string                      `yaml:"description"`
	Zone        map[string]scenarioZoneHost `yaml:"zone"`
	Tests       map[string]scenarioTest     `yaml:"tests"`
}

var resultByName = map[string]spf.ResultType{
	"none":      spf.None,
	"neutral":   spf.Neutral,
	"pass":      spf.Pass,
	"fail":      spf.Fail,
	"softfail":  spf.Softfail,
	"temperror": spf.Temperror,
	"permerror": spf.Permerror,
}

func loadScenarios(t *testing.T, path string) []scenario {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var scenarios []scenario
	require.NoError(t, yaml.NewDecoder(f).Decode(&scenarios))
	return scenarios
}

func (s scenario) resolver() *fakeResolver {
	r := newFakeResolver()
	for name, host := range s.Zone {
		if host.Timeout {
			r.withTimeout(name)
			continue
		}
		if len(host.TXT) > 0 {
			r.withTXT(name, host.TXT...)
		}
		if len(host.A) > 0 {
			r.withA(name, host.A...)
		}
		if len(host.AAAA) > 0 {
			r.withAAAA(name, host.AAAA...)
		}
		if len(host.MX) > 0 {
			r.withMX(name, host.MX...)
		}
		if len(host.PTR) > 0 {
			r.withPTR(name, host.PTR...)
		}
	}
	return r
}

func TestScenarios(t *testing.T) {
	for _, s := range loadScenarios(t, "testdata/scenarios.yml") {
		s := s
		t.Run(s.Description, func(t *testing.T) {
			checker := spf.NewChecker(spf.WithResolver(s.resolver()), spf.WithHostDomain("mail.example.org"))
			for name, tc := range s.Tests {
				tc := tc
				t.Run(name, func(t *testing.T) {
					ip := net.ParseIP(tc.IP)
					require.NotNil(t, ip, "test IP %q must parse", tc.IP)

					want, ok := resultByName[tc.Result]
					require.True(t, ok, "unknown expected result %q", tc.Result)

					got := checker.SPF(context.Background(), ip, tc.MailFrom, tc.Helo)
					assert.Equal(t, want, got.Type, "result")
					if tc.Explanation != "" {
						assert.Equal(t, tc.Explanation, got.Explanation, "explanation")
					}
				})
			}
		})
	}
}

func TestCheckHostAcceptsNonFQDNDomain(t *testing.T) {
	checker := spf.NewChecker(spf.WithResolver(newFakeResolver().withTXT("example.com", "v=spf1 +all")))
	result := checker.CheckHost(context.Background(), net.ParseIP("192.0.2.1"), "example.com", "foo@example.com", "example.com")
	assert.Equal(t, spf.Pass, result.Type)
	assert.NoError(t, result.Error)
}

func TestLookupLimitExceededIsPermerror(t *testing.T) {
	resolver := newFakeResolver()
	chain := "a0.example"
	for i := 0; i < 12; i++ {
		next := chainLink(i + 1)
		resolver.withTXT(chainLink(i), "v=spf1 include:"+next+" -all")
	}
	resolver.withTXT(chainLink(12), "v=spf1 -all")

	checker := spf.NewChecker(spf.WithResolver(resolver))
	result := checker.CheckHost(context.Background(), net.ParseIP("192.0.2.1"), chain, "foo@"+chain, chain)
	assert.Equal(t, spf.Permerror, result.Type)
}

func chainLink(i int) string {
	names := []string{
		"a0.example", "a1.example", "a2.example", "a3.example", "a4.example",
		"a5.example", "a6.example", "a7.example", "a8.example", "a9.example",
		"a10.example", "a11.example", "a12.example",
	}
	return names[i]
}

func TestVoidLookupLimitExceededIsPermerror(t *testing.T) {
	resolver := newFakeResolver()
	// a, mx, exists all miss -> three void lookups against a limit of 2.
	resolver.withTXT("void.example", "v=spf1 a:missing1.example mx:missing2.example exists:missing3.example -all")

	checker := spf.NewChecker(spf.WithResolver(resolver))
	result := checker.CheckHost(context.Background(), net.ParseIP("192.0.2.1"), "void.example", "foo@void.example", "void.example")
	assert.Equal(t, spf.Permerror, result.Type)
}

func TestPTRMechanismIgnoresNamesBeyondAddressLimit(t *testing.T) {
	resolver := newFakeResolver()
	ip := "203.0.113.44"
	reverse := "44.113.0.203.in-addr.arpa"

	// Ten decoy PTR names ahead of the one that would actually match
	// the domain-spec - the eleventh name is dropped before it is ever
	// forward-validated, so it must not cause a match.
	decoys := []string{
		"host0.ptrtest.example", "host1.ptrtest.example", "host2.ptrtest.example",
		"host3.ptrtest.example", "host4.ptrtest.example", "host5.ptrtest.example",
		"host6.ptrtest.example", "host7.ptrtest.example", "host8.ptrtest.example",
		"host9.ptrtest.example",
	}
	for _, name := range decoys {
		resolver.withA(name, "203.0.113.200")
	}
	resolver.withPTR(reverse, append(append([]string{}, decoys...), "allowed.ptrtest.example")...)
	resolver.withA("allowed.ptrtest.example", ip)
	resolver.withTXT("ptrtest.example", "v=spf1 ptr:allowed.ptrtest.example -all")

	checker := spf.NewChecker(spf.WithResolver(resolver))
	result := checker.CheckHost(context.Background(), net.ParseIP(ip), "ptrtest.example", "foo@ptrtest.example", "ptrtest.example")
	assert.Equal(t, spf.Fail, result.Type, "the 11th PTR name must be ignored even though it would have matched")
}
