/*
spf is a commandline tool for evaluating spf records.

 spf -ip 8.8.8.8 -from steve@aol.com

 Result: softfail
 Error:  <nil>
 Explanation:

If run with the -trace flag it will show the steps taken to check the spf
record, and if the -mechanisms flag is added it will show the result of
every mechanism evaluated along the way.

 spf -help
 Usage of spf:
   -from string
     	821.From address
   -helo string
     	domain used in 821.HELO
   -ip string
     	ip address from which the message is sent
   -mechanisms
    	show details about each mechanism
   -trace
     	show evaluation of record
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/relaysentry/spfcheck"
)

func main() {
	var ip, from, domain, helo string
	var trace, mechanisms bool
	flag.StringVar(&ip, "ip", "", "ip address from which the message is sent")
	flag.StringVar(&from, "from", "", "821.From address")
	flag.StringVar(&helo, "helo", "", "domain used in 821.HELO")
	flag.BoolVar(&trace, "trace", false, "show evaluation of record")
	flag.BoolVar(&mechanisms, "mechanisms", false, "show details about each mechanism")
	flag.Parse()

	if ip == "" {
		log.Fatalln("-ip is required")
	}

	if from == "" {
		log.Fatalln("-from is required")
	}

	if domain == "" {
		at := strings.LastIndex(from, "@")
		domain = from[at+1:]
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		log.Fatalf("'%s' doesn't look like an ip address", ip)
	}

	var opts []spf.Option
	if trace {
		au := aurora.NewAurora(isatty.IsTerminal(os.Stdout.Fd()))
		stdout := colorable.NewColorableStdout()
		opts = append(opts, spf.WithHook(&Tracer{
			au:             au,
			stdout:         stdout,
			showMechanisms: mechanisms,
			records:        map[string]spfMechanismResults{},
		}))
	}
	c := spf.NewChecker(opts...)
	ctx := context.Background()
	result := c.SPF(ctx, addr, from, helo)
	fmt.Printf("Result: %v\nError:  %v\nExplanation: %s\n", result.Type, result.Error, result.Explanation)
}

type spfMechanismResult struct {
	result    spf.ResultType
	mechanism spf.Mechanism
}

type spfMechanismResults struct {
	record            string
	results           map[int]spfMechanismResult
	associatedRecords []string
}

// Tracer is a spf.Hook that renders a colorized, human-readable trace
// of a check_host() evaluation to stdout.
type Tracer struct {
	au                  aurora.Aurora
	stdout              io.Writer
	showMechanisms      bool
	lastMechanismDomain string
	records             map[string]spfMechanismResults
	depth               int
}

func (t *Tracer) resultColour(resultType spf.ResultType, msg string) aurora.Value {
	switch resultType {
	case spf.Temperror, spf.Permerror:
		return t.au.BrightRed(msg)
	case spf.None, spf.Neutral:
		return t.au.Blue(msg)
	case spf.Fail, spf.Softfail:
		return t.au.Red(msg)
	case spf.Pass:
		return t.au.Green(msg)
	}
	return t.au.BrightRed(fmt.Sprintf("unknown result type %v", resultType))
}

func (t *Tracer) resultString(resultType spf.ResultType) aurora.Value {
	return t.resultColour(resultType, resultType.String())
}

func (t *Tracer) Printf(format string, a ...interface{}) (int, error) {
	return fmt.Fprintf(t.stdout, format, a...)
}

var _ spf.Hook = &Tracer{}

func (t *Tracer) Macro(before, after string, err error) {
	if err == nil {
		if before != after {
			t.Printf("%s expands to %s\n", t.au.BgBlue(before), t.au.BgBlue(after))
		}
		return
	}

	t.Printf("%s %s: %s\n", t.au.BgRed("Failed to expand macro"), t.au.BgBlue(before), t.au.Red(err.Error()))
}

func (t *Tracer) Record(record, domain string) {
	t.depth++
	t.Printf("%s: %s\n", domain, t.au.Magenta(record))
	t.lastMechanismDomain = ""
	t.records[domain] = spfMechanismResults{
		record:  record,
		results: map[int]spfMechanismResult{},
	}
}

func (t *Tracer) Mechanism(domain string, index int, mechanism spf.Mechanism, result spf.ResultType) {
	t.records[domain].results[index] = spfMechanismResult{
		result:    result,
		mechanism: mechanism,
	}
	include, ok := mechanism.(spf.MechanismInclude)
	if ok {
		t.Printf("%s included %s", domain, include.DomainSpec)
		if result == include.Qualifier {
			t.Printf(" which matched, so the include returned %s", t.resultString(result))
		} else {
			t.Printf(" which didn't match")
		}
		t.Printf("\n")
	}
	if t.showMechanisms {
		if t.lastMechanismDomain != domain {
			t.Printf("from %s\n", domain)
			t.lastMechanismDomain = domain
		}
		t.Printf("  %2d ", index+1)
		switch result {
		case spf.Temperror, spf.Permerror:
			t.Printf("%s %s", mechanism.String(), t.resultString(result))
		case spf.None, spf.Neutral:
			t.Printf("%s (%s)", t.au.Blue(mechanism.String()), t.resultString(result))
		case spf.Fail, spf.Softfail:
			t.Printf("%s (%s)", mechanism.String(), t.resultString(result))
		case spf.Pass:
			t.Printf("%s (%s)", mechanism.String(), t.resultString(result))
		}
		t.Printf("\n")
	}
}

var modifierRe = regexp.MustCompile(`^((?i)[a-z][a-z0-9_.-]*)=(.*)`)

func (t *Tracer) RecordResult(domain string, ec *spf.Context, result spf.ResultType) {
	t.depth--
	t.Printf("%s returns %s: ", domain, t.resultString(result))
	spfRecord, ok := t.records[domain]
	if ok {
		fields := strings.Fields(spfRecord.record)
		i := 0
		for _, field := range fields {
			if modifierRe.MatchString(field) {
				t.Printf("%s ", field)
			} else {
				mech, ok := spfRecord.results[i]
				if !ok {
					t.Printf("%s ", t.au.Gray(15, field))
				} else {
					t.Printf("%s ", t.resultColour(mech.result, field))
				}
				i++
			}
		}
	}
	t.Printf("\n")
}

func (t *Tracer) Redirect(target string) {
	t.Printf("redirecting to %s\n", target)
}
