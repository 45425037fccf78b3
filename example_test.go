package spf_test

import (
	"context"
	"fmt"
	"net"

	spf "github.com/relaysentry/spfcheck"
)

func exampleResolver() *fakeResolver {
	return newFakeResolver().
		withTXT("aol.com", "v=spf1 ip4:205.188.0.0/16 ~all")
}

func ExampleCheck() {
	spf.DefaultChecker = spf.NewChecker(spf.WithResolver(exampleResolver()))

	ip := net.ParseIP("8.8.8.8")
	resultType, _ := spf.Check(context.Background(), ip, "steve@aol.com", "aol.com")
	fmt.Println(resultType)
	// Output: softfail
}

func ExampleResult_AuthenticationResults() {
	c := spf.NewChecker(spf.WithResolver(exampleResolver()), spf.WithHostDomain("mail.example.com"))
	ip := net.ParseIP("8.8.8.8")
	result := c.SPF(context.Background(), ip, "steve@aol.com", "aol.com")
	fmt.Printf("Authentication-Results: %s\n", result.AuthenticationResults("mail.example.com"))
	// Output: Authentication-Results: mail.example.com; spf=softfail smtp.helo=aol.com
}
