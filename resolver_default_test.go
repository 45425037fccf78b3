package spf

import "testing"

func TestAsciiName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"münchen.example", "xn--mnchen-3ya.example"},
		{"example.com.", "example.com."},
	}
	for _, tc := range cases {
		got := asciiName(tc.in)
		if got != tc.want {
			t.Errorf("asciiName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
