package spf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spf "github.com/relaysentry/spfcheck"
)

func TestParseSPF(t *testing.T) {
	record, err := spf.ParseSPF("v=spf1 a mx ip4:192.0.2.0/24 include:_spf.example.net -all")
	require.NoError(t, err)
	require.Len(t, record.Mechanisms, 5)
	assert.Equal(t, "a", record.Mechanisms[0].String())
	assert.Equal(t, "mx", record.Mechanisms[1].String())
	assert.Equal(t, "ip4:192.0.2.0/24", record.Mechanisms[2].String())
	assert.Equal(t, "include:_spf.example.net", record.Mechanisms[3].String())
	assert.Equal(t, "-all", record.Mechanisms[4].String())
	assert.Empty(t, record.Redirect)
	assert.Empty(t, record.Exp)
}

func TestParseSPFModifiers(t *testing.T) {
	record, err := spf.ParseSPF("v=spf1 ip4:192.0.2.0/24 redirect=_spf.example.net")
	require.NoError(t, err)
	assert.Equal(t, "_spf.example.net", record.Redirect)

	record, err = spf.ParseSPF("v=spf1 -all exp=explain.example.net")
	require.NoError(t, err)
	assert.Equal(t, "explain.example.net", record.Exp)

	record, err = spf.ParseSPF("v=spf1 -all x-custom=whatever")
	require.NoError(t, err)
	require.Len(t, record.OtherModifiers, 1)
	assert.Equal(t, "x-custom=whatever", record.OtherModifiers[0])
}

func TestParseSPFRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"v=spf2 -all",
		"v=spf1 bogus-mechanism-thing",
		"v=spf1 redirect= -all",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			_, err := spf.ParseSPF(s)
			assert.Error(t, err)
		})
	}
}

func TestParseSPFRejectsDuplicateModifiers(t *testing.T) {
	_, err := spf.ParseSPF("v=spf1 redirect=a.example redirect=b.example")
	assert.Error(t, err)

	_, err = spf.ParseSPF("v=spf1 exp=a.example exp=b.example -all")
	assert.Error(t, err)
}
