package safety_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sitesnap/src/safety"
)

func TestConfirm_AutoYes(t *testing.T) {
	for _, opts := range []safety.Options{{Yes: true}, {Force: true}} {
		var out bytes.Buffer
		ok, err := safety.Confirm(opts, strings.NewReader(""), &out, "restore snapshot?")
		require.NoError(t, err)
		require.True(t, ok)
		require.Empty(t, out.String(), "no prompt expected")
	}
}

func TestConfirm_DryRunDeclines(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{DryRun: true, Yes: true}, strings.NewReader("y\n"), &out, "restore snapshot?")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConfirm_UserInput(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"No\n", false},
		{"\n", false},
		{"", false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		got, err := safety.Confirm(safety.Options{}, strings.NewReader(c.in), &out, "restore snapshot?")
		require.NoError(t, err)
		require.Equal(t, c.want, got, "input %q", c.in)
		require.Contains(t, out.String(), "restore snapshot? [y/N]: ")
	}
}

func TestOptions_Proceed(t *testing.T) {
	require.True(t, safety.Options{Yes: true}.Proceed())
	require.True(t, safety.Options{Force: true}.Proceed())
	require.False(t, safety.Options{Force: true, DryRun: true}.Proceed())
	require.False(t, safety.Options{}.Proceed())
}

func TestConfirm_NilInputDeclines(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{}, nil, nil, "restore snapshot?")
	require.NoError(t, err)
	require.False(t, ok)
}
