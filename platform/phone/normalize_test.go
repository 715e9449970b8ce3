package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in     string
		region string
		want   string
	}{
		{"06 12345678", "NL", "+31612345678"},
		{"+31 6 12345678", "", "+31612345678"},
		{"  ", "NL", ""},
		{"not a number", "NL", "not a number"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeE164(tc.in, tc.region), "%q in %q", tc.in, tc.region)
	}
}

func TestParseReportsValidity(t *testing.T) {
	got, ok := Parse("0612345678", "NL")
	assert.True(t, ok)
	assert.Equal(t, "+31612345678", got)

	_, ok = Parse("12", "NL")
	assert.False(t, ok)
}
