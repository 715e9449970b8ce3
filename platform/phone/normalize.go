// Package phone normalises lead phone numbers for the messaging gateway.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion applies to numbers without a country prefix when no region
// is configured.
const DefaultRegion = "NL"

// Parse returns the E.164 form of input and whether it is a valid number.
func Parse(input, region string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(input, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return input, false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// NormalizeE164 is Parse without the verdict: unparseable input comes back
// trimmed so the gateway can still reject it with its own message.
func NormalizeE164(input, region string) string {
	out, _ := Parse(input, region)
	return out
}
