package whatsapp

import (
	"strings"

	"github.com/Idosegev23/finhealer/internal/common"
)

const israelCountryCode = "972"

// NormalizePhone converts a WhatsApp address or a local Israeli number to
// E.164 digits without the plus sign, e.g. "whatsapp:+972 50-123-4567" and
// "050-1234567" both become "972501234567".
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.ToLower(s), channelPrefix)

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", common.Validationf("invalid phone number %q", raw)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = israelCountryCode + digits[1:]
	}
	// A local number typed with the country code and the trunk zero.
	if strings.HasPrefix(digits, israelCountryCode+"0") {
		digits = israelCountryCode + digits[len(israelCountryCode)+1:]
	}

	if len(digits) < 10 || len(digits) > 15 {
		return "", common.Validationf("invalid phone number %q", raw)
	}
	return digits, nil
}
