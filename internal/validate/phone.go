package validate

import (
	"strings"
)

// callingCodes maps pack codes to their international calling code, used
// to lift national numbers into international form.
var callingCodes = map[string]string{
	"de": "49",
	"at": "43",
	"ch": "41",
	"uk": "44",
	"gb": "44",
	"fr": "33",
	"it": "39",
	"es": "34",
}

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// NormalizePhone lifts a raw phone string into international form. Already
// international numbers keep their grouping; national numbers are rewritten
// with the jurisdiction's calling code. Returns false when the number
// cannot be made valid.
func NormalizePhone(raw, countryCode string) (string, bool) {
	cleaned := strings.Join(strings.Fields(strings.TrimSpace(raw)), " ")
	digits := phoneDigits(cleaned)

	switch {
	case strings.HasPrefix(cleaned, "+"):
		if !digitCountValid(digits) {
			return "", false
		}
		return cleaned, true

	case strings.HasPrefix(digits, "00"):
		international := digits[2:]
		if !digitCountValid(international) {
			return "", false
		}
		return "+" + international, true

	case strings.HasPrefix(digits, "0"):
		code, ok := callingCodes[countryCode]
		if !ok {
			return "", false
		}
		international := code + digits[1:]
		if !digitCountValid(international) {
			return "", false
		}
		return "+" + code + " " + digits[1:], true

	default:
		return "", false
	}
}

func digitCountValid(digits string) bool {
	return len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits
}

func phoneDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if '0' <= r && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
