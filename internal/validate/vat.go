package validate

import (
	"regexp"
	"strings"
)

// VAT patterns per jurisdiction; values are matched after stripping spaces.
var vatPatterns = map[string]*regexp.Regexp{
	"de": regexp.MustCompile(`^DE\d{9}$`),
	"at": regexp.MustCompile(`^ATU\d{8}$`),
	"ch": regexp.MustCompile(`^CHE\d{9}(MWST|TVA|IVA)?$`),
	"uk": regexp.MustCompile(`^GB\d{9}(\d{3})?$`),
	"gb": regexp.MustCompile(`^GB\d{9}(\d{3})?$`),
	"fr": regexp.MustCompile(`^FR[0-9A-Z]{2}\d{9}$`),
	"it": regexp.MustCompile(`^IT\d{11}$`),
	"es": regexp.MustCompile(`^ES[A-Z0-9]\d{7}[A-Z0-9]$`),
}

// ValidVatID checks the jurisdiction pattern and, for German IDs, the
// ISO 7064 MOD 11,10 checksum the Bundeszentralamt issues them under.
func ValidVatID(raw, countryCode string) (string, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), ".", ""))
	pattern, ok := vatPatterns[countryCode]
	if !ok {
		// unknown jurisdiction: accept the broad EU shape
		if regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{8,12}$`).MatchString(normalized) {
			return normalized, true
		}
		return "", false
	}
	if !pattern.MatchString(normalized) {
		return "", false
	}
	if countryCode == "de" && !validGermanVatChecksum(normalized[2:]) {
		return "", false
	}
	return normalized, true
}

// validGermanVatChecksum implements ISO 7064 MOD 11,10 over the first
// eight digits; the ninth digit is the check digit.
func validGermanVatChecksum(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	product := 10
	for i := 0; i < 8; i++ {
		sum := (int(digits[i]-'0') + product) % 10
		if sum == 0 {
			sum = 10
		}
		product = (2 * sum) % 11
	}
	check := (11 - product) % 10
	return check == int(digits[8]-'0')
}
