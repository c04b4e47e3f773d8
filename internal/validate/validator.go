/*
Responsibilities
- Field-by-field structural and semantic validation
- Normalisation (phones to international form, VAT IDs uppercased)
- Failing fields are dropped, not coerced silently

A record stays valid as long as a validated legal name survives; the
assembler decides what that means for the queue status.
*/
package validate

import (
	"regexp"
	"strings"
	"time"

	emailverifier "github.com/AfterShip/email-verifier"

	"github.com/corvid-labs/legalscout/internal/extract"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

var postalPatterns = map[string]*regexp.Regexp{
	"de": regexp.MustCompile(`^\d{5}$`),
	"at": regexp.MustCompile(`^\d{4}$`),
	"ch": regexp.MustCompile(`^\d{4}$`),
	"uk": regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}$`),
	"gb": regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}$`),
	"fr": regexp.MustCompile(`^\d{5}$`),
	"it": regexp.MustCompile(`^\d{5}$`),
	"es": regexp.MustCompile(`^\d{5}$`),
}

var (
	digitRunPattern      = regexp.MustCompile(`\d{5,}`)
	personalEmailPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+@`)
	personTitlePattern   = regexp.MustCompile(`^(Dr\.|Prof\.|Dipl\.-\w+\.?|Herr|Frau|Mr\.?|Mrs\.?|Ms\.?|M\.|Mme)\s+`)
)

// navDenylist rejects navigation labels masquerading as legal names.
var navDenylist = []string{
	"kontakt", "anschrift", "adresse", "address", "home", "menu", "menü",
	"impressum", "imprint", "warenkorb", "login", "suche", "search",
	"datenschutz", "agb", "sitemap",
}

// streetDenylist rejects non-address lines that happen to carry digits.
var streetDenylist = []string{
	"postfach", "p.o. box", "po box", "telefon", "tel.", "fax", "ust",
	"hrb", "hra", "mwst",
}

type Validator struct {
	sink       legallog.Sink
	verifier   *emailverifier.Verifier
	mxCheck    bool
	fuzzyRatio float64
}

func NewValidator(sink legallog.Sink, mxCheck bool, fuzzyRatio float64) *Validator {
	return &Validator{
		sink:       sink,
		verifier:   emailverifier.NewVerifier(),
		mxCheck:    mxCheck,
		fuzzyRatio: fuzzyRatio,
	}
}

// Validate runs the candidate through its field's validator. The returned
// candidate may carry a normalised value; ok=false means the field is
// dropped.
func (v *Validator) Validate(c extract.Candidate, vctx Context) (extract.Candidate, bool) {
	value, reason := v.validateField(c, vctx)
	if reason != "" {
		v.sink.RecordError(
			time.Now(),
			"validate",
			"Validator.Validate",
			failure.CauseValidationRejected,
			string(reason),
			[]legallog.Attribute{
				legallog.NewAttr(legallog.AttrField, string(c.Field)),
				legallog.NewAttr(legallog.AttrDomain, vctx.Domain),
			},
		)
		return extract.Candidate{}, false
	}
	c.Value = value
	return c, true
}

func (v *Validator) validateField(c extract.Candidate, vctx Context) (string, RejectReason) {
	value := strings.TrimSpace(c.Value)
	switch c.Field {
	case extract.FieldLegalName:
		return v.validateLegalName(value, vctx)
	case extract.FieldLegalForm:
		return validateLegalForm(value, vctx)
	case extract.FieldPostalCode:
		return validatePostalCode(value, vctx)
	case extract.FieldStreet:
		return validateStreet(value)
	case extract.FieldCity:
		return validateCity(value)
	case extract.FieldPhone, extract.FieldFax:
		return validatePhone(value, vctx)
	case extract.FieldEmail:
		return v.validateEmail(value, vctx)
	case extract.FieldVatID:
		return validateVat(value, vctx)
	case extract.FieldRegistrationNumber:
		// co-occurrence with a register authority is checked by the
		// assembler, which sees the whole candidate set
		if value == "" {
			return "", RejectPatternMiss
		}
		return value, ""
	case extract.FieldCEO, extract.FieldDirector:
		return validatePerson(value)
	default:
		return value, ""
	}
}

func (v *Validator) validateLegalName(value string, vctx Context) (string, RejectReason) {
	if len(value) < 3 {
		return "", RejectTooShort
	}
	if len(value) > 120 {
		return "", RejectTooLong
	}
	if digitRunPattern.MatchString(value) {
		return "", RejectDigitRun
	}
	lower := strings.ToLower(value)
	for _, word := range navDenylist {
		if lower == word || strings.HasPrefix(lower, word+" ") {
			return "", RejectDenylist
		}
	}
	hasForm := vctx.Pack != nil && vctx.Pack.HasLegalForm(value)
	fuzzyHit := extract.FuzzyRatio(extract.NormaliseForFuzzy(value), vctx.DomainLabel) >= v.fuzzyRatio
	if !hasForm && !fuzzyHit {
		return "", RejectNoAnchor
	}
	return value, ""
}

func validateLegalForm(value string, vctx Context) (string, RejectReason) {
	if vctx.Pack == nil {
		return "", RejectUnknownForm
	}
	for _, form := range vctx.Pack.LegalForms {
		if value == form {
			return value, ""
		}
	}
	return "", RejectUnknownForm
}

func validatePostalCode(value string, vctx Context) (string, RejectReason) {
	code := ""
	if vctx.Pack != nil {
		code = vctx.Pack.Code
	}
	pattern, ok := postalPatterns[code]
	if !ok {
		// no jurisdiction pattern: unchecked per the generic family
		return value, ""
	}
	if !pattern.MatchString(strings.ToUpper(value)) {
		return "", RejectPatternMiss
	}
	return value, ""
}

func validateStreet(value string) (string, RejectReason) {
	if !containsDigit(value) {
		return "", RejectNoDigit
	}
	// denylist words count only at the start of a word, so "Musterweg"
	// does not trip "ust"
	lower := " " + strings.ToLower(value)
	for _, word := range streetDenylist {
		if strings.Contains(lower, " "+word) {
			return "", RejectDenylist
		}
	}
	return value, ""
}

func validateCity(value string) (string, RejectReason) {
	if len([]rune(value)) < 2 {
		return "", RejectTooShort
	}
	if containsDigit(value) {
		return "", RejectPatternMiss
	}
	return value, ""
}

func validatePhone(value string, vctx Context) (string, RejectReason) {
	code := ""
	if vctx.Pack != nil {
		code = vctx.Pack.Code
	}
	normalized, ok := NormalizePhone(value, code)
	if !ok {
		return "", RejectBadPhone
	}
	return normalized, ""
}

func (v *Validator) validateEmail(value string, vctx Context) (string, RejectReason) {
	lower := strings.ToLower(value)
	syntax := v.verifier.ParseAddress(lower)
	if !syntax.Valid {
		return "", RejectBadEmail
	}
	if personalEmailPattern.MatchString(lower) && !vctx.OnLegalPage {
		return "", RejectPersonalEmail
	}
	if v.mxCheck {
		mx, err := v.verifier.CheckMX(syntax.Domain)
		if err != nil || !mx.HasMXRecord {
			return "", RejectNoMX
		}
	}
	return lower, ""
}

func validateVat(value string, vctx Context) (string, RejectReason) {
	code := ""
	if vctx.Pack != nil {
		code = vctx.Pack.Code
	}
	normalized, ok := ValidVatID(value, code)
	if !ok {
		return "", RejectChecksum
	}
	return normalized, ""
}

// validatePerson checks the 2-4 token shape after stripping titles.
func validatePerson(value string) (string, RejectReason) {
	stripped := value
	for {
		next := personTitlePattern.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
	}
	stripped = strings.TrimSpace(stripped)
	tokens := strings.Fields(stripped)
	if len(tokens) < 2 || len(tokens) > 4 {
		return "", RejectNotAName
	}
	if containsDigit(stripped) {
		return "", RejectNotAName
	}
	lower := strings.ToLower(stripped)
	for _, word := range navDenylist {
		if strings.Contains(lower, word) {
			return "", RejectNotAName
		}
	}
	for _, form := range []string{"gmbh", "ltd", "sarl", "s.r.l.", " ag", " kg"} {
		if strings.Contains(lower, form) {
			return "", RejectNotAName
		}
	}
	return stripped, ""
}

func containsDigit(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}
