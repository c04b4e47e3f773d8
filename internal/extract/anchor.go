package extract

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

/*
Anchor & expand: the postal-code/city line is the most reliable signal in a
legal-disclosure block, so it anchors the search. The street is on the same
line or the line above; the legal name is the nearest plausible line up to
three above the street.
*/

// streetSuffixTokens mark a line as a street address when combined with a
// house number. Lowercased, substring-matched.
var streetSuffixTokens = []string{
	"straße", "strasse", "str.", "weg", "allee", "platz", "gasse", "ring",
	"damm", "ufer", "chaussee", "markt",
	"street", "road", "lane", "avenue", "court", "square", "house",
	"rue", "boulevard", "avenue", "place", "chemin", "quai",
	"via", "viale", "piazza", "corso",
	"calle", "avenida", "plaza", "paseo",
}

// labelDenylist rejects navigation and form labels that sit near address
// blocks but are never legal names.
var labelDenylist = []string{
	"kontakt", "anschrift", "adresse", "address", "home", "menu", "menü",
	"impressum", "imprint", "contact", "warenkorb", "login", "suche",
	"telefon", "phone", "e-mail", "email", "fax", "öffnungszeiten",
}

const (
	nameSearchWindow  = 3
	fuzzyDefaultRatio = 0.6
)

// FindAnchors returns every line matching the pack's postal pattern.
func (p *Pack) FindAnchors(lines []string) []AnchorMatch {
	var anchors []AnchorMatch
	for i, line := range lines {
		postal, city, ok := p.postalLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		if city == "" && i > 0 {
			// UK-style: the city often sits on the line above the postcode.
			city = trimCity(lines[i-1])
		}
		anchors = append(anchors, AnchorMatch{
			PostalCode: postal,
			City:       city,
			LineIndex:  i,
		})
	}
	return anchors
}

// expandStreet looks at the anchor line itself, then the line above, for a
// street-suffix token combined with a number.
func expandStreet(lines []string, anchor AnchorMatch) (string, int) {
	for _, idx := range []int{anchor.LineIndex, anchor.LineIndex - 1} {
		if idx < 0 || idx >= len(lines) {
			continue
		}
		line := strings.TrimSpace(lines[idx])
		if idx == anchor.LineIndex {
			// strip the postal/city tail when street and anchor share a line
			if cut := strings.Index(line, anchor.PostalCode); cut > 0 {
				line = strings.TrimRight(strings.TrimSpace(line[:cut]), ",")
			} else {
				continue
			}
		}
		if isStreetLine(line) {
			return line, idx
		}
	}
	return "", -1
}

func isStreetLine(line string) bool {
	if line == "" || !containsDigit(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, token := range streetSuffixTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// expandLegalName walks up to nameSearchWindow non-empty lines above the
// street (or the anchor when no street was found) looking for a line that
// carries a legal-form token or fuzzy-matches the domain label, and is not
// a navigation label.
func (p *Pack) expandLegalName(lines []string, aboveIndex int, domainLabel string, fuzzyRatio float64) string {
	if fuzzyRatio <= 0 {
		fuzzyRatio = fuzzyDefaultRatio
	}
	inspected := 0
	for i := aboveIndex - 1; i >= 0 && inspected < nameSearchWindow; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		inspected++
		if onDenylist(line) {
			continue
		}
		if p.hasLegalFormToken(line) {
			return line
		}
		if FuzzyRatio(NormaliseForFuzzy(line), domainLabel) >= fuzzyRatio {
			return line
		}
	}
	return ""
}

// HasLegalForm reports whether the line carries one of the pack's
// legal-form tokens at a word boundary.
func (p *Pack) HasLegalForm(line string) bool {
	return p.hasLegalFormToken(line)
}

// LegalFormOf returns the pack's legal-form token found in the line, or ""
// when none matches. Longest token wins.
func (p *Pack) LegalFormOf(line string) string {
	return p.legalFormOf(line)
}

func (p *Pack) hasLegalFormToken(line string) bool {
	for _, form := range p.LegalForms {
		if containsToken(line, form) {
			return true
		}
	}
	return false
}

// legalFormOf returns the matched legal-form token, longest match first so
// "GmbH & Co. KG" beats "GmbH".
func (p *Pack) legalFormOf(line string) string {
	best := ""
	for _, form := range p.LegalForms {
		if containsToken(line, form) && len(form) > len(best) {
			best = form
		}
	}
	return best
}

func containsToken(line, token string) bool {
	idx := strings.Index(line, token)
	if idx < 0 {
		return false
	}
	// token boundaries: not embedded inside a longer word
	if idx > 0 {
		prev := line[idx-1]
		if prev != ' ' && prev != '(' && prev != ',' {
			return false
		}
	}
	end := idx + len(token)
	if end < len(line) {
		next := line[end]
		if next != ' ' && next != ')' && next != ',' && next != '.' && next != ';' {
			return false
		}
	}
	return true
}

func onDenylist(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range labelDenylist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// FuzzyRatio is a similarity in [0,1] derived from edit distance over the
// longer operand.
func FuzzyRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

// NormaliseForFuzzy strips legal-form suffixes and punctuation so "Beispiel
// GmbH" fuzz-compares against the domain label "beispiel".
func NormaliseForFuzzy(line string) string {
	lower := strings.ToLower(line)
	for _, junk := range []string{"gmbh & co. kg", "gmbh", "ag", "ltd", "limited", "sarl", "s.r.l.", "s.l.", "kg", "ug"} {
		lower = strings.ReplaceAll(lower, junk, "")
	}
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return strings.Join(fields, "")
}

func containsDigit(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}

func trimCity(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), ",.-")
}
