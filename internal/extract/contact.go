package extract

import (
	"regexp"
	"strings"
)

// Contact extraction is shared by every pack: email, phone and fax shapes
// do not vary enough per jurisdiction to justify per-pack patterns.

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+|00)\d[\d\s\-/().]{5,20}\d|\(?0\d{1,4}\)?[\s\-/]\d[\d\s\-/]{4,14}\d`)

	phoneLabelPattern = regexp.MustCompile(`(?i)^\s*(?:tel(?:efon)?|phone|tél(?:éphone)?|telefono|teléfono)\b`)
	faxLabelPattern   = regexp.MustCompile(`(?i)^\s*(?:tele)?fax\b`)
)

// extractContacts scans the isolated lines for emails, phones and fax
// numbers. Phone matches on fax-labelled lines become fax candidates.
func extractContacts(lines []string, source string, confidence float64) []Candidate {
	var out []Candidate
	seenEmail := map[string]struct{}{}
	seenPhone := map[string]struct{}{}
	for _, line := range lines {
		for _, email := range emailPattern.FindAllString(line, -1) {
			// de-obfuscated forms like "info (at) example.de" are out of
			// scope; only literal addresses count
			key := strings.ToLower(email)
			if _, dup := seenEmail[key]; dup {
				continue
			}
			seenEmail[key] = struct{}{}
			out = append(out, Candidate{Field: FieldEmail, Value: email, Source: source, Confidence: confidence})
		}

		isFaxLine := faxLabelPattern.MatchString(line)
		isPhoneLine := phoneLabelPattern.MatchString(line)
		for _, phone := range phonePattern.FindAllString(line, -1) {
			key := digitsOnly(phone)
			if len(key) < 6 {
				continue
			}
			if _, dup := seenPhone[key]; dup {
				continue
			}
			seenPhone[key] = struct{}{}
			field := FieldPhone
			if isFaxLine {
				field = FieldFax
			} else if !isPhoneLine && !strings.HasPrefix(strings.TrimSpace(phone), "+") {
				// unlabelled national numbers are too noisy to keep
				continue
			}
			out = append(out, Candidate{Field: field, Value: strings.TrimSpace(phone), Source: source, Confidence: confidence})
		}
	}
	return out
}

// extractPeople parses "Geschäftsführer: Max Mustermann"-style lines. The
// first label hit becomes the ceo candidate; every name on labelled lines
// becomes a director candidate, in document order.
func extractPeople(lines []string, labels []string, source string, confidence float64) []Candidate {
	var out []Candidate
	ceoEmitted := false
	for _, line := range lines {
		rest, ok := splitContactLabel(line, labels)
		if !ok {
			continue
		}
		for _, name := range splitNames(rest) {
			if !ceoEmitted {
				out = append(out, Candidate{Field: FieldCEO, Value: name, Source: source, Confidence: confidence})
				ceoEmitted = true
			}
			out = append(out, Candidate{Field: FieldDirector, Value: name, Source: source, Confidence: confidence})
		}
	}
	return out
}

func splitContactLabel(line string, labels []string) (string, bool) {
	for _, label := range labels {
		idx := strings.Index(line, label)
		if idx < 0 {
			continue
		}
		rest := strings.TrimLeft(line[idx+len(label):], " :-–")
		if strings.TrimSpace(rest) == "" {
			continue
		}
		return rest, true
	}
	return "", false
}

func splitNames(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '·' || r == '|'
	})
	var names []string
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" || strings.EqualFold(name, "und") || strings.EqualFold(name, "and") {
			continue
		}
		names = append(names, name)
	}
	return names
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if '0' <= r && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
