package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/legalscout/internal/store"
)

/*
Structured-data pass: embedded machine-readable annotations in the HTML
head or body. JSON-LD blocks are the primary carrier; microdata itemprops
are scanned as a fallback. Emitted fields carry confidence 1.0 prior to
validation; multiple annotations merge by keeping the most populated one.
*/

var organizationTypes = map[string]struct{}{
	"Organization":  {},
	"Corporation":   {},
	"LocalBusiness": {},
}

type annotation struct {
	legalName string
	vatID     string
	street    string
	postal    string
	city      string
	country   string
	emails    []string
	phones    []string
	fax       string
}

func (a annotation) populated() int {
	count := 0
	for _, v := range []string{a.legalName, a.vatID, a.street, a.postal, a.city, a.country, a.fax} {
		if v != "" {
			count++
		}
	}
	count += len(a.emails) + len(a.phones)
	return count
}

// Structured parses annotations out of the raw page HTML and returns
// candidates for the best annotation found.
func Structured(pageHTML []byte) []Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var annotations []annotation
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		annotations = append(annotations, parseJSONLD([]byte(sel.Text()))...)
	})
	if micro, ok := parseMicrodata(doc); ok {
		annotations = append(annotations, micro)
	}
	if len(annotations) == 0 {
		return nil
	}

	best := annotations[0]
	for _, a := range annotations[1:] {
		if a.populated() > best.populated() {
			best = a
		}
	}
	return best.candidates()
}

func (a annotation) candidates() []Candidate {
	var out []Candidate
	add := func(field Field, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, Candidate{
				Field:      field,
				Value:      value,
				Source:     store.SourceStructured,
				Confidence: ConfidenceStructured,
			})
		}
	}
	add(FieldLegalName, a.legalName)
	add(FieldVatID, a.vatID)
	add(FieldStreet, a.street)
	add(FieldPostalCode, a.postal)
	add(FieldCity, a.city)
	add(FieldCountry, a.country)
	add(FieldFax, a.fax)
	for _, email := range a.emails {
		add(FieldEmail, email)
	}
	for _, phone := range a.phones {
		add(FieldPhone, phone)
	}
	return out
}

// parseJSONLD tolerates single objects, arrays, and @graph containers.
func parseJSONLD(raw []byte) []annotation {
	var root interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&root); err != nil {
		return nil
	}
	var annotations []annotation
	walkJSONLD(root, &annotations)
	return annotations
}

func walkJSONLD(node interface{}, out *[]annotation) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			walkJSONLD(item, out)
		}
	case map[string]interface{}:
		if graph, ok := v["@graph"]; ok {
			walkJSONLD(graph, out)
		}
		if isOrganizationType(v["@type"]) {
			*out = append(*out, annotationFromObject(v))
		}
	}
}

func isOrganizationType(typeValue interface{}) bool {
	switch t := typeValue.(type) {
	case string:
		_, ok := organizationTypes[t]
		return ok
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				if _, hit := organizationTypes[s]; hit {
					return true
				}
			}
		}
	}
	return false
}

func annotationFromObject(obj map[string]interface{}) annotation {
	a := annotation{}
	a.legalName = jsonString(obj["legalName"])
	if a.legalName == "" {
		a.legalName = jsonString(obj["name"])
	}
	a.vatID = jsonString(obj["vatID"])
	if a.vatID == "" {
		a.vatID = jsonString(obj["taxID"])
	}
	a.fax = jsonString(obj["faxNumber"])
	if email := jsonString(obj["email"]); email != "" {
		a.emails = append(a.emails, email)
	}
	if phone := jsonString(obj["telephone"]); phone != "" {
		a.phones = append(a.phones, phone)
	}

	if address, ok := obj["address"].(map[string]interface{}); ok {
		a.street = jsonString(address["streetAddress"])
		a.postal = jsonString(address["postalCode"])
		a.city = jsonString(address["addressLocality"])
		a.country = jsonString(address["addressCountry"])
	}

	contactPoints, _ := obj["contactPoint"].([]interface{})
	if single, ok := obj["contactPoint"].(map[string]interface{}); ok {
		contactPoints = []interface{}{single}
	}
	for _, cp := range contactPoints {
		point, ok := cp.(map[string]interface{})
		if !ok {
			continue
		}
		if email := jsonString(point["email"]); email != "" {
			a.emails = append(a.emails, email)
		}
		if phone := jsonString(point["telephone"]); phone != "" {
			a.phones = append(a.phones, phone)
		}
	}
	return a
}

func jsonString(value interface{}) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// parseMicrodata scans itemprop attributes under an Organization itemtype.
func parseMicrodata(doc *goquery.Document) (annotation, bool) {
	scope := doc.Find(`[itemtype*="schema.org/Organization"], [itemtype*="schema.org/Corporation"], [itemtype*="schema.org/LocalBusiness"]`).First()
	if scope.Length() == 0 {
		return annotation{}, false
	}
	prop := func(name string) string {
		sel := scope.Find(`[itemprop="` + name + `"]`).First()
		if sel.Length() == 0 {
			return ""
		}
		if content, ok := sel.Attr("content"); ok {
			return strings.TrimSpace(content)
		}
		return strings.TrimSpace(sel.Text())
	}
	a := annotation{
		legalName: prop("legalName"),
		vatID:     prop("vatID"),
		street:    prop("streetAddress"),
		postal:    prop("postalCode"),
		city:      prop("addressLocality"),
		country:   prop("addressCountry"),
		fax:       prop("faxNumber"),
	}
	if a.legalName == "" {
		a.legalName = prop("name")
	}
	if email := prop("email"); email != "" {
		a.emails = append(a.emails, email)
	}
	if phone := prop("telephone"); phone != "" {
		a.phones = append(a.phones, phone)
	}
	return a, a.populated() > 0
}
