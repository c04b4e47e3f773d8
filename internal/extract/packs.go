package extract

import "regexp"

/*
Country pattern packs. Each jurisdiction family contributes legal forms, a
register format, a postal anchor, and the labels its law uses for
authorized representatives. The registry dispatches by ccTLD first, then
content markers; the generic pack is the fallback and is user-extensible.
*/

// AnchorMatch is the parse of one postal anchor line.
type AnchorMatch struct {
	PostalCode string
	City       string
	LineIndex  int
}

type Pack struct {
	Code        string
	CountryName string
	LegalForms  []string

	// postalLine parses "10115 Berlin"-style anchor lines.
	postalLine func(line string) (postal, city string, ok bool)

	registerPattern      *regexp.Regexp
	registerCourtPattern *regexp.Regexp
	registerType         string
	vatPattern           *regexp.Regexp
	contactLabels        []string

	// contentMarkers identify the jurisdiction from the isolated text when
	// the ccTLD is ambiguous (.com, .eu).
	contentMarkers []string
}

var (
	dePostalLine = regexp.MustCompile(`^(?:D[\s-])?(\d{5})\s+(\p{L}[\p{L}\s.\-/()]*)$`)
	atPostalLine = regexp.MustCompile(`^(?:A[\s-])?(\d{4})\s+(\p{L}[\p{L}\s.\-/()]*)$`)
	chPostalLine = regexp.MustCompile(`^(?:CH[\s-])?(\d{4})\s+(\p{L}[\p{L}\s.\-/()]*)$`)
	frPostalLine = regexp.MustCompile(`^(?:F[\s-])?(\d{5})\s+(\p{L}[\p{L}\s.\-/()']*)$`)
	ukPostalLine = regexp.MustCompile(`^(?:(.*?)[,\s]+)?([A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2})$`)
)

func digitsThenCity(pattern *regexp.Regexp) func(string) (string, string, bool) {
	return func(line string) (string, string, bool) {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		return m[1], trimCity(m[2]), true
	}
}

// ukPostal puts the city before the outward code, on the same line or the
// one above; the caller handles the line-above case.
func ukPostal(line string) (string, string, bool) {
	m := ukPostalLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[2], trimCity(m[1]), true
}

var germanyPack = &Pack{
	Code:        "de",
	CountryName: "Germany",
	LegalForms: []string{
		"GmbH & Co. KG", "GmbH & Co KG", "GmbH", "gGmbH", "AG", "KGaA", "KG",
		"OHG", "UG (haftungsbeschränkt)", "UG", "e.K.", "eG", "e.V.", "SE",
	},
	postalLine:           digitsThenCity(dePostalLine),
	registerPattern:      regexp.MustCompile(`\b(HR[AB]\s?\d{1,6}(?:\s?B)?)\b`),
	registerCourtPattern: regexp.MustCompile(`\b(Amtsgericht\s+\p{L}[\p{L}\s.\-]*?)(?:[,.;]|$)`),
	registerType:         "Handelsregister",
	vatPattern:           regexp.MustCompile(`\b(DE\s?\d{9})\b`),
	contactLabels:        []string{"Geschäftsführer", "Geschäftsführerin", "Geschäftsführung", "Vorstand", "Inhaber"},
	contentMarkers:       []string{"Amtsgericht", "Handelsregister", "Impressum", "USt-IdNr"},
}

var austriaPack = &Pack{
	Code:        "at",
	CountryName: "Austria",
	LegalForms: []string{
		"GmbH & Co KG", "GmbH", "AG", "KG", "OG", "e.U.", "Gen",
	},
	postalLine:           digitsThenCity(atPostalLine),
	registerPattern:      regexp.MustCompile(`\b(FN\s?\d{1,6}\s?[a-z])\b`),
	registerCourtPattern: regexp.MustCompile(`\b((?:Handelsgericht|Landesgericht)\s+\p{L}[\p{L}\s.\-]*?)(?:[,.;]|$)`),
	registerType:         "Firmenbuch",
	vatPattern:           regexp.MustCompile(`\b(ATU\s?\d{8})\b`),
	contactLabels:        []string{"Geschäftsführer", "Geschäftsführerin", "Vorstand"},
	contentMarkers:       []string{"Firmenbuch", "Landesgericht", "Impressum"},
}

var switzerlandPack = &Pack{
	Code:        "ch",
	CountryName: "Switzerland",
	LegalForms: []string{
		"GmbH", "AG", "S.A.", "SA", "Sàrl", "SARL", "KG",
	},
	postalLine:           digitsThenCity(chPostalLine),
	registerPattern:      regexp.MustCompile(`\b(CHE[\s-]?\d{3}\.?\d{3}\.?\d{3})\b`),
	registerCourtPattern: regexp.MustCompile(`\b(Handelsregisteramt\s+\p{L}[\p{L}\s.\-]*?)(?:[,.;]|$)`),
	registerType:         "Handelsregister",
	vatPattern:           regexp.MustCompile(`\b(CHE[\s-]?\d{3}\.?\d{3}\.?\d{3}\s?(?:MWST|TVA|IVA)?)\b`),
	contactLabels:        []string{"Geschäftsführer", "Verwaltungsrat", "Inhaber"},
	contentMarkers:       []string{"Handelsregisteramt", "MWST", "Impressum"},
}

var ukPack = &Pack{
	Code:        "uk",
	CountryName: "United Kingdom",
	LegalForms: []string{
		"Ltd.", "Ltd", "Limited", "PLC", "LLP", "CIC",
	},
	postalLine:           ukPostal,
	registerPattern:      regexp.MustCompile(`\b(?:[Cc]ompany\s+(?:[Nn]o\.?|[Nn]umber)[:\s]*)?(\d{8})\b`),
	registerCourtPattern: regexp.MustCompile(`\b(Companies\s+House)\b`),
	registerType:         "Companies House",
	vatPattern:           regexp.MustCompile(`\b(GB\s?\d{9}(?:\s?\d{3})?)\b`),
	contactLabels:        []string{"Director", "Directors", "Managing Director"},
	contentMarkers:       []string{"Companies House", "Registered in England", "VAT Registration"},
}

var francePack = &Pack{
	Code:        "fr",
	CountryName: "France",
	LegalForms: []string{
		"SARL", "SA", "SAS", "SASU", "EURL", "SCI", "SNC",
	},
	postalLine:           digitsThenCity(frPostalLine),
	registerPattern:      regexp.MustCompile(`\b(?:RCS\s+\p{L}+\s+)?(\d{3}\s?\d{3}\s?\d{3}(?:\s?\d{5})?)\b`),
	registerCourtPattern: regexp.MustCompile(`\b(RCS\s+\p{L}[\p{L}\s\-]*?)(?:\s+\d|[,.;]|$)`),
	registerType:         "RCS",
	vatPattern:           regexp.MustCompile(`\b(FR\s?[0-9A-Z]{2}\s?\d{9})\b`),
	contactLabels:        []string{"Gérant", "Gérante", "Président", "Présidente", "Directeur de la publication"},
	contentMarkers:       []string{"RCS", "SIRET", "SIREN", "Mentions légales"},
}

var italyPack = &Pack{
	Code:        "it",
	CountryName: "Italy",
	LegalForms: []string{
		"S.r.l.", "S.p.A.", "S.a.s.", "S.n.c.", "Srl", "SpA",
	},
	postalLine:           digitsThenCity(frPostalLine),
	registerPattern:      regexp.MustCompile(`\b(?:REA\s+)?([A-Z]{2}[\s-]?\d{6,7})\b`),
	registerCourtPattern: regexp.MustCompile(`\b(Registro\s+(?:delle\s+)?Imprese(?:\s+di\s+\p{L}+)?)\b`),
	registerType:         "Registro Imprese",
	vatPattern:           regexp.MustCompile(`\b(?:IT\s?)?(\d{11})\b`),
	contactLabels:        []string{"Amministratore", "Amministratore Unico", "Amministratore Delegato"},
	contentMarkers:       []string{"Registro Imprese", "Partita IVA", "Note legali"},
}

var spainPack = &Pack{
	Code:        "es",
	CountryName: "Spain",
	LegalForms: []string{
		"S.L.", "S.A.", "S.L.L.", "S.L.U.", "SL", "SA",
	},
	postalLine:           digitsThenCity(frPostalLine),
	registerPattern:      regexp.MustCompile(`\b(?:[Tt]omo|[Hh]oja|[Ff]olio)\s+([A-Z]?[\s-]?\d{1,7})\b`),
	registerCourtPattern: regexp.MustCompile(`\b(Registro\s+Mercantil(?:\s+de\s+\p{L}+)?)\b`),
	registerType:         "Registro Mercantil",
	vatPattern:           regexp.MustCompile(`\b(?:ES\s?)?([A-Z]\d{8}|[A-Z]\d{7}[A-Z])\b`),
	contactLabels:        []string{"Administrador", "Administradora", "Administrador Único"},
	contentMarkers:       []string{"Registro Mercantil", "Aviso legal", "CIF", "NIF"},
}

// genericPostalLine accepts 4-6 digit codes, the broadest shape that still
// anchors a line.
var genericPostalLine = regexp.MustCompile(`^(?:[A-Z]{1,2}[\s-])?(\d{4,6})\s+(\p{L}[\p{L}\s.\-/()']*)$`)

var genericPack = &Pack{
	Code:        "generic",
	CountryName: "",
	LegalForms: []string{
		"GmbH", "AG", "Ltd", "Limited", "LLC", "Inc.", "Inc", "Corp.",
		"SARL", "SA", "SAS", "S.r.l.", "S.p.A.", "S.L.", "B.V.", "N.V.",
	},
	postalLine:    digitsThenCity(genericPostalLine),
	contactLabels: []string{"CEO", "Director", "Managing Director", "Founder"},
}

var builtinPacks = []*Pack{
	germanyPack, austriaPack, switzerlandPack,
	ukPack, francePack, italyPack, spainPack,
}
