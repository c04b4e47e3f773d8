package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/legalscout/internal/extract"
	"github.com/corvid-labs/legalscout/internal/store"
)

func newRegistry() *extract.Registry {
	return extract.NewRegistry(0.6)
}

func valueOf(t *testing.T, candidates []extract.Candidate, field extract.Field) string {
	t.Helper()
	c, ok := candidateByField(candidates, field)
	require.True(t, ok, "missing field %s", field)
	return c.Value
}

func TestDetectByCcTLD(t *testing.T) {
	r := newRegistry()
	assert.Equal(t, "de", r.Detect("example.de", nil).Code)
	assert.Equal(t, "fr", r.Detect("example.fr", nil).Code)
	assert.Equal(t, "uk", r.Detect("example.co.uk", nil).Code)
	assert.Equal(t, "at", r.Detect("example.at", nil).Code)
}

func TestDetectByContentMarkers(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Impressum",
		"HRB 99887 Amtsgericht Hamburg",
		"USt-IdNr: DE123456788",
	}
	assert.Equal(t, "de", r.Detect("example.com", lines).Code)

	frLines := []string{"Mentions légales", "RCS Paris 123 456 789", "SIRET 12345678900011"}
	assert.Equal(t, "fr", r.Detect("example.com", frLines).Code)
}

func TestDetectFallsBackToGeneric(t *testing.T) {
	r := newRegistry()
	pack := r.Detect("example.com", []string{"nothing jurisdiction-specific here"})
	assert.Equal(t, r.Generic(), pack)
}

func TestExtractAnchorAndExpandGermanImpressum(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Impressum",
		"Beispiel GmbH",
		"Musterweg 7",
		"80333 München",
		"Geschäftsführer: Max Mustermann",
		"HRB 12345 Amtsgericht München",
	}
	pack := r.Detect("beispiel.de", lines)
	require.Equal(t, "de", pack.Code)

	candidates := r.Extract(pack, extract.Context{
		Domain:      "beispiel.de",
		CountryCode: "de",
		Lines:       lines,
	})

	assert.Equal(t, "Beispiel GmbH", valueOf(t, candidates, extract.FieldLegalName))
	assert.Equal(t, "GmbH", valueOf(t, candidates, extract.FieldLegalForm))
	assert.Equal(t, "Musterweg 7", valueOf(t, candidates, extract.FieldStreet))
	assert.Equal(t, "80333", valueOf(t, candidates, extract.FieldPostalCode))
	assert.Equal(t, "München", valueOf(t, candidates, extract.FieldCity))
	assert.Equal(t, "Germany", valueOf(t, candidates, extract.FieldCountry))
	assert.Equal(t, "HRB 12345", valueOf(t, candidates, extract.FieldRegistrationNumber))
	assert.Equal(t, "Amtsgericht München", valueOf(t, candidates, extract.FieldRegisterCourt))
	assert.Equal(t, "Max Mustermann", valueOf(t, candidates, extract.FieldCEO))

	name, _ := candidateByField(candidates, extract.FieldLegalName)
	assert.Equal(t, store.SourcePattern, name.Source)
	assert.InDelta(t, 0.8, name.Confidence, 0.001)
}

func TestExtractRejectsNavigationGarbageAboveAnchor(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Kontakt · Menü · Warenkorb (0)",
		"80333 München",
	}
	pack := r.Detect("shop.de", lines)
	candidates := r.Extract(pack, extract.Context{Domain: "shop.de", Lines: lines})

	_, found := candidateByField(candidates, extract.FieldLegalName)
	assert.False(t, found, "denylisted navigation line must not become a legal name")
}

func TestExtractFuzzyDomainMatchWithoutLegalForm(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Musterfirma",
		"Musterweg 1",
		"10115 Berlin",
	}
	pack := r.Detect("musterfirma.de", lines)
	candidates := r.Extract(pack, extract.Context{Domain: "musterfirma.de", Lines: lines})
	assert.Equal(t, "Musterfirma", valueOf(t, candidates, extract.FieldLegalName))
}

func TestExtractUKDirectorAndCompaniesHouse(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Example Trading Ltd",
		"1 High Street",
		"London, EC1A 1BB",
		"Registered in England, Company No. 01234567",
		"Director: Jane Smith",
	}
	pack := r.Detect("example.co.uk", lines)
	require.Equal(t, "uk", pack.Code)

	candidates := r.Extract(pack, extract.Context{Domain: "example.co.uk", Lines: lines})
	assert.Equal(t, "EC1A 1BB", valueOf(t, candidates, extract.FieldPostalCode))
	assert.Equal(t, "London", valueOf(t, candidates, extract.FieldCity))
	assert.Equal(t, "01234567", valueOf(t, candidates, extract.FieldRegistrationNumber))
	assert.Equal(t, "Jane Smith", valueOf(t, candidates, extract.FieldCEO))
	assert.Equal(t, "Example Trading Ltd", valueOf(t, candidates, extract.FieldLegalName))
}

func TestExtractContactChannels(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Beispiel GmbH",
		"Musterweg 7",
		"80333 München",
		"Telefon: +49 89 123456",
		"Telefax: +49 89 123457",
		"E-Mail: info@beispiel.de",
	}
	pack := r.Detect("beispiel.de", lines)
	candidates := r.Extract(pack, extract.Context{Domain: "beispiel.de", Lines: lines})

	assert.Equal(t, "+49 89 123456", valueOf(t, candidates, extract.FieldPhone))
	assert.Equal(t, "+49 89 123457", valueOf(t, candidates, extract.FieldFax))
	assert.Equal(t, "info@beispiel.de", valueOf(t, candidates, extract.FieldEmail))
}

func TestExtractVatID(t *testing.T) {
	r := newRegistry()
	lines := []string{"USt-IdNr.: DE 123456788"}
	pack := r.Detect("beispiel.de", lines)
	candidates := r.Extract(pack, extract.Context{Domain: "beispiel.de", Lines: lines})
	assert.Equal(t, "DE123456788", valueOf(t, candidates, extract.FieldVatID))
}

func TestExtractMultipleDirectors(t *testing.T) {
	r := newRegistry()
	lines := []string{
		"Geschäftsführer: Max Mustermann, Erika Musterfrau",
	}
	pack := r.Detect("beispiel.de", lines)
	candidates := r.Extract(pack, extract.Context{Domain: "beispiel.de", Lines: lines})

	var directors []string
	for _, c := range candidates {
		if c.Field == extract.FieldDirector {
			directors = append(directors, c.Value)
		}
	}
	assert.Equal(t, []string{"Max Mustermann", "Erika Musterfrau"}, directors)
}

func TestRegisterPackExtensibility(t *testing.T) {
	r := newRegistry()
	custom := &extract.Pack{
		Code:        "nl",
		CountryName: "Netherlands",
		LegalForms:  []string{"B.V.", "N.V."},
	}
	r.Register(custom)
	assert.Equal(t, "nl", r.Detect("example.nl", nil).Code)
}

func TestFuzzyRatio(t *testing.T) {
	assert.InDelta(t, 1.0, extract.FuzzyRatio("beispiel", "beispiel"), 0.001)
	assert.Greater(t, extract.FuzzyRatio("beispiel", "beispie"), 0.8)
	assert.Less(t, extract.FuzzyRatio("beispiel", "zzz"), 0.3)
	assert.Equal(t, 0.0, extract.FuzzyRatio("", "beispiel"))
}
