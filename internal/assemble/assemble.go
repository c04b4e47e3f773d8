/*
Responsibilities
- Merge extraction passes with priority rules: structured beats
  country-specific beats generic; ties go to the higher confidence
- Validate every winning candidate; failing fields drop out
- Damp confidence for archive-served pages and compute the record mean

The assembler produces the immutable CrawlResult; nothing downstream
mutates it.
*/
package assemble

import (
	"time"

	"github.com/corvid-labs/legalscout/internal/extract"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/internal/validate"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

const archiveMultiplier = 0.9

var sourcePriority = map[string]int{
	store.SourceStructured:     3,
	store.SourcePattern:        2,
	store.SourceGeneric:        1,
	store.SourceMLExperimental: 0,
}

// Meta carries the per-crawl identification the assembler stamps onto the
// record.
type Meta struct {
	Domain         string
	LegalSourceURL string
	RunID          string
	CrawledAt      time.Time
	FromArchive    bool
	RobotsAllowed  bool
	RobotsReason   string
}

type Assembler struct {
	sink      legallog.Sink
	validator *validate.Validator
}

func NewAssembler(sink legallog.Sink, validator *validate.Validator) *Assembler {
	return &Assembler{
		sink:      sink,
		validator: validator,
	}
}

// Assemble merges, validates and scores the candidate set. ok=false means
// no validated legal name survived and the domain must be marked
// FAILED_EXTRACTION.
func (a *Assembler) Assemble(
	candidates []extract.Candidate,
	vctx validate.Context,
	meta Meta,
) (store.CrawlResult, bool) {
	winners := map[extract.Field]extract.Candidate{}
	var directors []extract.Candidate
	var emails, phones []extract.Candidate

	for _, c := range candidates {
		validated, ok := a.validator.Validate(c, vctx)
		if !ok {
			continue
		}
		if meta.FromArchive {
			validated.Confidence *= archiveMultiplier
		}
		switch validated.Field {
		case extract.FieldDirector:
			directors = append(directors, validated)
		case extract.FieldEmail:
			emails = append(emails, validated)
		case extract.FieldPhone:
			phones = append(phones, validated)
		default:
			if current, exists := winners[validated.Field]; !exists || beats(validated, current) {
				winners[validated.Field] = validated
			}
		}
	}

	// a register number with no issuing authority in sight is noise
	if _, hasCourt := winners[extract.FieldRegisterCourt]; !hasCourt {
		if _, hasNumber := winners[extract.FieldRegistrationNumber]; hasNumber {
			a.sink.RecordError(time.Now(), "assemble", "Assembler.Assemble",
				failure.CauseValidationRejected,
				"registration number without register authority",
				[]legallog.Attribute{
					legallog.NewAttr(legallog.AttrDomain, meta.Domain),
				})
			delete(winners, extract.FieldRegistrationNumber)
			delete(winners, extract.FieldRegisterType)
		}
	}

	// a legal name like "Example GmbH" names the form even when no pass
	// emitted one explicitly; derive it with the name's provenance
	if _, hasForm := winners[extract.FieldLegalForm]; !hasForm && vctx.Pack != nil {
		if name, hasName := winners[extract.FieldLegalName]; hasName {
			if form := vctx.Pack.LegalFormOf(name.Value); form != "" {
				winners[extract.FieldLegalForm] = extract.Candidate{
					Field:      extract.FieldLegalForm,
					Value:      form,
					Source:     name.Source,
					Confidence: name.Confidence,
				}
			}
		}
	}

	result := store.CrawlResult{
		Domain:         meta.Domain,
		LegalSourceURL: meta.LegalSourceURL,
		RunID:          meta.RunID,
		CrawledAt:      meta.CrawledAt,
		RobotsAllowed:  meta.RobotsAllowed,
		RobotsReason:   meta.RobotsReason,

		LegalName:          toStringField(winners[extract.FieldLegalName]),
		LegalForm:          toStringField(winners[extract.FieldLegalForm]),
		RegistrationNumber: toStringField(winners[extract.FieldRegistrationNumber]),
		RegisterCourt:      toStringField(winners[extract.FieldRegisterCourt]),
		RegisterType:       toStringField(winners[extract.FieldRegisterType]),
		VatID:              toStringField(winners[extract.FieldVatID]),
		Street:             toStringField(winners[extract.FieldStreet]),
		PostalCode:         toStringField(winners[extract.FieldPostalCode]),
		City:               toStringField(winners[extract.FieldCity]),
		Country:            toStringField(winners[extract.FieldCountry]),
		CEO:                toStringField(winners[extract.FieldCEO]),
		Fax:                toStringField(winners[extract.FieldFax]),

		Directors: toListField(directors),
		Emails:    toListField(emails),
		Phones:    toListField(phones),
	}
	result.Confidence = overallConfidence(result)

	return result, result.LegalName.Present()
}

// beats implements the merge rule: source priority first, confidence
// second. Earlier candidates win ties, which preserves configured source
// order.
func beats(challenger, current extract.Candidate) bool {
	cp, op := sourcePriority[challenger.Source], sourcePriority[current.Source]
	if cp != op {
		return cp > op
	}
	return challenger.Confidence > current.Confidence
}

func toStringField(c extract.Candidate) store.StringField {
	if c.Value == "" {
		return store.StringField{}
	}
	return store.StringField{
		Value:      c.Value,
		Source:     c.Source,
		Confidence: c.Confidence,
	}
}

// toListField keeps document order, deduplicates, and carries the best
// source/confidence of the surviving entries.
func toListField(candidates []extract.Candidate) store.ListField {
	if len(candidates) == 0 {
		return store.ListField{}
	}
	seen := map[string]struct{}{}
	field := store.ListField{}
	for _, c := range candidates {
		if _, dup := seen[c.Value]; dup {
			continue
		}
		seen[c.Value] = struct{}{}
		field.Values = append(field.Values, c.Value)
		if field.Source == "" || sourcePriority[c.Source] > sourcePriority[field.Source] {
			field.Source = c.Source
			field.Confidence = c.Confidence
		}
	}
	return field
}

// overallConfidence is the arithmetic mean of the present fields.
func overallConfidence(r store.CrawlResult) float64 {
	var sum float64
	var count int
	for _, f := range []store.StringField{
		r.LegalName, r.LegalForm, r.RegistrationNumber, r.RegisterCourt,
		r.RegisterType, r.VatID, r.Street, r.PostalCode, r.City, r.Country,
		r.CEO, r.Fax,
	} {
		if f.Present() {
			sum += f.Confidence
			count++
		}
	}
	for _, f := range []store.ListField{r.Directors, r.Emails, r.Phones} {
		if f.Present() {
			sum += f.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
