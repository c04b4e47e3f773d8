package extract

import (
	"strings"

	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/pkg/urlutil"
)

// Registry dispatches a page to its jurisdiction's pattern pack. Detection
// order: ccTLD suffix first, content markers second, generic fallback.
// Caller-supplied packs extend the registry without touching dispatch.
type Registry struct {
	byCode     map[string]*Pack
	fuzzyRatio float64
}

func NewRegistry(fuzzyRatio float64) *Registry {
	r := &Registry{
		byCode:     make(map[string]*Pack, len(builtinPacks)),
		fuzzyRatio: fuzzyRatio,
	}
	for _, pack := range builtinPacks {
		r.byCode[pack.Code] = pack
	}
	// common aliases for the UK suffix zoo
	r.byCode["gb"] = ukPack
	return r
}

// Register adds or replaces a pack, keyed by its code.
func (r *Registry) Register(pack *Pack) {
	r.byCode[pack.Code] = pack
}

// Detect picks the pack for a domain: ccTLD match wins; otherwise the pack
// whose content markers hit the isolated text most often; otherwise generic.
func (r *Registry) Detect(domain string, lines []string) *Pack {
	if pack, ok := r.byCode[urlutil.CcTLD(domain)]; ok {
		return pack
	}

	text := strings.Join(lines, "\n")
	var best *Pack
	bestHits := 0
	for _, pack := range builtinPacks {
		hits := 0
		for _, marker := range pack.contentMarkers {
			hits += strings.Count(text, marker)
		}
		if hits > bestHits {
			best = pack
			bestHits = hits
		}
	}
	if best != nil {
		return best
	}
	return genericPack
}

// Generic returns the fallback pack, which always runs after the
// country-specific one.
func (r *Registry) Generic() *Pack {
	return genericPack
}

// Extract runs the pack's pattern set over the isolated text and returns
// field candidates. Country packs tag candidates as "pattern"; the generic
// pack tags them as "generic" with a lower base confidence.
func (r *Registry) Extract(pack *Pack, ctx Context) []Candidate {
	source := store.SourcePattern
	confidence := ConfidencePattern
	if pack == genericPack {
		source = store.SourceGeneric
		confidence = ConfidenceGeneric
	}

	var out []Candidate
	add := func(field Field, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, Candidate{Field: field, Value: value, Source: source, Confidence: confidence})
		}
	}

	domainLabel := urlutil.RegistrableLabel(ctx.Domain)

	anchors := pack.FindAnchors(ctx.Lines)
	if len(anchors) > 0 {
		anchor := anchors[0]
		add(FieldPostalCode, anchor.PostalCode)
		add(FieldCity, anchor.City)
		if pack.CountryName != "" {
			add(FieldCountry, pack.CountryName)
		}

		street, streetIdx := expandStreet(ctx.Lines, anchor)
		add(FieldStreet, street)

		nameBoundary := anchor.LineIndex
		if streetIdx >= 0 {
			nameBoundary = streetIdx
		}
		name := pack.expandLegalName(ctx.Lines, nameBoundary, domainLabel, r.fuzzyRatio)
		add(FieldLegalName, name)
		if form := pack.legalFormOf(name); form != "" {
			add(FieldLegalForm, form)
		}
	}

	// a legal-form token anywhere in the text still names the form even
	// when no anchor line was found
	if len(anchors) == 0 {
		for _, line := range ctx.Lines {
			if form := pack.legalFormOf(line); form != "" {
				add(FieldLegalForm, form)
				break
			}
		}
	}

	out = append(out, pack.extractRegistration(ctx.Lines, source, confidence)...)
	out = append(out, extractContacts(ctx.Lines, source, confidence)...)
	out = append(out, extractPeople(ctx.Lines, pack.contactLabels, source, confidence)...)
	return out
}

// extractRegistration pulls the register number, register court and VAT ID
// using the pack's jurisdiction patterns.
func (p *Pack) extractRegistration(lines []string, source string, confidence float64) []Candidate {
	var out []Candidate
	add := func(field Field, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, Candidate{Field: field, Value: value, Source: source, Confidence: confidence})
		}
	}
	var haveNumber, haveCourt, haveVat bool
	for _, line := range lines {
		if !haveNumber && p.registerPattern != nil {
			if m := p.registerPattern.FindStringSubmatch(line); m != nil {
				add(FieldRegistrationNumber, m[1])
				if p.registerType != "" {
					add(FieldRegisterType, p.registerType)
				}
				haveNumber = true
			}
		}
		if !haveCourt && p.registerCourtPattern != nil {
			if m := p.registerCourtPattern.FindStringSubmatch(line); m != nil {
				add(FieldRegisterCourt, strings.TrimSpace(m[1]))
				haveCourt = true
			}
		}
		if !haveVat && p.vatPattern != nil {
			if m := p.vatPattern.FindStringSubmatch(line); m != nil {
				add(FieldVatID, strings.ReplaceAll(m[1], " ", ""))
				haveVat = true
			}
		}
	}
	return out
}
