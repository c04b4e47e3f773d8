package validate

import (
	"github.com/corvid-labs/legalscout/internal/extract"
)

// Context scopes validation to the page and jurisdiction under extraction.
type Context struct {
	Pack        *extract.Pack
	Domain      string
	DomainLabel string
	// OnLegalPage relaxes the personal-email exclusion: a named address on
	// an Impressum is disclosure, not scraping of private data.
	OnLegalPage bool
}

// RejectReason is observability-only; failing fields are dropped, never
// coerced, and the reason never drives control flow.
type RejectReason string

const (
	RejectTooShort       RejectReason = "too short"
	RejectTooLong        RejectReason = "too long"
	RejectDigitRun       RejectReason = "digit run"
	RejectDenylist       RejectReason = "denylist"
	RejectNoAnchor       RejectReason = "no legal form or domain match"
	RejectUnknownForm    RejectReason = "unknown legal form"
	RejectPatternMiss    RejectReason = "pattern mismatch"
	RejectChecksum       RejectReason = "checksum failed"
	RejectNoDigit        RejectReason = "no digit"
	RejectNotAName       RejectReason = "not a person name"
	RejectBadEmail       RejectReason = "invalid email"
	RejectNoMX           RejectReason = "no MX records"
	RejectPersonalEmail  RejectReason = "personal address"
	RejectBadPhone       RejectReason = "invalid phone"
	RejectNoRegisterAuth RejectReason = "register number without authority"
)
