package store

import (
	"time"
)

// Queue status lifecycle. Initial PENDING; PROCESSING only under lease;
// every other value is terminal until an explicit reset.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusProcessing       Status = "PROCESSING"
	StatusCompleted        Status = "COMPLETED"
	StatusFailedDNS        Status = "FAILED_DNS"
	StatusBlockedRobots    Status = "BLOCKED_ROBOTS"
	StatusBlacklisted      Status = "BLACKLISTED"
	StatusParked           Status = "PARKED"
	StatusFailedHTTP4xx    Status = "FAILED_HTTP_4XX"
	StatusFailedHTTP5xx    Status = "FAILED_HTTP_5XX"
	StatusFailedConnection Status = "FAILED_CONNECTION"
	StatusFailedExtraction Status = "FAILED_EXTRACTION"
)

// TerminalStatuses enumerates every status Reset may transition back to
// PENDING. COMPLETED is terminal too but only re-crawled on explicit request.
var TerminalStatuses = []Status{
	StatusCompleted,
	StatusFailedDNS,
	StatusBlockedRobots,
	StatusBlacklisted,
	StatusParked,
	StatusFailedHTTP4xx,
	StatusFailedHTTP5xx,
	StatusFailedConnection,
	StatusFailedExtraction,
}

func (s Status) Terminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// QueueEntry is the durable row for one known domain. Exactly one row per
// domain; mutated only by the orchestrator under lease.
type QueueEntry struct {
	Domain         string
	Source         string
	Status         Status
	Attempts       int
	LeaseExpiresAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StringField is a typed option carrying a scalar value with its extraction
// provenance. An empty Value means the field is absent.
type StringField struct {
	Value      string
	Source     string
	Confidence float64
}

func (f StringField) Present() bool {
	return f.Value != ""
}

// ListField carries an ordered, deduplicated sequence with shared provenance.
type ListField struct {
	Values     []string
	Source     string
	Confidence float64
}

func (f ListField) Present() bool {
	return len(f.Values) > 0
}

// Extraction pass provenance tags, in descending merge priority.
const (
	SourceStructured     = "structured"
	SourcePattern        = "pattern"
	SourceGeneric        = "generic"
	SourceMLExperimental = "ml-experimental"
)

// CrawlResult is the validated legal-entity record for one domain. At most
// one row per domain; overwritten only on explicit re-crawl.
type CrawlResult struct {
	Domain         string
	LegalSourceURL string
	RunID          string
	CrawledAt      time.Time

	LegalName          StringField
	LegalForm          StringField
	RegistrationNumber StringField
	RegisterCourt      StringField
	RegisterType       StringField
	VatID              StringField

	Street     StringField
	PostalCode StringField
	City       StringField
	Country    StringField

	CEO       StringField
	Directors ListField

	Emails ListField
	Phones ListField
	Fax    StringField

	RobotsAllowed bool
	RobotsReason  string

	Confidence float64
}

// Stats is the per-status queue census returned by SnapshotStats.
type Stats map[Status]int

func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
