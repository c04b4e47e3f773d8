/*
Responsibilities
- Durable domain queue with atomic lease/transition semantics
- Result rows written once per successful lease
- Crash consistency: a dying process re-surfaces its leases after TTL

The store is the single source of truth for backpressure; workers never
buffer entries beyond the one they hold.
*/
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const listSeparator = ";"

type Store struct {
	db   *sql.DB
	sink legallog.Sink
	now  func() time.Time
}

func Open(dsn string, sink legallog.Sink) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseBackendUnavailable,
		}
	}
	// modernc/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY on concurrent lease transactions.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:   db,
		sink: sink,
		now:  time.Now,
	}, nil
}

// NewWithDB wires a Store around an existing database handle. Tests use
// this together with an in-memory DSN.
func NewWithDB(db *sql.DB, sink legallog.Sink, now func() time.Time) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, sink: sink, now: now}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseMigrationFailed}
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseMigrationFailed}
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseMigrationFailed}
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseMigrationFailed}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue inserts the domain as PENDING if absent; otherwise a no-op. The
// source of record is the first insert.
func (s *Store) Enqueue(ctx context.Context, domain, source string) error {
	now := s.now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (domain, source, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (domain) DO NOTHING`,
		domain, source, StatusPending, now, now,
	)
	if err != nil {
		return s.backendError("Enqueue", err)
	}
	return nil
}

// Lease atomically claims up to n entries that are PENDING or whose
// PROCESSING lease has expired, stamping a fresh lease and incrementing
// attempts. At most one active lease exists per domain.
func (s *Store) Lease(ctx context.Context, n int, ttl time.Duration) ([]QueueEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.backendError("Lease", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT domain FROM queue
		WHERE status = ?
		   OR (status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?)
		ORDER BY updated_at ASC
		LIMIT ?`,
		StatusPending, StatusProcessing, now.Unix(), n,
	)
	if err != nil {
		return nil, s.backendError("Lease", err)
	}
	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			_ = rows.Close()
			return nil, s.backendError("Lease", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Close(); err != nil {
		return nil, s.backendError("Lease", err)
	}

	expires := now.Add(ttl).Unix()
	var leased []QueueEntry
	for _, d := range domains {
		res, err := tx.ExecContext(ctx, `
			UPDATE queue
			SET status = ?, lease_expires_at = ?, attempts = attempts + 1, updated_at = ?
			WHERE domain = ?
			  AND (status = ? OR (status = ? AND lease_expires_at < ?))`,
			StatusProcessing, expires, now.Unix(), d,
			StatusPending, StatusProcessing, now.Unix(),
		)
		if err != nil {
			return nil, s.backendError("Lease", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			continue
		}
		entry, err := scanEntryTx(ctx, tx, d)
		if err != nil {
			return nil, s.backendError("Lease", err)
		}
		leased = append(leased, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.backendError("Lease", err)
	}
	return leased, nil
}

// Complete upserts the result and moves the row to a terminal status in one
// transaction. Fails when the row is not currently PROCESSING.
func (s *Store) Complete(ctx context.Context, domain string, result CrawlResult, terminal Status) error {
	if !terminal.Terminal() {
		return &StoreError{
			Message:   fmt.Sprintf("status %s is not terminal", terminal),
			Retryable: false,
			Cause:     ErrCauseBadTransition,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.backendError("Complete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.transitionFromProcessing(ctx, tx, domain, terminal); err != nil {
		return err
	}
	if err := upsertResult(ctx, tx, result); err != nil {
		return s.backendError("Complete", err)
	}
	if err := tx.Commit(); err != nil {
		return s.backendError("Complete", err)
	}

	s.sink.RecordEvent(s.now(), "store", "Store.Complete", "result persisted", []legallog.Attribute{
		legallog.NewAttr(legallog.AttrDomain, domain),
		legallog.NewAttr(legallog.AttrStatus, string(terminal)),
	})
	return nil
}

// Fail moves a PROCESSING row to a terminal status without writing a result.
func (s *Store) Fail(ctx context.Context, domain string, terminal Status) error {
	if !terminal.Terminal() {
		return &StoreError{
			Message:   fmt.Sprintf("status %s is not terminal", terminal),
			Retryable: false,
			Cause:     ErrCauseBadTransition,
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.backendError("Fail", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.transitionFromProcessing(ctx, tx, domain, terminal); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.backendError("Fail", err)
	}
	return nil
}

// Release returns a PROCESSING row to PENDING, preserving attempts. Used
// when a worker defers a host or unwinds on cancellation.
func (s *Store) Release(ctx context.Context, domain string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue
		SET status = ?, lease_expires_at = NULL, updated_at = ?
		WHERE domain = ? AND status = ?`,
		StatusPending, s.now().UTC().Unix(), domain, StatusProcessing,
	)
	if err != nil {
		return s.backendError("Release", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &StoreError{
			Message:   fmt.Sprintf("domain %s", domain),
			Retryable: false,
			Cause:     ErrCauseNotProcessing,
		}
	}
	return nil
}

// Reset bulk-transitions the given terminal statuses back to PENDING,
// preserving attempts. Returns the number of rows transitioned.
func (s *Store) Reset(ctx context.Context, statuses []Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]interface{}, 0, len(statuses)+2)
	args = append(args, StatusPending, s.now().UTC().Unix())
	for _, st := range statuses {
		if !st.Terminal() {
			return 0, &StoreError{
				Message:   fmt.Sprintf("status %s is not terminal", st),
				Retryable: false,
				Cause:     ErrCauseBadTransition,
			}
		}
		placeholders = append(placeholders, "?")
		args = append(args, st)
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE queue
		SET status = ?, lease_expires_at = NULL, updated_at = ?
		WHERE status IN (%s)`, strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return 0, s.backendError("Reset", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// SnapshotStats counts queue rows per status.
func (s *Store) SnapshotStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, s.backendError("SnapshotStats", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, s.backendError("SnapshotStats", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// Entry reads a single queue row.
func (s *Store) Entry(ctx context.Context, domain string) (QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, source, status, attempts, lease_expires_at, created_at, updated_at
		FROM queue WHERE domain = ?`, domain)
	entry, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return QueueEntry{}, &StoreError{
			Message:   fmt.Sprintf("domain %s", domain),
			Retryable: false,
			Cause:     ErrCauseUnknownDomain,
		}
	}
	if err != nil {
		return QueueEntry{}, s.backendError("Entry", err)
	}
	return entry, nil
}

// Result reads the stored CrawlResult for a domain.
func (s *Store) Result(ctx context.Context, domain string) (CrawlResult, error) {
	row := s.db.QueryRowContext(ctx, selectResultSQL+` WHERE domain = ?`, domain)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CrawlResult{}, &StoreError{
			Message:   fmt.Sprintf("domain %s", domain),
			Retryable: false,
			Cause:     ErrCauseUnknownDomain,
		}
	}
	if err != nil {
		return CrawlResult{}, s.backendError("Result", err)
	}
	return result, nil
}

// Results streams every stored result ordered by domain, so exports are a
// pure function of the store at a snapshot instant.
func (s *Store) Results(ctx context.Context) ([]CrawlResult, error) {
	rows, err := s.db.QueryContext(ctx, selectResultSQL+` ORDER BY domain ASC`)
	if err != nil {
		return nil, s.backendError("Results", err)
	}
	defer rows.Close()

	var results []CrawlResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, s.backendError("Results", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *Store) transitionFromProcessing(ctx context.Context, tx *sql.Tx, domain string, terminal Status) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE queue
		SET status = ?, lease_expires_at = NULL, updated_at = ?
		WHERE domain = ? AND status = ?`,
		terminal, s.now().UTC().Unix(), domain, StatusProcessing,
	)
	if err != nil {
		return s.backendError("transition", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &StoreError{
			Message:   fmt.Sprintf("domain %s", domain),
			Retryable: false,
			Cause:     ErrCauseNotProcessing,
		}
	}
	return nil
}

func (s *Store) backendError(op string, err error) error {
	s.sink.RecordError(s.now(), "store", "Store."+op, failure.CauseStorageUnavailable, err.Error(), nil)
	return &StoreError{
		Message:   fmt.Sprintf("%s: %v", op, err),
		Retryable: false,
		Cause:     ErrCauseBackendUnavailable,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntryTx(ctx context.Context, tx *sql.Tx, domain string) (QueueEntry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT domain, source, status, attempts, lease_expires_at, created_at, updated_at
		FROM queue WHERE domain = ?`, domain)
	return scanEntryRow(row)
}

func scanEntryRow(row rowScanner) (QueueEntry, error) {
	var entry QueueEntry
	var status string
	var lease sql.NullInt64
	var created, updated int64
	if err := row.Scan(&entry.Domain, &entry.Source, &status, &entry.Attempts, &lease, &created, &updated); err != nil {
		return QueueEntry{}, err
	}
	entry.Status = Status(status)
	if lease.Valid {
		entry.LeaseExpiresAt = time.Unix(lease.Int64, 0).UTC()
	}
	entry.CreatedAt = time.Unix(created, 0).UTC()
	entry.UpdatedAt = time.Unix(updated, 0).UTC()
	return entry, nil
}

const selectResultSQL = `
	SELECT domain, run_id, crawled_at, legal_source_url,
	       legal_name, legal_name_source, legal_name_confidence,
	       legal_form, legal_form_source, legal_form_confidence,
	       registration_number, register_court, register_type, vat_id,
	       street, postal_code, city, country, address_source, address_confidence,
	       ceo, directors,
	       emails, emails_source, emails_confidence,
	       phones, phones_source, phones_confidence,
	       fax, robots_allowed, robots_reason, confidence
	FROM results`

func upsertResult(ctx context.Context, tx *sql.Tx, r CrawlResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO results (
			domain, run_id, crawled_at, legal_source_url,
			legal_name, legal_name_source, legal_name_confidence,
			legal_form, legal_form_source, legal_form_confidence,
			registration_number, register_court, register_type, vat_id,
			street, postal_code, city, country, address_source, address_confidence,
			ceo, directors,
			emails, emails_source, emails_confidence,
			phones, phones_source, phones_confidence,
			fax, robots_allowed, robots_reason, confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET
			run_id = excluded.run_id,
			crawled_at = excluded.crawled_at,
			legal_source_url = excluded.legal_source_url,
			legal_name = excluded.legal_name,
			legal_name_source = excluded.legal_name_source,
			legal_name_confidence = excluded.legal_name_confidence,
			legal_form = excluded.legal_form,
			legal_form_source = excluded.legal_form_source,
			legal_form_confidence = excluded.legal_form_confidence,
			registration_number = excluded.registration_number,
			register_court = excluded.register_court,
			register_type = excluded.register_type,
			vat_id = excluded.vat_id,
			street = excluded.street,
			postal_code = excluded.postal_code,
			city = excluded.city,
			country = excluded.country,
			address_source = excluded.address_source,
			address_confidence = excluded.address_confidence,
			ceo = excluded.ceo,
			directors = excluded.directors,
			emails = excluded.emails,
			emails_source = excluded.emails_source,
			emails_confidence = excluded.emails_confidence,
			phones = excluded.phones,
			phones_source = excluded.phones_source,
			phones_confidence = excluded.phones_confidence,
			fax = excluded.fax,
			robots_allowed = excluded.robots_allowed,
			robots_reason = excluded.robots_reason,
			confidence = excluded.confidence`,
		r.Domain, r.RunID, r.CrawledAt.UTC().Unix(), r.LegalSourceURL,
		r.LegalName.Value, r.LegalName.Source, r.LegalName.Confidence,
		r.LegalForm.Value, r.LegalForm.Source, r.LegalForm.Confidence,
		r.RegistrationNumber.Value, r.RegisterCourt.Value, r.RegisterType.Value, r.VatID.Value,
		r.Street.Value, r.PostalCode.Value, r.City.Value, r.Country.Value,
		addressSource(r), addressConfidence(r),
		r.CEO.Value, strings.Join(r.Directors.Values, listSeparator),
		strings.Join(r.Emails.Values, listSeparator), r.Emails.Source, r.Emails.Confidence,
		strings.Join(r.Phones.Values, listSeparator), r.Phones.Source, r.Phones.Confidence,
		r.Fax.Value, boolToInt(r.RobotsAllowed), r.RobotsReason, r.Confidence,
	)
	return err
}

// The address group shares one provenance: all four components come out of
// the same pass in practice, so the street's meta stands for the group.
func addressSource(r CrawlResult) string {
	for _, f := range []StringField{r.Street, r.PostalCode, r.City, r.Country} {
		if f.Source != "" {
			return f.Source
		}
	}
	return ""
}

func addressConfidence(r CrawlResult) float64 {
	for _, f := range []StringField{r.Street, r.PostalCode, r.City, r.Country} {
		if f.Source != "" {
			return f.Confidence
		}
	}
	return 0
}

func scanResult(row rowScanner) (CrawlResult, error) {
	var r CrawlResult
	var crawledAt int64
	var robotsAllowed int
	var (
		legalName, legalNameSource           sql.NullString
		legalNameConf                        sql.NullFloat64
		legalForm, legalFormSource           sql.NullString
		legalFormConf                        sql.NullFloat64
		regNumber, regCourt, regType, vatID  sql.NullString
		street, postalCode, city, country    sql.NullString
		addrSource                           sql.NullString
		addrConf                             sql.NullFloat64
		ceo, directors                       sql.NullString
		emails, emailsSource                 sql.NullString
		emailsConf                           sql.NullFloat64
		phones, phonesSource                 sql.NullString
		phonesConf                           sql.NullFloat64
		fax, robotsReason                    sql.NullString
	)

	err := row.Scan(
		&r.Domain, &r.RunID, &crawledAt, &r.LegalSourceURL,
		&legalName, &legalNameSource, &legalNameConf,
		&legalForm, &legalFormSource, &legalFormConf,
		&regNumber, &regCourt, &regType, &vatID,
		&street, &postalCode, &city, &country, &addrSource, &addrConf,
		&ceo, &directors,
		&emails, &emailsSource, &emailsConf,
		&phones, &phonesSource, &phonesConf,
		&fax, &robotsAllowed, &robotsReason, &r.Confidence,
	)
	if err != nil {
		return CrawlResult{}, err
	}

	r.CrawledAt = time.Unix(crawledAt, 0).UTC()
	r.LegalName = StringField{Value: legalName.String, Source: legalNameSource.String, Confidence: legalNameConf.Float64}
	r.LegalForm = StringField{Value: legalForm.String, Source: legalFormSource.String, Confidence: legalFormConf.Float64}
	r.RegistrationNumber = StringField{Value: regNumber.String}
	r.RegisterCourt = StringField{Value: regCourt.String}
	r.RegisterType = StringField{Value: regType.String}
	r.VatID = StringField{Value: vatID.String}
	r.Street = StringField{Value: street.String, Source: addrSource.String, Confidence: addrConf.Float64}
	r.PostalCode = StringField{Value: postalCode.String, Source: addrSource.String, Confidence: addrConf.Float64}
	r.City = StringField{Value: city.String, Source: addrSource.String, Confidence: addrConf.Float64}
	r.Country = StringField{Value: country.String, Source: addrSource.String, Confidence: addrConf.Float64}
	r.CEO = StringField{Value: ceo.String}
	r.Directors = ListField{Values: splitList(directors.String)}
	r.Emails = ListField{Values: splitList(emails.String), Source: emailsSource.String, Confidence: emailsConf.Float64}
	r.Phones = ListField{Values: splitList(phones.String), Source: phonesSource.String, Confidence: phonesConf.Float64}
	r.Fax = StringField{Value: fax.String}
	r.RobotsAllowed = robotsAllowed != 0
	r.RobotsReason = robotsReason.String
	return r, nil
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, listSeparator)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
