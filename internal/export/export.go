/*
Responsibilities
- Project stored results to a fixed-column tabular file
- Strict profile: only rows with the mandatory set complete
- Permissive profile: all rows, missing fields empty
- Deterministic column order; timestamped, run-tagged filenames
- Atomic writes: a crash never leaves a partial export behind

Export is a pure function of the store at a snapshot instant; two exports
of the same snapshot differ only in the filename timestamp.
*/
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/pkg/fileutil"
	"github.com/corvid-labs/legalscout/pkg/hashutil"
)

// Header is the deterministic column order of every export.
var Header = []string{
	"domain", "legal_name", "legal_form", "street", "postal_code", "city",
	"country", "register_court", "register_type", "registration_number",
	"vat_id", "ceo", "directors", "phones", "emails", "fax",
	"robots_allowed", "robots_reason", "legal_source_url", "crawled_at",
	"run_id",
	"legal_name_source", "legal_name_confidence",
	"legal_form_source", "legal_form_confidence",
	"address_source", "address_confidence",
	"phones_source", "phones_confidence",
	"emails_source", "emails_confidence",
}

const (
	listSeparator      = "; "
	filenameTimeLayout = "20060102T150405"
)

type ResultReader interface {
	Results(ctx context.Context) ([]store.CrawlResult, error)
}

type Exporter struct {
	sink    legallog.Sink
	reader  ResultReader
	profile config.ExportProfile
	dir     string
	now     func() time.Time
}

func NewExporter(sink legallog.Sink, reader ResultReader, cfg config.Config) *Exporter {
	return &Exporter{
		sink:    sink,
		reader:  reader,
		profile: cfg.ExportProfile(),
		dir:     cfg.ExportDir(),
		now:     time.Now,
	}
}

// ExportCSV writes the tabular export and returns the written path.
func (e *Exporter) ExportCSV(ctx context.Context, runID string) (string, error) {
	rows, err := e.rows(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(Header); err != nil {
		return "", err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, e.filename(runID, "csv"))
	if writeErr := fileutil.WriteAtomic(path, buf.Bytes(), 0644); writeErr != nil {
		return "", writeErr
	}
	e.recordExport(path, buf.Bytes(), len(rows))
	return path, nil
}

// ExportNDJSON mirrors the CSV schema as one JSON object per line.
func (e *Exporter) ExportNDJSON(ctx context.Context, runID string) (string, error) {
	rows, err := e.rows(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, row := range rows {
		record := make(map[string]string, len(Header))
		for i, column := range Header {
			record[column] = row[i]
		}
		line, err := json.Marshal(record)
		if err != nil {
			return "", err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := filepath.Join(e.dir, e.filename(runID, "ndjson"))
	if writeErr := fileutil.WriteAtomic(path, buf.Bytes(), 0644); writeErr != nil {
		return "", writeErr
	}
	e.recordExport(path, buf.Bytes(), len(rows))
	return path, nil
}

func (e *Exporter) rows(ctx context.Context) ([][]string, error) {
	results, err := e.reader.Results(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		if e.profile == config.ExportStrict && !mandatoryComplete(result) {
			continue
		}
		rows = append(rows, projectRow(result))
	}
	return rows, nil
}

// mandatoryComplete gates the strict profile: a row must identify the
// entity and locate it.
func mandatoryComplete(r store.CrawlResult) bool {
	return r.LegalName.Present() &&
		r.Street.Present() &&
		r.PostalCode.Present() &&
		r.City.Present()
}

func projectRow(r store.CrawlResult) []string {
	return []string{
		r.Domain,
		r.LegalName.Value,
		r.LegalForm.Value,
		r.Street.Value,
		r.PostalCode.Value,
		r.City.Value,
		r.Country.Value,
		r.RegisterCourt.Value,
		r.RegisterType.Value,
		r.RegistrationNumber.Value,
		r.VatID.Value,
		r.CEO.Value,
		strings.Join(r.Directors.Values, listSeparator),
		strings.Join(r.Phones.Values, listSeparator),
		strings.Join(r.Emails.Values, listSeparator),
		r.Fax.Value,
		strconv.FormatBool(r.RobotsAllowed),
		r.RobotsReason,
		r.LegalSourceURL,
		r.CrawledAt.UTC().Format(time.RFC3339),
		r.RunID,
		r.LegalName.Source,
		formatConfidence(r.LegalName),
		r.LegalForm.Source,
		formatConfidence(r.LegalForm),
		r.Street.Source,
		formatConfidence(r.Street),
		r.Phones.Source,
		formatListConfidence(r.Phones),
		r.Emails.Source,
		formatListConfidence(r.Emails),
	}
}

func formatConfidence(f store.StringField) string {
	if !f.Present() {
		return ""
	}
	return strconv.FormatFloat(f.Confidence, 'f', 2, 64)
}

func formatListConfidence(f store.ListField) string {
	if !f.Present() {
		return ""
	}
	return strconv.FormatFloat(f.Confidence, 'f', 2, 64)
}

func (e *Exporter) filename(runID, extension string) string {
	return fmt.Sprintf("results_%s_%s.%s", e.now().UTC().Format(filenameTimeLayout), runID, extension)
}

// recordExport logs the artifact path, row count and content hash, so a
// consumer can verify the file it picked up is the one that was written.
func (e *Exporter) recordExport(path string, content []byte, rowCount int) {
	attrs := []legallog.Attribute{
		legallog.NewAttr(legallog.AttrWritePath, path),
		legallog.NewAttr(legallog.AttrCount, strconv.Itoa(rowCount)),
	}
	if digest, err := hashutil.HashBytes(content, hashutil.HashAlgoBLAKE3); err == nil {
		attrs = append(attrs, legallog.NewAttr(legallog.AttrMessage, "blake3:"+digest))
	}
	e.sink.RecordEvent(e.now(), "export", "Exporter.Export", "export written", attrs)
}
