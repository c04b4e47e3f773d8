package export_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/export"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/store"
)

type readerStub struct {
	results []store.CrawlResult
}

func (r *readerStub) Results(ctx context.Context) ([]store.CrawlResult, error) {
	return r.results, nil
}

func completeResult(domain string) store.CrawlResult {
	return store.CrawlResult{
		Domain:         domain,
		LegalSourceURL: "https://" + domain + "/impressum",
		RunID:          "run-1",
		CrawledAt:      time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		LegalName:      store.StringField{Value: "Example GmbH", Source: store.SourceStructured, Confidence: 1.0},
		LegalForm:      store.StringField{Value: "GmbH", Source: store.SourcePattern, Confidence: 0.8},
		Street:         store.StringField{Value: "Musterstr. 1", Source: store.SourceStructured, Confidence: 1.0},
		PostalCode:     store.StringField{Value: "10115", Source: store.SourceStructured, Confidence: 1.0},
		City:           store.StringField{Value: "Berlin", Source: store.SourceStructured, Confidence: 1.0},
		Phones:         store.ListField{Values: []string{"+49 30 1234567"}, Source: store.SourceStructured, Confidence: 1.0},
		Emails:         store.ListField{Values: []string{"info@example.de"}, Source: store.SourcePattern, Confidence: 0.8},
		RobotsAllowed:  true,
		Confidence:     0.93,
	}
}

func partialResult(domain string) store.CrawlResult {
	return store.CrawlResult{
		Domain:         domain,
		LegalSourceURL: "https://" + domain + "/",
		RunID:          "run-1",
		CrawledAt:      time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		LegalName:      store.StringField{Value: "Partial Ltd", Source: store.SourceGeneric, Confidence: 0.6},
		RobotsAllowed:  true,
	}
}

func newExporter(t *testing.T, profile config.ExportProfile, results ...store.CrawlResult) (*export.Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.WithDefault().
		WithExportDir(dir).
		WithExportProfile(profile).
		Build()
	require.NoError(t, err)
	return export.NewExporter(legallog.NopSink{}, &readerStub{results: results}, cfg), dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportCSVHeaderOrder(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportStrict, completeResult("example.de"))
	path, err := exporter.ExportCSV(context.Background(), "run-1")
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.NotEmpty(t, rows)
	assert.Equal(t, export.Header, rows[0])
}

func TestExportStrictFiltersIncompleteRows(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportStrict,
		completeResult("example.de"),
		partialResult("partial.de"),
	)
	path, err := exporter.ExportCSV(context.Background(), "run-1")
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 2, "header plus the one complete row")
	assert.Equal(t, "example.de", rows[1][0])
}

func TestExportPermissiveKeepsAllRows(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportPermissive,
		completeResult("example.de"),
		partialResult("partial.de"),
	)
	path, err := exporter.ExportCSV(context.Background(), "run-1")
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	// missing fields stay empty, not invented
	partialRow := rows[2]
	assert.Equal(t, "partial.de", partialRow[0])
	assert.Equal(t, "", partialRow[3], "street column empty")
}

func TestExportFilenameCarriesTimestampAndRunID(t *testing.T) {
	exporter, dir := newExporter(t, config.ExportStrict, completeResult("example.de"))
	path, err := exporter.ExportCSV(context.Background(), "run-42")
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "results_"), name)
	assert.Contains(t, name, "run-42")
	assert.True(t, strings.HasSuffix(name, ".csv"), name)
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestExportTwiceIsByteIdenticalExceptFilename(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportStrict, completeResult("example.de"))
	ctx := context.Background()

	first, err := exporter.ExportCSV(ctx, "run-a")
	require.NoError(t, err)
	second, err := exporter.ExportCSV(ctx, "run-b")
	require.NoError(t, err)

	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func TestExportNDJSONMirrorsSchema(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportStrict, completeResult("example.de"))
	path, err := exporter.ExportNDJSON(context.Background(), "run-1")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"domain":"example.de"`)
	assert.Contains(t, lines[0], `"legal_name":"Example GmbH"`)
	assert.Contains(t, lines[0], `"legal_name_confidence":"1.00"`)
}

func TestExportRowProjection(t *testing.T) {
	exporter, _ := newExporter(t, config.ExportStrict, completeResult("example.de"))
	path, err := exporter.ExportCSV(context.Background(), "run-1")
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	row := rows[1]
	byColumn := map[string]string{}
	for i, column := range export.Header {
		byColumn[column] = row[i]
	}
	assert.Equal(t, "Example GmbH", byColumn["legal_name"])
	assert.Equal(t, "structured", byColumn["legal_name_source"])
	assert.Equal(t, "1.00", byColumn["legal_name_confidence"])
	assert.Equal(t, "+49 30 1234567", byColumn["phones"])
	assert.Equal(t, "true", byColumn["robots_allowed"])
	assert.Equal(t, "2025-11-03T10:00:00Z", byColumn["crawled_at"])
	assert.Equal(t, "run-1", byColumn["run_id"])
}
