package isolate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/legalscout/internal/isolate"
	"github.com/corvid-labs/legalscout/internal/legallog"
)

func newIsolator() *isolate.SectionIsolator {
	return isolate.NewSectionIsolator(legallog.NopSink{})
}

func TestIsolateStripsBoilerplate(t *testing.T) {
	html := []byte(`<html><head><script>var x=1;</script><style>body{}</style></head>
	<body>
		<nav><a href="/">Home</a><a href="/shop">Shop</a></nav>
		<div class="cookie-consent">We use cookies to improve your experience</div>
		<main>
			<h1>Impressum</h1>
			<p>Beispiel GmbH<br>Musterweg 7<br>80333 München</p>
			<p>Geschäftsführer: Max Mustermann</p>
		</main>
		<footer><a href="/datenschutz">Datenschutz</a></footer>
	</body></html>`)

	section, err := newIsolator().Isolate(html)
	require.Nil(t, err)
	text := strings.Join(section.Lines(), "\n")
	assert.Contains(t, text, "Beispiel GmbH")
	assert.Contains(t, text, "Geschäftsführer: Max Mustermann")
	assert.NotContains(t, text, "cookies")
	assert.NotContains(t, text, "Shop")
}

func TestIsolatePreservesLineBreaks(t *testing.T) {
	html := []byte(`<html><body><main>
		<p>Beispiel GmbH<br>Musterweg 7<br>80333 München</p>
	</main></body></html>`)

	section, err := newIsolator().Isolate(html)
	require.Nil(t, err)
	lines := section.Lines()
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines, "Beispiel GmbH")
	assert.Contains(t, lines, "Musterweg 7")
	assert.Contains(t, lines, "80333 München")
}

func TestIsolateCollapsesWhitespaceRuns(t *testing.T) {
	html := []byte("<html><body><main><p>Beispiel   \t  GmbH</p></main></body></html>")

	section, err := newIsolator().Isolate(html)
	require.Nil(t, err)
	assert.Contains(t, section.Lines(), "Beispiel GmbH")
}

func TestIsolateKeepsAtMostOneBlankLine(t *testing.T) {
	html := []byte(`<html><body><main>
		<p>First block</p>
		<div></div><div></div><div></div>
		<p>Second block</p>
	</main></body></html>`)

	section, err := newIsolator().Isolate(html)
	require.Nil(t, err)
	lines := section.Lines()
	for i := 1; i < len(lines); i++ {
		if lines[i] == "" {
			assert.NotEqual(t, "", lines[i-1], "no consecutive blank lines")
		}
	}
}

func TestIsolateKeepsFooterAddressBlock(t *testing.T) {
	html := []byte(`<html><body>
		<main><p>Welcome to our shop with the finest selection of goods.</p></main>
		<footer>
			<address>Beispiel GmbH, Musterweg 7, 80333 München</address>
		</footer>
	</body></html>`)

	section, err := newIsolator().Isolate(html)
	require.Nil(t, err)
	assert.Contains(t, strings.Join(section.Lines(), "\n"), "Musterweg 7")
}

func TestIsolateEmptyDocument(t *testing.T) {
	_, err := newIsolator().Isolate([]byte("<html><body></body></html>"))
	require.NotNil(t, err)
	isolationErr, ok := err.(*isolate.IsolationError)
	require.True(t, ok)
	assert.Equal(t, isolate.ErrCauseEmptyContent, isolationErr.Cause)
}
