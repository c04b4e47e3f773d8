/*
Responsibilities
- Strip navigation, header, footer, script, style, aside and cookie-banner
  regions by structural role and class-name heuristics
- Keep the densest text region as the legal content
- Preserve line breaks: downstream patterns are line-sensitive

The isolator returns plain text; it never interprets the content.
*/
package isolate

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

// boilerplateTags are removed wholesale before scoring.
var boilerplateTags = []string{
	"script", "style", "noscript", "iframe", "svg", "form",
	"nav", "header", "aside",
}

// boilerplateClassFragments knock out div-soup chrome that carries no
// structural role.
var boilerplateClassFragments = []string{
	"cookie", "consent", "banner", "nav", "menu", "sidebar",
	"breadcrumb", "social", "newsletter", "popup", "modal",
}

// blockTags terminate a text line during rendering.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "ul": {}, "ol": {}, "table": {},
	"tr": {}, "td": {}, "th": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {},
	"h5": {}, "h6": {}, "section": {}, "article": {}, "address": {},
	"blockquote": {}, "dt": {}, "dd": {}, "dl": {},
}

type Isolator interface {
	Isolate(pageHTML []byte) (IsolatedSection, failure.ClassifiedError)
}

type SectionIsolator struct {
	sink legallog.Sink
}

func NewSectionIsolator(sink legallog.Sink) *SectionIsolator {
	return &SectionIsolator{sink: sink}
}

func (s *SectionIsolator) Isolate(pageHTML []byte) (IsolatedSection, failure.ClassifiedError) {
	section, err := isolate(pageHTML)
	if err != nil {
		var isolationError *IsolationError
		errors.As(err, &isolationError)
		s.sink.RecordError(
			time.Now(),
			"isolate",
			"SectionIsolator.Isolate",
			failure.CauseExtractionEmpty,
			err.Error(),
			nil,
		)
		return IsolatedSection{}, isolationError
	}
	return section, nil
}

func isolate(pageHTML []byte) (IsolatedSection, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return IsolatedSection{}, &IsolationError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseUnparseableHTML,
		}
	}

	removeBoilerplate(doc)

	content := densestRegion(doc)
	if content == nil {
		return IsolatedSection{}, &IsolationError{
			Message:   "document has no body",
			Retryable: false,
			Cause:     ErrCauseEmptyContent,
		}
	}

	lines := normaliseLines(renderText(content))
	if len(lines) == 0 {
		return IsolatedSection{}, &IsolationError{
			Message:   "no text lines survived isolation",
			Retryable: false,
			Cause:     ErrCauseEmptyContent,
		}
	}
	return NewIsolatedSection(lines), nil
}

func removeBoilerplate(doc *goquery.Document) {
	for _, tag := range boilerplateTags {
		doc.Find(tag).Remove()
	}
	// footer removal is scoped: a page-level footer is chrome, but an
	// <address> block inside one is exactly what we want, so hoist those
	// first.
	body := doc.Find("body").First()
	doc.Find("footer address").Each(func(_ int, sel *goquery.Selection) {
		body.AppendSelection(sel.Remove())
	})
	doc.Find("footer").Remove()

	doc.Find("[class],[id]").Each(func(_ int, sel *goquery.Selection) {
		marker := strings.ToLower(sel.AttrOr("class", "") + " " + sel.AttrOr("id", ""))
		for _, fragment := range boilerplateClassFragments {
			if strings.Contains(marker, fragment) {
				sel.Remove()
				return
			}
		}
	})
}

// densestRegion scores structural candidates by non-whitespace text mass,
// penalising link-heavy regions, and returns the best node.
func densestRegion(doc *goquery.Document) *goquery.Selection {
	candidates := doc.Find("main, article, [role=main], section, div")
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	best := body
	bestScore := regionScore(body)
	candidates.Each(func(_ int, sel *goquery.Selection) {
		if score := regionScore(sel); score > bestScore {
			best = sel
			bestScore = score
		}
	})
	return best
}

func regionScore(sel *goquery.Selection) float64 {
	text := strings.Join(strings.Fields(sel.Text()), "")
	total := float64(len(text))
	if total == 0 {
		return 0
	}
	linkText := strings.Join(strings.Fields(sel.Find("a").Text()), "")
	linkDensity := float64(len(linkText)) / total
	return total * (1.0 - linkDensity)
}

// renderText walks the DOM emitting text with newlines at block boundaries
// and <br> elements.
func renderText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, node := range sel.Nodes {
		renderNode(&sb, node)
	}
	return sb.String()
}

func renderNode(sb *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		sb.WriteString(node.Data)
	case html.ElementNode:
		if node.Data == "br" {
			sb.WriteString("\n")
			return
		}
		_, isBlock := blockTags[node.Data]
		if isBlock {
			sb.WriteString("\n")
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			renderNode(sb, child)
		}
		if isBlock {
			sb.WriteString("\n")
		}
	default:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			renderNode(sb, child)
		}
	}
}

// normaliseLines collapses whitespace runs within lines and keeps at most
// one blank line between logical blocks.
func normaliseLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	blankPending := false
	for _, line := range raw {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed == "" {
			if len(lines) > 0 {
				blankPending = true
			}
			continue
		}
		if blankPending {
			lines = append(lines, "")
			blankPending = false
		}
		lines = append(lines, collapsed)
	}
	return lines
}
