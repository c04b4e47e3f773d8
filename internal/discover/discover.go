/*
Responsibilities
- From the home-page DOM, propose candidate legal-notice URLs
- Score by anchor label, path token, and footer proximity
- Exclude nofollow and external-host links

The discoverer only proposes; the orchestrator decides what gets fetched.
*/
package discover

import (
	"bytes"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/pkg/urlutil"
)

const DefaultMaxCandidates = 3

// legalLabelLexicon lists anchor-text labels for legal-disclosure pages
// across the supported jurisdictions, lowercased.
var legalLabelLexicon = []string{
	"impressum",
	"imprint",
	"legal notice",
	"legal",
	"mentions légales",
	"mentions legales",
	"aviso legal",
	"note legali",
	"datenschutz",
	"privacy policy",
	"kontakt",
	"contact",
}

// pathTokens are matched against the URL path; a shorter list than the
// labels because paths rarely carry accents or spaces.
var pathTokens = []string{
	"impressum",
	"imprint",
	"legal",
	"mentions-legales",
	"mentionslegales",
	"aviso-legal",
	"note-legali",
	"datenschutz",
	"kontakt",
	"contact",
}

const (
	scoreLabelMatch = 4
	scorePathMatch  = 2
	scoreFooter     = 1
)

type candidate struct {
	url       url.URL
	score     int
	depth     int
	order     int
}

type Discoverer struct {
	sink          legallog.Sink
	maxCandidates int
}

func NewDiscoverer(sink legallog.Sink, maxCandidates int) *Discoverer {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Discoverer{
		sink:          sink,
		maxCandidates: maxCandidates,
	}
}

// Discover returns up to maxCandidates legal-page URLs ordered by score,
// ties broken by path shallowness then document order. An empty slice means
// the caller should fall back to the home URL itself.
func (d *Discoverer) Discover(homeURL url.URL, homeHTML []byte) []url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(homeHTML))
	if err != nil {
		d.sink.RecordEvent(time.Now(), "discover", "Discoverer.Discover", "unparseable home page", []legallog.Attribute{
			legallog.NewAttr(legallog.AttrURL, homeURL.String()),
		})
		return nil
	}

	anchors := doc.Find("a[href]")
	total := anchors.Length()
	footerStart := total - total/5

	seen := map[string]int{}
	var candidates []candidate
	anchors.Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if rel, ok := sel.Attr("rel"); ok && strings.Contains(strings.ToLower(rel), "nofollow") {
			return
		}
		resolved, ok := resolveSameHost(homeURL, href)
		if !ok {
			return
		}

		score := 0
		label := strings.ToLower(strings.TrimSpace(sel.Text()))
		if matchesAny(label, legalLabelLexicon) {
			score += scoreLabelMatch
		}
		path := strings.ToLower(resolved.Path)
		if matchesAny(path, pathTokens) {
			score += scorePathMatch
		}
		if inFooter(sel) || (total > 0 && i >= footerStart) {
			score += scoreFooter
		}
		if score == 0 {
			return
		}

		key := resolved.String()
		if idx, dup := seen[key]; dup {
			if score > candidates[idx].score {
				candidates[idx].score = score
			}
			return
		}
		seen[key] = len(candidates)
		candidates = append(candidates, candidate{
			url:   resolved,
			score: score,
			depth: pathDepth(resolved.Path),
			order: i,
		})
	})

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		if candidates[a].depth != candidates[b].depth {
			return candidates[a].depth < candidates[b].depth
		}
		return candidates[a].order < candidates[b].order
	})

	limit := d.maxCandidates
	if limit > len(candidates) {
		limit = len(candidates)
	}
	result := make([]url.URL, 0, limit)
	for _, c := range candidates[:limit] {
		result = append(result, c.url)
	}
	return result
}

// resolveSameHost resolves href against base and keeps only same-host,
// non-fragment, http(s) links.
func resolveSameHost(base url.URL, href string) (url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(strings.ToLower(href), "mailto:") ||
		strings.HasPrefix(strings.ToLower(href), "tel:") ||
		strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return url.URL{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return url.URL{}, false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return url.URL{}, false
	}
	if !urlutil.SameRegistrableDomain(base.Host, resolved.Host) {
		return url.URL{}, false
	}
	return urlutil.Canonicalize(*resolved), true
}

func matchesAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// inFooter walks ancestors looking for footer elements or contentinfo
// roles; class-name heuristics catch div-soup footers.
func inFooter(sel *goquery.Selection) bool {
	found := false
	sel.Parents().Each(func(_ int, parent *goquery.Selection) {
		if goquery.NodeName(parent) == "footer" {
			found = true
			return
		}
		if role, ok := parent.Attr("role"); ok && strings.EqualFold(role, "contentinfo") {
			found = true
			return
		}
		if class, ok := parent.Attr("class"); ok && strings.Contains(strings.ToLower(class), "footer") {
			found = true
		}
	})
	return found
}

func pathDepth(path string) int {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}
