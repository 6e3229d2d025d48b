package orchestrate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webpeel/webpeel/models"
)

const (
	// shellTextThreshold: a page whose visible text is shorter than this
	// probably rendered nothing useful.
	shellTextThreshold = 500

	// shellMarkupThreshold: unless the markup itself is trivial, in which
	// case the page may legitimately be near-empty.
	shellMarkupThreshold = 1000
)

// isShellPage reports whether a direct-tier result is a content-free SPA
// shell: HTML that carries nontrivial markup but renders almost no
// visible text. Such a page needed client-side rendering, so the result
// counts as blocked for escalation purposes.
func isShellPage(res *models.FetchResult) bool {
	if res == nil {
		return false
	}
	ct := strings.ToLower(res.ContentType)
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml+xml") {
		return false
	}
	if len(res.Content) <= shellMarkupThreshold {
		return false
	}
	return len(visibleText(res.Content)) < shellTextThreshold
}

// visibleText strips tags, scripts, and styles from HTML and collapses
// whitespace. Heuristic use only.
func visibleText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}
