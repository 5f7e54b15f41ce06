// Package content implements the Content Engine: HTML scrubbing
// (comments, hidden/ad nodes, empty containers), string-level XHTML
// sanitization, and footnote extraction/rewrite producing stable,
// chapter-scoped identifiers (spec §4.E).
package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// hiddenOrAdSelector matches the ad/hidden-node classes CleanHtml strips.
const hiddenOrAdSelector = ".d-none, .d-md-block, .flex, .note-content"

// parseFragment parses an HTML fragment (not necessarily a full document)
// into a goquery Document. The HTML5 parser wraps bare fragments in an
// implicit html/body, which is exactly the shape renderBody expects back.
func parseFragment(s string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(s))
}

// renderBody serializes the contents of <body> back to an HTML string.
func renderBody(doc *goquery.Document) (string, error) {
	return doc.Find("body").Html()
}

// CleanHtml parses fragmentHTML, applies Clean to the whole document, and
// re-serializes the result.
func CleanHtml(fragmentHTML string) (string, error) {
	doc, err := parseFragment(fragmentHTML)
	if err != nil {
		return "", err
	}
	Clean(doc.Selection)
	return renderBody(doc)
}

// Clean removes, in place, every comment node in sel's subtree, every
// element with target="_blank"/"__blank", every element matching the
// ad/hidden-node selector set, and any p/div/span left with empty
// trimmed text and no descendant img.
func Clean(sel *goquery.Selection) {
	RemoveCommentsAdsHidden(sel)
	RemoveEmptyNodes(sel)
}

// RemoveCommentsAdsHidden removes comment nodes, target="_blank"/"__blank"
// elements, and the ad/hidden-node selector set, but leaves empty p/div/span
// nodes in place — the Chapter Downloader interleaves image processing
// between this step and the empty-node sweep (spec §4.F.2-4).
func RemoveCommentsAdsHidden(sel *goquery.Selection) {
	removeComments(sel)
	sel.Find(`[target="_blank"], [target="__blank"]`).Remove()
	sel.Find(hiddenOrAdSelector).Remove()
}

func removeComments(sel *goquery.Selection) {
	for _, n := range sel.Nodes {
		removeCommentsFrom(n)
	}
}

func removeCommentsFrom(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		removeCommentsFrom(c)
	}
}

// RemoveEmptyNodes repeatedly sweeps p/div/span elements, removing any
// with empty trimmed text and no descendant img, until a sweep removes
// nothing — this lets a parent become empty after a child is pruned.
func RemoveEmptyNodes(sel *goquery.Selection) {
	for {
		removedAny := false
		sel.Find("p, div, span").Each(func(_ int, s *goquery.Selection) {
			if s.Find("img").Length() > 0 {
				return
			}
			if strings.TrimSpace(s.Text()) != "" {
				return
			}
			s.Remove()
			removedAny = true
		})
		if !removedAny {
			return
		}
	}
}

var (
	emptyPRe     = regexp.MustCompile(`(?is)<p(?:\s[^>]*)?>(?:\s|&nbsp;|&#160;|<br(?:\s[^>]*)?/?>)*</p>`)
	brRunRe      = regexp.MustCompile(`(?is)(?:<br(?:\s[^>]*)?/?>\s*){3,}`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// CollapseNewlines collapses runs of 3+ newlines down to exactly two. The
// Chapter Downloader applies just this narrower step after appending
// footnote asides, rather than the full SanitizeXhtml pass (spec §4.F.6).
func CollapseNewlines(s string) string {
	return newlineRunRe.ReplaceAllString(s, "\n\n")
}

// SanitizeXhtml applies the string-level cleanup pass, in order: encode
// &nbsp; as &#160;, drop now-empty <p> tags, collapse runs of 3+ <br>
// tags to exactly two, collapse runs of 3+ newlines to exactly two, and
// trim the result.
func SanitizeXhtml(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", "&#160;")
	s = emptyPRe.ReplaceAllString(s, "")
	s = brRunRe.ReplaceAllString(s, "<br/><br/>")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ProcessContent runs the full Content Engine pipeline: clean, extract and
// rewrite footnotes scoped to slug, then sanitize.
func ProcessContent(htmlStr string, slug string) (string, error) {
	cleaned, err := CleanHtml(htmlStr)
	if err != nil {
		return "", err
	}
	processed, err := ProcessFootnotes(cleaned, slug)
	if err != nil {
		return "", err
	}
	return SanitizeXhtml(processed), nil
}
