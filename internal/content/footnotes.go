package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noteIDRe matches the footnote div-id grammar: note<digits>.
var noteIDRe = regexp.MustCompile(`^note\d+$`)

// FootnoteMap is an insertion-ordered id -> content table, so
// GenerateFootnoteAsides can iterate "unused" entries in document order.
type FootnoteMap struct {
	order   []string
	content map[string]string
}

func newFootnoteMap() *FootnoteMap {
	return &FootnoteMap{content: make(map[string]string)}
}

// Set records content for id, appending id to the insertion order only the
// first time it is seen.
func (m *FootnoteMap) Set(id, text string) {
	if _, ok := m.content[id]; !ok {
		m.order = append(m.order, id)
	}
	m.content[id] = text
}

// Get returns the content for id and whether it is present.
func (m *FootnoteMap) Get(id string) (string, bool) {
	v, ok := m.content[id]
	return v, ok
}

// Len returns the number of distinct ids recorded.
func (m *FootnoteMap) Len() int { return len(m.order) }

// Ordered returns the ids in insertion (document) order.
func (m *FootnoteMap) Ordered() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// ExtractFootnoteDefs scans sel's subtree for div[id] elements whose id
// matches note<digits> and records non-empty content, preferring a
// descendant span.note-content_real over the div's own trimmed text. The
// Chapter Downloader calls this directly on a chapter-content selection
// rather than re-parsing from a string (spec §4.F.6).
func ExtractFootnoteDefs(sel *goquery.Selection) *FootnoteMap {
	m := newFootnoteMap()
	sel.Find("div[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if !noteIDRe.MatchString(id) {
			return
		}
		text := strings.TrimSpace(s.Find("span.note-content_real").First().Text())
		if text == "" {
			text = strings.TrimSpace(s.Text())
		}
		if text != "" {
			m.Set(id, text)
		}
	})
	return m
}

// RemoveFootnoteDivs removes, from sel's subtree, every div[id] matching
// note<digits> and every .note-reg container — the definitions ExtractFootnoteDefs
// already captured.
func RemoveFootnoteDivs(sel *goquery.Selection) {
	sel.Find("div[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if noteIDRe.MatchString(id) {
			s.Remove()
		}
	})
	sel.Find(".note-reg").Remove()
}

// ExtractFootnoteDefinitions parses fragmentHTML and returns the map of
// note-id -> definition content (spec §4.E).
func ExtractFootnoteDefinitions(fragmentHTML string) (*FootnoteMap, error) {
	doc, err := parseFragment(fragmentHTML)
	if err != nil {
		return nil, err
	}
	return ExtractFootnoteDefs(doc.Selection), nil
}

var (
	// markerPatternOne captures an optional preceding "(N)"/"[N]" group,
	// then a bracketed [noteN] marker.
	markerPatternOne = regexp.MustCompile(`((?:\(\d+\)|\[\d+\])?)\s*\[(note\d+)\]`)
	// markerPatternTwo matches an <a href="#noteN">text</a> marker.
	markerPatternTwo = regexp.MustCompile(`<a[^>]*href=["']#(note\d+)["'][^>]*>([^<]*)</a>`)
)

// ConvertFootnoteMarkers rewrites both marker forms into noteref anchors
// scoped to slug, returning the rewritten HTML and the ordered,
// duplicate-free list of ids actually referenced. The label counter is
// shared across both passes and starts at 1.
func ConvertFootnoteMarkers(htmlStr string, m *FootnoteMap, slug string) (string, []string) {
	counter := 1
	var used []string
	seen := make(map[string]bool)
	markUsed := func(id string) {
		if !seen[id] {
			seen[id] = true
			used = append(used, id)
		}
	}

	htmlStr = markerPatternOne.ReplaceAllStringFunc(htmlStr, func(match string) string {
		sub := markerPatternOne.FindStringSubmatch(match)
		preceding, id := sub[1], sub[2]
		if _, ok := m.Get(id); !ok {
			return match
		}
		markUsed(id)
		var label string
		if preceding != "" {
			label = strings.TrimSpace(preceding)
		} else {
			label = fmt.Sprintf("[%d]", counter)
			counter++
		}
		return noterefAnchor(slug, id, label)
	})

	htmlStr = markerPatternTwo.ReplaceAllStringFunc(htmlStr, func(match string) string {
		sub := markerPatternTwo.FindStringSubmatch(match)
		id, text := sub[1], sub[2]
		if _, ok := m.Get(id); !ok {
			return match
		}
		markUsed(id)
		label := strings.TrimSpace(text)
		if label == "" {
			label = fmt.Sprintf("[%d]", counter)
			counter++
		}
		return noterefAnchor(slug, id, label)
	})

	return htmlStr, used
}

func noterefAnchor(slug, id, label string) string {
	return fmt.Sprintf(`<a epub:type="noteref" href="#%s_%s" class="footnote-link">%s</a>`, slug, id, label)
}

// GenerateFootnoteAsides emits an <aside> per id in used (in order), then,
// when includeUnused is set, one more per entry of m not already emitted,
// iterated in m's insertion order, under the "Thêm" (additional) header.
func GenerateFootnoteAsides(used []string, m *FootnoteMap, slug string, includeUnused bool) string {
	var b strings.Builder
	emitted := make(map[string]bool, len(used))
	for _, id := range used {
		content, ok := m.Get(id)
		if !ok {
			continue
		}
		emitted[id] = true
		writeAside(&b, slug, id, "Ghi chú:", content)
	}
	if includeUnused {
		for _, id := range m.Ordered() {
			if emitted[id] {
				continue
			}
			content, _ := m.Get(id)
			writeAside(&b, slug, id, "Ghi chú (Thêm):", content)
		}
	}
	return b.String()
}

func writeAside(b *strings.Builder, slug, id, header, content string) {
	fmt.Fprintf(b, "<aside id=\"%s_%s\" epub:type=\"footnote\" class=\"footnote-content\">\n", slug, id)
	fmt.Fprintf(b, "  <div class=\"note-header\">%s</div>\n", header)
	fmt.Fprintf(b, "  <p>%s</p>\n", content)
	b.WriteString("</aside>\n")
}

// ProcessFootnotes extracts footnote definitions from htmlStr (removing
// the matched divs and any .note-reg container), rewrites markers, and
// appends the generated asides (including unused definitions).
func ProcessFootnotes(htmlStr string, slug string) (string, error) {
	doc, err := parseFragment(htmlStr)
	if err != nil {
		return "", err
	}
	m := ExtractFootnoteDefs(doc.Selection)
	RemoveFootnoteDivs(doc.Selection)

	body, err := renderBody(doc)
	if err != nil {
		return "", err
	}

	converted, used := ConvertFootnoteMarkers(body, m, slug)
	return converted + GenerateFootnoteAsides(used, m, slug, true), nil
}
