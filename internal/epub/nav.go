package epub

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BuildNavXHTML renders the EPUB3 navigation document: a nested <ol><li>
// tree mirroring toc, wrapped in <nav epub:type="toc">.
func BuildNavXHTML(title string, toc []NavEntry) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<!DOCTYPE html>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title><link rel=\"stylesheet\" type=\"text/css\" href=\"style.css\"/></head>\n", escapeXML(title))
	b.WriteString("<body>\n")
	fmt.Fprintf(&b, "<nav epub:type=\"toc\" id=\"toc\"><h1>%s</h1>\n", escapeXML(title))
	writeNavList(&b, toc)
	b.WriteString("</nav>\n</body>\n</html>\n")
	return []byte(b.String())
}

func writeNavList(b *strings.Builder, entries []NavEntry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("<ol>\n")
	for _, e := range entries {
		b.WriteString("<li>")
		fmt.Fprintf(b, "<a href=\"%s\">%s</a>", escapeXML(e.Href), escapeXML(e.Title))
		writeNavList(b, e.Children)
		b.WriteString("</li>\n")
	}
	b.WriteString("</ol>\n")
}

// ParseNavXHTML extracts the nested TOC tree from an EPUB3 nav document,
// reading the first <ol> found inside a <nav> element (spec.md §4.H.3).
func ParseNavXHTML(r io.Reader) ([]NavEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("epub: parse nav document: %w", err)
	}
	nav := doc.Find("nav").First()
	if nav.Length() == 0 {
		nav = doc.Selection
	}
	ol := nav.ChildrenFiltered("ol").First()
	if ol.Length() == 0 {
		ol = nav.Find("ol").First()
	}
	return parseNavOl(ol), nil
}

func parseNavOl(ol *goquery.Selection) []NavEntry {
	var entries []NavEntry
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		a := li.ChildrenFiltered("a, span").First()
		title := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		entry := NavEntry{Title: title, Href: stripFragment(href)}
		if childOl := li.ChildrenFiltered("ol").First(); childOl.Length() > 0 {
			entry.Children = parseNavOl(childOl)
		}
		entries = append(entries, entry)
	})
	return entries
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i != -1 {
		return href[:i]
	}
	return href
}

// --- NCX (EPUB2 fallback table of contents) ---

type ncxDocument struct {
	XMLName xml.Name    `xml:"ncx"`
	NavMap  ncxNavPoint `xml:"navMap"`
}

type ncxNavPoint struct {
	NavPoints []ncxNavPointEntry `xml:"navPoint"`
}

type ncxNavPointEntry struct {
	ID        string `xml:"id,attr"`
	PlayOrder string `xml:"playOrder,attr"`
	NavLabel  struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPointEntry `xml:"navPoint"`
}

// BuildNCX renders an EPUB2 toc.ncx mirroring the same TOC tree, for
// readers that only support the EPUB2 table of contents.
func BuildNCX(title string, toc []NavEntry) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	b.WriteString("<head></head>\n")
	fmt.Fprintf(&b, "<docTitle><text>%s</text></docTitle>\n", escapeXML(title))
	b.WriteString("<navMap>\n")
	order := 1
	writeNCXPoints(&b, toc, &order)
	b.WriteString("</navMap>\n</ncx>\n")
	return []byte(b.String())
}

func writeNCXPoints(b *strings.Builder, entries []NavEntry, order *int) {
	for _, e := range entries {
		id := fmt.Sprintf("navPoint-%d", *order)
		fmt.Fprintf(b, "<navPoint id=\"%s\" playOrder=\"%d\">\n", id, *order)
		*order++
		fmt.Fprintf(b, "<navLabel><text>%s</text></navLabel>\n", escapeXML(e.Title))
		fmt.Fprintf(b, "<content src=\"%s\"/>\n", escapeXML(e.Href))
		writeNCXPoints(b, e.Children, order)
		b.WriteString("</navPoint>\n")
	}
}

// ParseNCX extracts the nested TOC tree from an EPUB2 toc.ncx document.
func ParseNCX(r io.Reader) ([]NavEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("epub: read ncx: %w", err)
	}
	var doc ncxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("epub: parse ncx: %w", err)
	}
	return convertNCXPoints(doc.NavMap.NavPoints), nil
}

func convertNCXPoints(points []ncxNavPointEntry) []NavEntry {
	entries := make([]NavEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, NavEntry{
			Title:    strings.TrimSpace(p.NavLabel.Text),
			Href:     stripFragment(p.Content.Src),
			Children: convertNCXPoints(p.Children),
		})
	}
	return entries
}
