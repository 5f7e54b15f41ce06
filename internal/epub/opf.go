package epub

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"
)

// --- reading: lenient structs, grounded on the pack's epub.go reader idiom
// (struct tags without namespace prefixes match by local name only, so
// dc:creator/dc:subject/dc:description parse the same whether or not the
// source declares the dc: prefix). ---

type opfPackageXML struct {
	Metadata opfMetadataXML `xml:"metadata"`
	Manifest opfManifestXML `xml:"manifest"`
	Spine    opfSpineXML    `xml:"spine"`
}

type opfMetadataXML struct {
	Titles      []string    `xml:"title"`
	Creators    []opfAuthor `xml:"creator"`
	Subjects    []string    `xml:"subject"`
	Description string      `xml:"description"`
	Language    string      `xml:"language"`
	Metas       []opfMeta   `xml:"meta"`
}

type opfAuthor struct {
	Name string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfManifestXML struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpineXML struct {
	TOC      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// ParsePackageDocument decodes an OPF package document's metadata,
// manifest and spine (spec.md §4.H.2).
func ParsePackageDocument(r io.Reader) (meta Metadata, manifest []ManifestItem, spine []string, ncxID string, coverItemID string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return meta, nil, nil, "", "", fmt.Errorf("epub: read package document: %w", err)
	}

	var pkg opfPackageXML
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return meta, nil, nil, "", "", fmt.Errorf("epub: parse package document: %w", err)
	}

	meta.Title = firstNonEmpty(pkg.Metadata.Titles)
	meta.Summary = pkg.Metadata.Description
	meta.Language = pkg.Metadata.Language
	meta.Tags = pkg.Metadata.Subjects
	if len(pkg.Metadata.Creators) > 0 {
		meta.Author = strings.TrimSpace(pkg.Metadata.Creators[0].Name)
	}

	for _, m := range pkg.Metadata.Metas {
		if strings.EqualFold(m.Name, "cover") && m.Content != "" {
			coverItemID = m.Content
		}
	}

	manifest = make([]ManifestItem, 0, len(pkg.Manifest.Items))
	for _, it := range pkg.Manifest.Items {
		manifest = append(manifest, ManifestItem{ID: it.ID, Href: it.Href, MediaType: it.MediaType, Properties: it.Properties})
	}

	spine = make([]string, 0, len(pkg.Spine.ItemRefs))
	for _, ir := range pkg.Spine.ItemRefs {
		spine = append(spine, ir.IDRef)
	}
	ncxID = pkg.Spine.TOC

	return meta, manifest, spine, ncxID, coverItemID, nil
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// --- writing: hand-built XML text, grounded on the common Go epub-builder
// idiom of templating the package document directly rather than relying on
// encoding/xml's namespace-prefix auto-generation (which cannot be made to
// emit the conventional dc: prefix epub readers expect). ---

// BuildPackageDocument renders a complete OPF package document. manifest
// must list every content document, the stylesheet, the nav document
// (Properties "nav") and any image resources; spine lists manifest IDs in
// reading order; navID/ncxID name the nav/NCX manifest items (ncxID may be
// empty for EPUB3-only output); coverItemID, if non-empty, sets the
// <meta name="cover"> pointer.
func BuildPackageDocument(meta Metadata, manifest []ManifestItem, spine []string, navID, ncxID, coverItemID string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">` + "\n")
	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"book-id\">%s</dc:identifier>\n", escapeXML(meta.Title))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(orDefault(meta.Title, "Unknown")))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escapeXML(orDefault(meta.Language, "vi")))
	if meta.Author != "" {
		fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escapeXML(meta.Author))
	}
	if meta.Summary != "" {
		fmt.Fprintf(&b, "    <dc:description>%s</dc:description>\n", escapeXML(meta.Summary))
	}
	for _, tag := range meta.Tags {
		fmt.Fprintf(&b, "    <dc:subject>%s</dc:subject>\n", escapeXML(tag))
	}
	if coverItemID != "" {
		fmt.Fprintf(&b, "    <meta name=\"cover\" content=\"%s\"/>\n", escapeXML(coverItemID))
	}
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	for _, it := range manifest {
		b.WriteString("    <item")
		fmt.Fprintf(&b, " id=\"%s\"", escapeXML(it.ID))
		fmt.Fprintf(&b, " href=\"%s\"", escapeXML(it.Href))
		fmt.Fprintf(&b, " media-type=\"%s\"", escapeXML(it.MediaType))
		if it.Properties != "" {
			fmt.Fprintf(&b, " properties=\"%s\"", escapeXML(it.Properties))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </manifest>\n")

	toc := ncxID
	if toc == "" {
		toc = navID
	}
	fmt.Fprintf(&b, "  <spine toc=\"%s\">\n", escapeXML(toc))
	for _, id := range spine {
		fmt.Fprintf(&b, "    <itemref idref=\"%s\"/>\n", escapeXML(id))
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")

	return []byte(b.String())
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func escapeXML(s string) string {
	return html.EscapeString(s)
}
