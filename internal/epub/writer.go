package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Document is one spine-ordered XHTML content document to embed.
type Document struct {
	ID   string
	Href string
	Body string // inner <body> HTML, already sanitized/footnote-processed
}

// Builder assembles a complete EPUB3 container: one mimetype entry, the
// OCF container pointer, an OPF package document, an EPUB3 nav document
// plus an EPUB2 NCX fallback, the shared stylesheet, and the caller's
// content documents (spec.md §4.G, §6 "Container (e-book) requirements").
type Builder struct {
	meta    Metadata
	docs    []Document
	toc     []NavEntry
	counter int
}

// NewBuilder starts a Builder for meta. Language defaults to "vi" per
// spec.md §6 if left empty.
func NewBuilder(meta Metadata) *Builder {
	if meta.Language == "" {
		meta.Language = "vi"
	}
	return &Builder{meta: meta}
}

// AddDocument appends a content document with auto-assigned id/href and
// returns the href so the caller can reference it from the TOC.
func (b *Builder) AddDocument(bodyHTML string) string {
	b.counter++
	id := fmt.Sprintf("doc%04d", b.counter)
	href := fmt.Sprintf("text/%s.xhtml", id)
	b.docs = append(b.docs, Document{ID: id, Href: href, Body: bodyHTML})
	return href
}

// SetTOC installs the navigation tree (volume → chapters; a single-volume
// build has one volume entry).
func (b *Builder) SetTOC(toc []NavEntry) { b.toc = toc }

// Build assembles the full container into an in-memory zip archive.
func (b *Builder) Build() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeStored(zw, "mimetype", []byte("application/epub+zip")); err != nil {
		return nil, err
	}

	if err := writeDeflated(zw, "META-INF/container.xml", buildContainerXML("OEBPS/content.opf")); err != nil {
		return nil, err
	}

	manifest := []ManifestItem{
		{ID: "style", Href: "style.css", MediaType: MimeCSS},
		{ID: "nav", Href: "nav.xhtml", MediaType: MimeXHTML, Properties: "nav"},
		{ID: "ncx", Href: "toc.ncx", MediaType: MimeNCX},
	}
	spine := []string{}
	for _, d := range b.docs {
		manifest = append(manifest, ManifestItem{ID: d.ID, Href: d.Href, MediaType: MimeXHTML})
		spine = append(spine, d.ID)
	}

	opf := BuildPackageDocument(b.meta, manifest, spine, "nav", "ncx", "")
	if err := writeDeflated(zw, "OEBPS/content.opf", opf); err != nil {
		return nil, err
	}
	if err := writeDeflated(zw, "OEBPS/style.css", []byte(Stylesheet)); err != nil {
		return nil, err
	}
	if err := writeDeflated(zw, "OEBPS/nav.xhtml", BuildNavXHTML(b.meta.Title, b.toc)); err != nil {
		return nil, err
	}
	if err := writeDeflated(zw, "OEBPS/toc.ncx", BuildNCX(b.meta.Title, b.toc)); err != nil {
		return nil, err
	}

	for _, d := range b.docs {
		if err := writeDeflated(zw, "OEBPS/"+d.Href, renderXHTMLDocument(d)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("epub: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXHTMLDocument(d Document) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeaderXHTML)
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	b.WriteString("<head><meta charset=\"utf-8\"/><link rel=\"stylesheet\" type=\"text/css\" href=\"../style.css\"/></head>\n")
	b.WriteString("<body>\n")
	b.WriteString(d.Body)
	b.WriteString("\n</body>\n</html>\n")
	return b.Bytes()
}

const xmlHeaderXHTML = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE html>\n"

func writeStored(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epub: create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func writeDeflated(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("epub: create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}
