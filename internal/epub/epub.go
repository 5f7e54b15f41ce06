// Package epub implements the shared OCF/OPF container primitives used by
// both the Packager (building a container) and the Unpackager (reading
// one): the container.xml rootfile pointer, the OPF package document
// (metadata, manifest, spine), and the nav/NCX table of contents.
package epub

import "strings"

// Metadata is the package document's Dublin Core metadata subset this
// system round-trips (spec.md §4.G, §4.H).
type Metadata struct {
	Title    string
	Author   string
	Summary  string
	Language string
	Tags     []string
}

// ManifestItem is one `<item>` entry in the OPF manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string // e.g. "cover-image", "nav"
}

// NavEntry is one table-of-contents node: a (title, href-without-fragment)
// pair with optional children, used for both the EPUB3 nav document and
// the EPUB2 NCX, and as the Unpackager's parsed TOC tree (spec.md §4.H.3).
type NavEntry struct {
	Title    string
	Href     string
	Children []NavEntry
}

const (
	MimeXHTML = "application/xhtml+xml"
	MimeCSS   = "text/css"
	MimeNCX   = "application/x-dtbncx+xml"
)

// MimeToExt maps an image media type to a file extension, falling back to
// "" when unrecognized.
func MimeToExt(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	default:
		return ""
	}
}

// ExtToMime is MimeToExt's inverse, defaulting to image/jpeg.
func ExtToMime(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

// Stylesheet is the one shared CSS asset every container embeds: paragraph,
// heading, image, TOC list, footnote-link and footnote-aside styling
// (spec.md §6, "one stylesheet providing ... styling").
const Stylesheet = `body {
  font-family: serif;
  line-height: 1.6;
  margin: 1em;
}
h1 {
  font-size: 1.6em;
  text-align: center;
  margin: 1.2em 0 0.8em;
}
h2 {
  font-size: 1.3em;
  margin: 1.5em 0 0.6em;
}
p {
  margin: 0 0 0.8em;
  text-indent: 1.2em;
}
img {
  display: block;
  max-width: 100%;
  height: auto;
  margin: 1em auto;
}
nav ol {
  list-style: none;
  padding-left: 1em;
}
nav li {
  margin: 0.3em 0;
}
a.footnote-link {
  font-size: 0.75em;
  vertical-align: super;
  text-decoration: none;
  color: #2a5db0;
}
aside.footnote-content {
  font-size: 0.85em;
  border-top: 1px solid #ccc;
  margin-top: 2em;
  padding-top: 0.5em;
}
aside.footnote-content .note-header {
  font-weight: bold;
  margin-bottom: 0.3em;
}
`
