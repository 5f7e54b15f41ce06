package unpackager

import "github.com/hakoarchive/hakodl/internal/epub"

// volumeDef is one derived Volume definition: its name, the hrefs of its
// chapter documents (in whatever order step 5 gathered them), and the
// title each href had in the TOC (spec §4.H.5).
type volumeDef struct {
	Name   string
	Hrefs  []string
	titles map[string]string
}

func (v volumeDef) titleFor(href string) string {
	return v.titles[href]
}

// buildVolumeDefs derives Volume definitions from the container's parsed
// TOC, falling back to a single spine-derived volume when the TOC is
// absent or empty (spec §4.H.5).
func buildVolumeDefs(c *epub.Container, cleanName func(string) string) []volumeDef {
	if defs := volumesFromNestedTOC(c.TOC, cleanName); len(defs) > 0 {
		return defs
	}
	if def, ok := volumeFromFlatTOC(c.TOC, c.Meta.Title); ok {
		return []volumeDef{def}
	}
	return []volumeDef{volumeFromSpine(c)}
}

// volumesFromNestedTOC returns one volumeDef per top-level TOC entry that
// has children, or nil if no top-level entry has any.
func volumesFromNestedTOC(toc []epub.NavEntry, cleanName func(string) string) []volumeDef {
	var defs []volumeDef
	for _, e := range toc {
		if len(e.Children) == 0 {
			continue
		}
		name := e.Title
		if cleanName != nil {
			if cleaned := cleanName(e.Title); cleaned != "" {
				name = cleaned
			}
		}
		def := volumeDef{Name: name, titles: map[string]string{}}
		for _, ch := range e.Children {
			if ch.Href == "" {
				continue
			}
			def.Hrefs = append(def.Hrefs, ch.Href)
			def.titles[ch.Href] = ch.Title
		}
		defs = append(defs, def)
	}
	return defs
}

// volumeFromFlatTOC flattens every href in toc (at any depth) into one
// volume named novelTitle.
func volumeFromFlatTOC(toc []epub.NavEntry, novelTitle string) (volumeDef, bool) {
	def := volumeDef{Name: novelTitle, titles: map[string]string{}}
	var walk func([]epub.NavEntry)
	walk = func(entries []epub.NavEntry) {
		for _, e := range entries {
			if e.Href != "" {
				def.Hrefs = append(def.Hrefs, e.Href)
				def.titles[e.Href] = e.Title
			}
			walk(e.Children)
		}
	}
	walk(toc)
	return def, len(def.Hrefs) > 0
}

// volumeFromSpine is the final fallback: one volume spanning every
// xhtml document the spine references, in spine order.
func volumeFromSpine(c *epub.Container) volumeDef {
	def := volumeDef{Name: c.Meta.Title, titles: map[string]string{}}
	for _, id := range c.Spine {
		item, ok := c.ManifestByID(id)
		if !ok || item.MediaType != epub.MimeXHTML {
			continue
		}
		def.Hrefs = append(def.Hrefs, item.Href)
		def.titles[item.Href] = item.Href
	}
	return def
}
