package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Container is an opened EPUB/OCF archive with its package-document
// metadata, manifest, spine and parsed TOC already resolved (spec.md
// §4.H.1–3).
type Container struct {
	zr           *zip.ReadCloser
	files        map[string]*zip.File
	OPFDir       string
	Meta         Metadata
	Manifest     []ManifestItem
	manifestByID map[string]ManifestItem
	Spine        []string
	TOC          []NavEntry
	CoverItemID  string
}

// Open reads path as a zip archive and resolves its OCF/OPF structure.
func Open(path string) (*Container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %q: %w", path, err)
	}

	c, err := newContainer(&zr.Reader)
	if err != nil {
		zr.Close()
		return nil, err
	}
	c.zr = zr
	return c, nil
}

// Close releases the underlying archive handle.
func (c *Container) Close() error {
	if c.zr != nil {
		return c.zr.Close()
	}
	return nil
}

func newContainer(zr *zip.Reader) (*Container, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := readContainerXML(zr)
	if err != nil {
		return nil, err
	}
	opfFile, ok := files[opfPath]
	if !ok {
		return nil, fmt.Errorf("epub: package document %q not found in archive", opfPath)
	}
	rc, err := opfFile.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open package document: %w", err)
	}
	defer rc.Close()

	meta, manifest, spine, ncxID, coverItemID, err := ParsePackageDocument(rc)
	if err != nil {
		return nil, err
	}

	c := &Container{
		files:        files,
		OPFDir:       dirOf(opfPath),
		Meta:         meta,
		Manifest:     manifest,
		manifestByID: make(map[string]ManifestItem, len(manifest)),
		Spine:        spine,
		CoverItemID:  coverItemID,
	}
	for _, m := range manifest {
		c.manifestByID[m.ID] = m
	}

	toc, err := c.loadTOC(ncxID)
	if err != nil {
		return nil, err
	}
	c.TOC = toc
	return c, nil
}

// loadTOC locates the nav document (an xhtml manifest item whose href
// contains "nav") or, failing that, the NCX referenced by ncxID, and
// parses it into a TOC tree.
func (c *Container) loadTOC(ncxID string) ([]NavEntry, error) {
	for _, m := range c.Manifest {
		if m.MediaType == MimeXHTML && (strings.Contains(m.Properties, "nav") || strings.Contains(strings.ToLower(m.Href), "nav")) {
			data, ok := c.readManifestItem(m)
			if !ok {
				continue
			}
			entries, err := ParseNavXHTML(strings.NewReader(string(data)))
			if err == nil {
				return entries, nil
			}
		}
	}
	if ncxID != "" {
		if m, ok := c.manifestByID[ncxID]; ok {
			if data, ok := c.readManifestItem(m); ok {
				return ParseNCX(strings.NewReader(string(data)))
			}
		}
	}
	return nil, nil
}

func (c *Container) readManifestItem(m ManifestItem) ([]byte, bool) {
	return c.ReadFile(c.resolve(c.OPFDir, m.Href))
}

// ReadDocument returns the bytes of the manifest item whose href is href
// (resolved against the OPF directory).
func (c *Container) ReadDocument(href string) ([]byte, bool) {
	return c.ReadFile(c.resolve(c.OPFDir, href))
}

// ReadFile returns the bytes stored at the exact archive path zipPath.
func (c *Container) ReadFile(zipPath string) ([]byte, bool) {
	f, ok := c.files[zipPath]
	if !ok {
		return nil, false
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}
	return data, true
}

// FindByBasename returns the first manifest item whose href's basename
// equals name, used as a fallback when an <img> src cannot be resolved by
// path (spec.md §4.H.6: "then by matching basename against manifest image
// items").
func (c *Container) FindByBasename(name string) (ManifestItem, bool) {
	for _, m := range c.Manifest {
		if path.Base(m.Href) == name {
			return m, true
		}
	}
	return ManifestItem{}, false
}

// ManifestByID looks up a manifest item by its id.
func (c *Container) ManifestByID(id string) (ManifestItem, bool) {
	m, ok := c.manifestByID[id]
	return m, ok
}

// resolve joins a relative href against dir using archive (forward-slash)
// path semantics, cleaning any "../" segments.
func (c *Container) resolve(dir, href string) string {
	href = stripFragment(href)
	if strings.HasPrefix(href, "/") {
		return path.Clean(strings.TrimPrefix(href, "/"))
	}
	if dir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(dir, href))
}

// Resolve exposes resolve for callers outside the package (the Unpackager
// resolves <img src> values against each chapter document's own
// directory, not just the OPF directory).
func (c *Container) Resolve(dir, href string) string { return c.resolve(dir, href) }

func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}
