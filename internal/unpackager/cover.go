package unpackager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/util"
)

// extractCover locates the container's cover image, by CoverItemID or by
// a manifest item with properties="cover-image", and saves it to
// <baseDir>/images/main_cover.<ext>. It returns "" without error when no
// cover is found (spec §4.H.4).
func extractCover(c *epub.Container, baseDir string) (string, error) {
	item, ok := findCoverItem(c)
	if !ok {
		return "", nil
	}
	data, ok := c.ReadDocument(item.Href)
	if !ok {
		return "", nil
	}

	ext := epub.MimeToExt(item.MediaType)
	if ext == "" {
		ext = util.ExtFromURL(item.Href)
	}
	rel := filepath.Join("images", "main_cover."+ext)
	if err := os.WriteFile(filepath.Join(baseDir, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("unpackager: write cover: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func findCoverItem(c *epub.Container) (epub.ManifestItem, bool) {
	if c.CoverItemID != "" {
		if item, ok := c.ManifestByID(c.CoverItemID); ok {
			return item, true
		}
	}
	for _, m := range c.Manifest {
		if strings.Contains(m.Properties, "cover-image") {
			return m, true
		}
	}
	return epub.ManifestItem{}, false
}
