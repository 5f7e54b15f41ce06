// Package unpackager implements the Unpackager: reading an existing EPUB
// container and regenerating the Downloader's canonical on-disk form
// (metadata.json + per-volume records + images/), the inverse of the
// Packager (spec §4.H).
package unpackager

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/util"
)

// Options configures one Unpack call (spec §4.H).
type Options struct {
	// OutputDir is the base directory the canonical on-disk form is
	// written under. Defaults to containerPath with its extension
	// stripped.
	OutputDir string
	// CleanVolumeName optionally rewrites a TOC volume title into its
	// canonical volume name; a nil or empty-returning func keeps the
	// raw title.
	CleanVolumeName func(title string) string
}

// Unpack opens containerPath and regenerates metadata.json, one Volume
// Record per derived volume, and images/ under opts.OutputDir.
func Unpack(containerPath string, opts Options) (*record.NovelRecord, error) {
	c, err := epub.Open(containerPath)
	if err != nil {
		return nil, fmt.Errorf("unpackager: %w", err)
	}
	defer c.Close()

	baseDir := opts.OutputDir
	if baseDir == "" {
		baseDir = strings.TrimSuffix(containerPath, filepath.Ext(containerPath))
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "images"), 0o755); err != nil {
		return nil, fmt.Errorf("unpackager: create base dirs: %w", err)
	}

	author := util.FirstNonEmpty(c.Meta.Author, "Unknown")

	coverLocal, err := extractCover(c, baseDir)
	if err != nil {
		return nil, err
	}

	defs := buildVolumeDefs(c, opts.CleanVolumeName)

	var descriptors []record.VolumeDescriptor
	var totalImages imageStats
	for order, vol := range defs {
		volSlug := strings.ToLower(util.Slug(vol.Name))
		hrefOrder := deriveChapterOrder(c, vol.Hrefs)

		var chapters []record.ChapterContent
		for i, href := range hrefOrder {
			title := vol.titleFor(href)
			cc, stats, err := materializeChapter(c, baseDir, href, title, i, volSlug)
			if err != nil {
				return nil, err
			}
			totalImages = totalImages.add(stats)
			if cc == nil {
				continue
			}
			chapters = append(chapters, *cc)
		}
		for idx := range chapters {
			chapters[idx].Index = idx
		}

		filename := util.Slug(vol.Name) + ".json"
		vr := &record.VolumeRecord{
			VolumeName:      vol.Name,
			VolumeURL:       "",
			CoverImageLocal: "",
			Chapters:        chapters,
		}
		if err := record.SaveJSON(filepath.Join(baseDir, filename), vr); err != nil {
			return nil, fmt.Errorf("unpackager: write %s: %w", filename, err)
		}

		descriptors = append(descriptors, record.VolumeDescriptor{
			Order:    order + 1,
			Name:     vol.Name,
			Filename: filename,
			URL:      "",
		})
	}

	novel := &record.NovelRecord{
		NovelName:       c.Meta.Title,
		Author:          author,
		Tags:            append([]string{}, c.Meta.Tags...),
		Summary:         c.Meta.Summary,
		CoverImageLocal: coverLocal,
		URL:             "",
		Volumes:         descriptors,
	}
	if err := record.SaveJSON(filepath.Join(baseDir, "metadata.json"), novel); err != nil {
		return nil, fmt.Errorf("unpackager: write metadata.json: %w", err)
	}
	log.Printf("unpacked %q: %d image(s), %s", novel.NovelName, totalImages.Count, humanize.Bytes(uint64(totalImages.Bytes)))
	return novel, nil
}

// deriveChapterOrder intersects hrefs with the container's spine order,
// falling back to hrefs' own (TOC) order when the intersection is empty
// (spec §4.H.6).
func deriveChapterOrder(c *epub.Container, hrefs []string) []string {
	want := make(map[string]bool, len(hrefs))
	for _, h := range hrefs {
		want[h] = true
	}

	var spineOrder []string
	for _, id := range c.Spine {
		item, ok := c.ManifestByID(id)
		if !ok {
			continue
		}
		if want[item.Href] {
			spineOrder = append(spineOrder, item.Href)
		}
	}
	if len(spineOrder) > 0 {
		return spineOrder
	}
	return hrefs
}
