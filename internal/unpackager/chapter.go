package unpackager

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakoarchive/hakodl/internal/content"
	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/util"
)

// droppedTOCWords are the case-insensitive title substrings that, paired
// with a short enough text length, mark a chapter document as a table
// of contents page rather than content (spec §4.H.6).
var droppedTOCWords = []string{"toc", "contents", "mục lục"}

// materializeChapter reads href, optionally drops it as front matter,
// rewrites its images, and runs it through ProcessFootnotes then
// CleanHtml. It returns (nil, imageStats{}, nil) when href is dropped
// rather than materialized.
func materializeChapter(c *epub.Container, baseDir, href, title string, i int, volSlug string) (*record.ChapterContent, imageStats, error) {
	data, ok := c.ReadDocument(href)
	if !ok {
		return nil, imageStats{}, fmt.Errorf("unpackager: chapter document %q not found", href)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, imageStats{}, fmt.Errorf("unpackager: parse chapter document %q: %w", href, err)
	}

	textLen := len(strings.TrimSpace(doc.Text()))
	lowerTitle := strings.ToLower(title)
	if textLen < 100 && strings.Contains(lowerTitle, "cover") {
		return nil, imageStats{}, nil
	}
	if textLen < 50 && containsAny(lowerTitle, droppedTOCWords) {
		return nil, imageStats{}, nil
	}

	stats := rewriteImages(c, doc.Selection, baseDir, href, i, volSlug)

	var bodyHTML string
	body := doc.Find("body")
	if body.Length() > 0 {
		bodyHTML, err = body.Html()
	} else {
		bodyHTML, err = doc.Html()
	}
	if err != nil {
		return nil, imageStats{}, fmt.Errorf("unpackager: serialize chapter document %q: %w", href, err)
	}

	slug := fmt.Sprintf("%s_chap_%d", volSlug, i)
	processed, err := content.ProcessFootnotes(bodyHTML, slug)
	if err != nil {
		return nil, imageStats{}, fmt.Errorf("unpackager: process footnotes for %q: %w", href, err)
	}
	cleaned, err := content.CleanHtml(processed)
	if err != nil {
		return nil, imageStats{}, fmt.Errorf("unpackager: clean html for %q: %w", href, err)
	}

	return &record.ChapterContent{Title: title, URL: "", Content: cleaned, Index: i}, stats, nil
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// imageStats accumulates the count and total byte size of images an
// Unpack call writes to disk, for the closing summary log line.
type imageStats struct {
	Count int
	Bytes int64
}

func (s imageStats) add(other imageStats) imageStats {
	return imageStats{Count: s.Count + other.Count, Bytes: s.Bytes + other.Bytes}
}

// rewriteImages resolves and saves every <img> under sel, rewriting its
// src to the on-disk path, or dropping the element when its bytes
// cannot be located (spec §4.H.6).
func rewriteImages(c *epub.Container, sel *goquery.Selection, baseDir, chapterHref string, i int, volSlug string) imageStats {
	var stats imageStats
	sel.Find("img").Each(func(m int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			s.Remove()
			return
		}
		var data []byte
		var mediaType string
		var found bool
		if strings.HasPrefix(src, "data:") {
			data, mediaType, found = decodeDataURI(src)
		} else {
			data, mediaType, found = locateImageBytes(c, chapterHref, src)
		}
		if !found {
			s.Remove()
			return
		}

		ext := epub.MimeToExt(mediaType)
		if ext == "" {
			ext = util.ExtFromURL(src)
		}
		rel := filepath.ToSlash(filepath.Join("images", fmt.Sprintf("%s_chap_%d_img_%d.%s", volSlug, i, m, ext)))
		if err := os.WriteFile(filepath.Join(baseDir, filepath.FromSlash(rel)), data, 0o644); err != nil {
			s.Remove()
			return
		}
		s.SetAttr("src", rel)
		stats.Count++
		stats.Bytes += int64(len(data))
	})
	return stats
}

// locateImageBytes resolves src against chapterHref's directory and
// tries, in order: the opf-base-prefixed resolved path, the resolved
// path alone, then a basename match against the manifest (spec
// §4.H.6).
func locateImageBytes(c *epub.Container, chapterHref, src string) (data []byte, mediaType string, ok bool) {
	chapterDir := path.Dir(chapterHref)
	if chapterDir == "." {
		chapterDir = ""
	}
	resolved := c.Resolve(chapterDir, src)

	full := resolved
	if c.OPFDir != "" {
		full = path.Clean(path.Join(c.OPFDir, resolved))
	}
	if data, ok := c.ReadFile(full); ok {
		return data, mediaTypeForBasename(c, path.Base(full)), true
	}
	if data, ok := c.ReadFile(resolved); ok {
		return data, mediaTypeForBasename(c, path.Base(resolved)), true
	}
	if item, ok := c.FindByBasename(path.Base(src)); ok {
		if data, ok := c.ReadDocument(item.Href); ok {
			return data, item.MediaType, true
		}
	}
	return nil, "", false
}

// decodeDataURI decodes a "data:<mediatype>;base64,<payload>" src, the
// form the Packager embeds every chapter image as.
func decodeDataURI(src string) (data []byte, mediaType string, ok bool) {
	rest := strings.TrimPrefix(src, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", false
	}
	header, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", false
	}
	mediaType = strings.TrimSuffix(header, ";base64")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return decoded, mediaType, true
}

func mediaTypeForBasename(c *epub.Container, basename string) string {
	if item, ok := c.FindByBasename(basename); ok {
		return item.MediaType
	}
	return ""
}
