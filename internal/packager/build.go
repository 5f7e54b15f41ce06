package packager

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/util"
)

// BuildMerged assembles every volume named in volumeRecordFilenames,
// sorted by their order in metadata.json, into a single EPUB container
// with a volume→chapter TOC (spec §4.G).
func (p *Packager) BuildMerged(volumeRecordFilenames []string) (string, error) {
	novel, err := p.loadNovelRecord()
	if err != nil {
		return "", err
	}
	ordered := p.sortByMetadataOrder(novel, volumeRecordFilenames)

	b := epub.NewBuilder(epub.Metadata{
		Title:   novel.NovelName,
		Author:  novel.Author,
		Summary: novel.Summary,
		Tags:    novel.Tags,
	})

	introHref := b.AddDocument(p.introBody(novel))
	toc := []epub.NavEntry{{Title: novel.NovelName, Href: introHref}}

	for _, filename := range ordered {
		vol, err := record.LoadVolumeRecord(filepath.Join(p.baseDir, filename))
		if err != nil {
			return "", fmt.Errorf("packager: load volume record %s: %w", filename, err)
		}
		if vol == nil {
			continue
		}
		toc = append(toc, p.addVolume(b, vol))
	}
	b.SetTOC(toc)

	data, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("packager: build merged container: %w", err)
	}

	outPath := p.mergedOutputPath(novel.NovelName)
	if err := p.writeContainer(outPath, data); err != nil {
		return "", err
	}
	return outPath, nil
}

// BuildVolume assembles a single volume into its own EPUB container,
// titled "<volumeName> - <novelName>" (spec §4.G).
func (p *Packager) BuildVolume(volumeRecordFilename string) (string, error) {
	novel, err := p.loadNovelRecord()
	if err != nil {
		return "", err
	}
	vol, err := record.LoadVolumeRecord(filepath.Join(p.baseDir, volumeRecordFilename))
	if err != nil {
		return "", fmt.Errorf("packager: load volume record %s: %w", volumeRecordFilename, err)
	}
	if vol == nil {
		return "", fmt.Errorf("packager: volume record %s not found", volumeRecordFilename)
	}

	b := epub.NewBuilder(epub.Metadata{
		Title:   fmt.Sprintf("%s - %s", vol.VolumeName, novel.NovelName),
		Author:  novel.Author,
		Summary: novel.Summary,
		Tags:    novel.Tags,
	})
	b.SetTOC([]epub.NavEntry{p.addVolume(b, vol)})

	data, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("packager: build volume container: %w", err)
	}

	outPath := p.volumeOutputPath(vol.VolumeName, novel.NovelName)
	if err := p.writeContainer(outPath, data); err != nil {
		return "", err
	}
	return outPath, nil
}

func (p *Packager) loadNovelRecord() (*record.NovelRecord, error) {
	novel, err := record.LoadNovelRecord(filepath.Join(p.baseDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("packager: load metadata.json: %w", err)
	}
	if novel == nil {
		return nil, fmt.Errorf("packager: metadata.json not found in %s", p.baseDir)
	}
	return novel, nil
}

// sortByMetadataOrder sorts filenames by each filename's order in
// novel.Volumes; filenames with no matching descriptor sort last
// (spec §4.G.1).
func (p *Packager) sortByMetadataOrder(novel *record.NovelRecord, filenames []string) []string {
	order := make(map[string]int, len(novel.Volumes))
	for _, vd := range novel.Volumes {
		order[vd.Filename] = vd.Order
	}
	out := append([]string{}, filenames...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oki := order[out[i]]
		oj, okj := order[out[j]]
		if !oki {
			return false
		}
		if !okj {
			return true
		}
		return oi < oj
	})
	return out
}

// addVolume appends a separator document and one document per chapter to
// b, and returns the volume's TOC entry with one child per chapter
// (spec §4.G.3).
func (p *Packager) addVolume(b *epub.Builder, vol *record.VolumeRecord) epub.NavEntry {
	sepHref := b.AddDocument(p.volumeSeparatorBody(vol))
	entry := epub.NavEntry{Title: vol.VolumeName, Href: sepHref}

	for _, ch := range vol.Chapters {
		body := p.embedImages(ch.Content)
		href := b.AddDocument(fmt.Sprintf("<h2>%s</h2>\n%s", escapeText(ch.Title), body))
		entry.Children = append(entry.Children, epub.NavEntry{Title: ch.Title, Href: href})
	}
	return entry
}

func (p *Packager) introBody(novel *record.NovelRecord) string {
	var b strings.Builder
	if uri, ok := p.dataURI(novel.CoverImageLocal); ok {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"cover\"/>\n", uri)
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n", escapeText(novel.NovelName))
	fmt.Fprintf(&b, "<h2>%s</h2>\n", escapeText(novel.Author))
	if len(novel.Tags) > 0 {
		fmt.Fprintf(&b, "<p class=\"tags\">%s</p>\n", escapeText(strings.Join(novel.Tags, ", ")))
	}
	b.WriteString(novel.Summary)
	return b.String()
}

func (p *Packager) volumeSeparatorBody(vol *record.VolumeRecord) string {
	var b strings.Builder
	if uri, ok := p.dataURI(vol.CoverImageLocal); ok {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"cover\"/>\n", uri)
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n", escapeText(vol.VolumeName))
	return b.String()
}

// embedImages rewrites every <img src="images/…"> in htmlFragment to a
// base64 data URI via ProcessImage, dropping any image that fails to
// process (spec §4.G.3).
func (p *Packager) embedImages(htmlFragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlFragment))
	if err != nil {
		return htmlFragment
	}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		uri, ok := p.dataURI(src)
		if !ok {
			s.Remove()
			return
		}
		s.SetAttr("src", uri)
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return htmlFragment
	}
	return out
}

func (p *Packager) dataURI(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	data, mime, _, ok := p.ProcessImage(rel)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), true
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func (p *Packager) mergedOutputPath(novelName string) string {
	filename := novelOutputFilename(novelName)
	if !p.cfg.CompressImages {
		return filepath.Join(p.cfg.OutputDir, filename)
	}
	return filepath.Join(p.cfg.OutputDir, util.Slug(novelName), "compressed", filename)
}

func (p *Packager) volumeOutputPath(volumeName, novelName string) string {
	filename := volumeOutputFilename(volumeName, novelName)
	variant := "original"
	if p.cfg.CompressImages {
		variant = "compressed"
	}
	return filepath.Join(p.cfg.OutputDir, util.Slug(novelName), variant, filename)
}

func (p *Packager) writeContainer(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("packager: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("packager: write %s: %w", path, err)
	}
	return nil
}
