// Package downloader implements the Chapter Downloader: per-chapter
// acquisition with caching, deterministic chapter/cover image naming, and
// Volume Record / Novel Record persistence (spec §4.F).
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakoarchive/hakodl/internal/catalog"
	"github.com/hakoarchive/hakodl/internal/fabric"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/util"
)

// ProgressFunc reports (done, total) enqueued-for-download chapters as
// DownloadVolume processes them.
type ProgressFunc func(done, total int)

// Downloader is constructed with a parsed Novel, the base directory it
// owns for the duration of a download, and the Network Fabric it fetches
// through (spec §4.F).
type Downloader struct {
	novel   *catalog.Novel
	baseDir string
	fab     *fabric.Fabric
}

// New constructs a Downloader.
func New(novel *catalog.Novel, baseDir string, fab *fabric.Fabric) *Downloader {
	return &Downloader{novel: novel, baseDir: baseDir, fab: fab}
}

// CreateMetadataFile ensures the base and images/ directories exist,
// downloads the novel's main cover if set, builds the Novel Record with a
// dense 1-based volume order, and persists it as metadata.json.
func (d *Downloader) CreateMetadataFile(ctx context.Context) (*record.NovelRecord, error) {
	if err := os.MkdirAll(filepath.Join(d.baseDir, "images"), 0o755); err != nil {
		return nil, fmt.Errorf("downloader: create base dirs: %w", err)
	}

	coverLocal := ""
	if d.novel.MainCover != "" {
		rel := filepath.Join("images", "main_cover."+util.ExtFromURL(d.novel.MainCover))
		if ok, err := d.fab.DownloadToFile(ctx, d.novel.MainCover, filepath.Join(d.baseDir, rel)); err == nil && ok {
			coverLocal = filepath.ToSlash(rel)
		}
	}

	rec := &record.NovelRecord{
		NovelName:       d.novel.Title,
		Author:          d.novel.Author,
		Tags:            append([]string{}, d.novel.Tags...),
		Summary:         d.novel.Summary,
		CoverImageLocal: coverLocal,
		URL:             d.novel.URL,
	}
	for i, v := range d.novel.Volumes {
		rec.Volumes = append(rec.Volumes, record.VolumeDescriptor{
			Order:    i + 1,
			Name:     v.Name,
			Filename: util.Slug(v.Name) + ".json",
			URL:      v.URL,
		})
	}

	if err := record.SaveJSON(filepath.Join(d.baseDir, "metadata.json"), rec); err != nil {
		return nil, fmt.Errorf("downloader: write metadata.json: %w", err)
	}
	return rec, nil
}

// DownloadVolume is idempotent per volume: chapters already cached and
// still valid are reused, only missing/invalid chapters are fetched, and
// the result is persisted as the volume's Volume Record (spec §4.F).
func (d *Downloader) DownloadVolume(ctx context.Context, volume catalog.Volume, progress ProgressFunc) (*record.VolumeRecord, error) {
	jsonPath := filepath.Join(d.baseDir, util.Slug(volume.Name)+".json")
	volSlug := strings.ToLower(util.Slug(volume.Name))

	existing, err := record.LoadVolumeRecord(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("downloader: load %s: %w", jsonPath, err)
	}
	cachedByURL := make(map[string]record.ChapterContent)
	if existing != nil {
		for _, cc := range existing.Chapters {
			cachedByURL[cc.URL] = cc
		}
	}

	slots := make([]*record.ChapterContent, len(volume.Chapters))
	var pending []int
	for i, ch := range volume.Chapters {
		if cc, ok := cachedByURL[ch.URL]; ok && d.ValidateCached(cc) {
			cc.Index = i
			slots[i] = &cc
		} else {
			pending = append(pending, i)
		}
	}

	total := len(pending)
	for done, i := range pending {
		ch := volume.Chapters[i]
		cc, err := d.ProcessChapter(ctx, i, ch, volSlug)
		if err != nil {
			return nil, fmt.Errorf("downloader: process chapter %q: %w", ch.Name, err)
		}
		slots[i] = cc
		if progress != nil {
			progress(done+1, total)
		}
		if done < total-1 {
			if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
				return nil, err
			}
		}
	}

	var chapters []record.ChapterContent
	for _, s := range slots {
		if s != nil {
			chapters = append(chapters, *s)
		}
	}
	sort.Slice(chapters, func(a, b int) bool { return chapters[a].Index < chapters[b].Index })

	coverLocal := ""
	if volume.CoverImg != "" {
		rel := filepath.Join("images", fmt.Sprintf("vol_cover_%s.%s", util.Slug(volume.Name), util.ExtFromURL(volume.CoverImg)))
		if ok, err := d.fab.DownloadToFile(ctx, volume.CoverImg, filepath.Join(d.baseDir, rel)); err == nil && ok {
			coverLocal = filepath.ToSlash(rel)
		}
	}

	rec := &record.VolumeRecord{
		VolumeName:      volume.Name,
		VolumeURL:       volume.URL,
		CoverImageLocal: coverLocal,
		Chapters:        chapters,
	}
	if err := record.SaveJSON(jsonPath, rec); err != nil {
		return nil, fmt.Errorf("downloader: write %s: %w", jsonPath, err)
	}
	return rec, nil
}

// ValidateCached reports whether a cached chapter's content is still
// usable: at least 50 bytes long, and every images/-relative <img src> it
// references still exists on disk with size > 0 (spec §4.F).
func (d *Downloader) ValidateCached(cc record.ChapterContent) bool {
	if len(cc.Content) < 50 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cc.Content))
	if err != nil {
		return false
	}
	valid := true
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if !strings.HasPrefix(src, "images/") {
			return true
		}
		info, err := os.Stat(filepath.Join(d.baseDir, filepath.FromSlash(src)))
		if err != nil || info.Size() <= 0 {
			valid = false
			return false
		}
		return true
	})
	return valid
}

// sleepCtx sleeps for d or returns early with ctx's error if ctx is
// cancelled first — the single suspension point for the 500ms
// inter-chapter pacing delay (spec §5).
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
