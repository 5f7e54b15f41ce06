// Package packager implements the Packager: turning a Downloader's
// canonical on-disk form (metadata.json + per-volume records + images/)
// into merged or per-volume EPUB containers, with image transcoding
// memoized per build session (spec §4.G).
package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/util"
)

// imageCacheSize bounds the memoizing image cache; a novel with more
// distinct images than this simply re-processes the overflow, it never
// errors (spec §5: "a memoizing image cache private to one build
// session").
const imageCacheSize = 4096

// Config holds the Packager's build-session settings (spec §4.G).
type Config struct {
	CompressImages bool
	OutputDir      string
}

// processedImage is one ProcessImage result: the bytes to embed, its MIME
// type, and the (possibly extension-changed) relative path.
type processedImage struct {
	Data []byte
	Mime string
	Rel  string
}

// Packager operates on one base directory's canonical on-disk form.
type Packager struct {
	baseDir    string
	cfg        Config
	cache      *lru.Cache[string, processedImage]
	transcoder Transcoder
}

// New constructs a Packager over baseDir. A nil transcoder defaults to
// JPEGTranscoder at quality 75.
func New(baseDir string, cfg Config, transcoder Transcoder) *Packager {
	cache, _ := lru.New[string, processedImage](imageCacheSize)
	if transcoder == nil {
		transcoder = JPEGTranscoder{}
	}
	return &Packager{baseDir: baseDir, cfg: cfg, cache: cache, transcoder: transcoder}
}

// ClearCache empties the memoizing image cache (spec §5).
func (p *Packager) ClearCache() { p.cache.Purge() }

// ProcessImage resolves rel (an images/… path relative to the base
// directory) to embeddable bytes, memoized across calls within this
// Packager's lifetime. It reports ok=false when the file is missing or
// empty (spec §4.G).
func (p *Packager) ProcessImage(rel string) (data []byte, mime string, newRel string, ok bool) {
	if cached, hit := p.cache.Get(rel); hit {
		return cached.Data, cached.Mime, cached.Rel, true
	}

	full := filepath.Join(p.baseDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.Size() == 0 {
		return nil, "", "", false
	}
	raw, err := os.ReadFile(full)
	if err != nil || len(raw) == 0 {
		return nil, "", "", false
	}

	result := processedImage{Data: raw, Mime: mimeFromExt(rel), Rel: rel}
	if p.cfg.CompressImages {
		if jpegBytes, err := p.transcoder.ToJPEG(raw, 75); err == nil {
			result = processedImage{
				Data: jpegBytes,
				Mime: "image/jpeg",
				Rel:  strings.TrimSuffix(rel, filepath.Ext(rel)) + ".jpg",
			}
		}
	}

	p.cache.Add(rel, result)
	return result.Data, result.Mime, result.Rel, true
}

func mimeFromExt(rel string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
	return epub.ExtToMime(ext)
}

func novelOutputFilename(novelName string) string {
	return util.Slug(novelName+" Full") + ".epub"
}

func volumeOutputFilename(volumeName, novelName string) string {
	return util.Slug(fmt.Sprintf("%s - %s", volumeName, novelName)) + ".epub"
}
