package packager

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hakoarchive/hakodl/internal/epub"
	"github.com/hakoarchive/hakodl/internal/record"
)

type fakeTranscoder struct {
	calls  int
	output []byte
	err    error
}

func (f *fakeTranscoder) ToJPEG(data []byte, quality int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessImageNoCompression(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "images", "pic.png"), []byte("raw-png-bytes"))

	p := New(baseDir, Config{CompressImages: false}, nil)
	data, mime, rel, ok := p.ProcessImage("images/pic.png")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if string(data) != "raw-png-bytes" || mime != "image/png" || rel != "images/pic.png" {
		t.Errorf("data=%q mime=%q rel=%q", data, mime, rel)
	}
}

func TestProcessImageMissingFile(t *testing.T) {
	p := New(t.TempDir(), Config{}, nil)
	if _, _, _, ok := p.ProcessImage("images/missing.png"); ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestProcessImageCompressionMemoizes(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "images", "pic.png"), []byte("raw-png-bytes"))

	tc := &fakeTranscoder{output: []byte("jpeg-bytes")}
	p := New(baseDir, Config{CompressImages: true}, tc)

	data, mime, rel, ok := p.ProcessImage("images/pic.png")
	if !ok || string(data) != "jpeg-bytes" || mime != "image/jpeg" || rel != "images/pic.jpg" {
		t.Errorf("data=%q mime=%q rel=%q ok=%v", data, mime, rel, ok)
	}
	if tc.calls != 1 {
		t.Fatalf("transcoder calls = %d, want 1", tc.calls)
	}

	if _, _, _, ok := p.ProcessImage("images/pic.png"); !ok {
		t.Fatal("expected cached ok=true")
	}
	if tc.calls != 1 {
		t.Errorf("transcoder calls after cached hit = %d, want 1 (should not re-transcode)", tc.calls)
	}
}

func TestProcessImageTranscodeFailureFallsBackToOriginal(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "images", "pic.webp"), []byte("raw-webp-bytes"))

	tc := &fakeTranscoder{err: errFake}
	p := New(baseDir, Config{CompressImages: true}, tc)

	data, mime, rel, ok := p.ProcessImage("images/pic.webp")
	if !ok || string(data) != "raw-webp-bytes" || mime != "image/webp" || rel != "images/pic.webp" {
		t.Errorf("data=%q mime=%q rel=%q ok=%v", data, mime, rel, ok)
	}
}

var errFake = &transcodeError{}

type transcodeError struct{}

func (*transcodeError) Error() string { return "fake transcode failure" }

func setupBaseDir(t *testing.T) string {
	t.Helper()
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "images", "vol1_chap_0_img_0.jpg"), []byte("chapter-image-bytes"))

	novel := &record.NovelRecord{
		NovelName: "My Novel",
		Author:    "Author Name",
		Summary:   "<p>A summary.</p>",
		Tags:      []string{"Fantasy"},
		Volumes: []record.VolumeDescriptor{
			{Order: 1, Name: "Volume One", Filename: "Volume_One.json"},
		},
	}
	if err := record.SaveJSON(filepath.Join(baseDir, "metadata.json"), novel); err != nil {
		t.Fatal(err)
	}

	vol := &record.VolumeRecord{
		VolumeName: "Volume One",
		Chapters: []record.ChapterContent{
			{Title: "Chapter 1", Content: `<p>Once upon a time.</p><img src="images/vol1_chap_0_img_0.jpg"/>`, Index: 0},
		},
	}
	if err := record.SaveJSON(filepath.Join(baseDir, "Volume_One.json"), vol); err != nil {
		t.Fatal(err)
	}
	return baseDir
}

func TestBuildVolumeEmbedsImagesAsDataURI(t *testing.T) {
	baseDir := setupBaseDir(t)
	outputDir := t.TempDir()

	p := New(baseDir, Config{CompressImages: false, OutputDir: outputDir}, nil)
	outPath, err := p.BuildVolume("Volume_One.json")
	if err != nil {
		t.Fatalf("BuildVolume: %v", err)
	}

	wantRel := filepath.Join(outputDir, "My_Novel", "original", "Volume_One_-_My_Novel.epub")
	if outPath != wantRel {
		t.Errorf("outPath = %q, want %q", outPath, wantRel)
	}

	c, err := epub.Open(outPath)
	if err != nil {
		t.Fatalf("epub.Open: %v", err)
	}
	defer c.Close()

	if c.Meta.Title != "Volume One - My Novel" {
		t.Errorf("Title = %q", c.Meta.Title)
	}
	if len(c.Spine) != 2 {
		t.Fatalf("Spine = %v", c.Spine)
	}

	wantB64 := base64.StdEncoding.EncodeToString([]byte("chapter-image-bytes"))
	found := false
	for _, id := range c.Spine {
		item, ok := c.ManifestByID(id)
		if !ok {
			continue
		}
		doc, ok := c.ReadDocument(item.Href)
		if ok && strings.Contains(string(doc), wantB64) {
			found = true
		}
	}
	if !found {
		t.Error("no spine document embeds the expected base64 image data")
	}
}

func TestBuildMergedSortsVolumesByMetadataOrder(t *testing.T) {
	baseDir := setupBaseDir(t)
	vol2 := &record.VolumeRecord{VolumeName: "Volume Two", Chapters: []record.ChapterContent{{Title: "Ch A", Content: "<p>Two.</p>", Index: 0}}}
	if err := record.SaveJSON(filepath.Join(baseDir, "Volume_Two.json"), vol2); err != nil {
		t.Fatal(err)
	}

	novel, err := record.LoadNovelRecord(filepath.Join(baseDir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	novel.Volumes = append(novel.Volumes, record.VolumeDescriptor{Order: 2, Name: "Volume Two", Filename: "Volume_Two.json"})
	if err := record.SaveJSON(filepath.Join(baseDir, "metadata.json"), novel); err != nil {
		t.Fatal(err)
	}

	outputDir := t.TempDir()
	p := New(baseDir, Config{CompressImages: false, OutputDir: outputDir}, nil)

	outPath, err := p.BuildMerged([]string{"Volume_Two.json", "Volume_One.json"})
	if err != nil {
		t.Fatalf("BuildMerged: %v", err)
	}

	c, err := epub.Open(outPath)
	if err != nil {
		t.Fatalf("epub.Open: %v", err)
	}
	defer c.Close()

	if len(c.TOC) != 3 {
		t.Fatalf("TOC = %+v", c.TOC)
	}
	if c.TOC[1].Title != "Volume One" || c.TOC[2].Title != "Volume Two" {
		t.Errorf("TOC order = [%q, %q], want [Volume One, Volume Two]", c.TOC[1].Title, c.TOC[2].Title)
	}
}
