package downloader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hakoarchive/hakodl/internal/catalog"
	"github.com/hakoarchive/hakodl/internal/fabric"
	"github.com/hakoarchive/hakodl/internal/record"
)

func newTestFabric() *fabric.Fabric {
	return fabric.New(fabric.Config{
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}, nil)
}

func chapterPageHTML(imgs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="chapter-content"><p>Hello world, this is a chapter with enough text to pass validation checks easily.</p>`)
	for _, src := range imgs {
		b.WriteString(`<img src="` + src + `" style="color:red" onclick="x()"/>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func TestProcessChapterDownloadsAndRenamesImages(t *testing.T) {
	var imgHits int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chapter":
			w.Write([]byte(chapterPageHTML(srv.URL+"/img1.jpg", "/chapter-banners/skip.png", "")))
		case "/img1.jpg":
			imgHits++
			w.Write([]byte("fake-jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	baseDir := t.TempDir()
	d := New(&catalog.Novel{Title: "Novel"}, baseDir, newTestFabric())

	ch := catalog.Chapter{Name: "Chapter One", URL: srv.URL + "/chapter"}
	cc, err := d.ProcessChapter(context.Background(), 0, ch, "vol1")
	if err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}
	if cc == nil {
		t.Fatal("ProcessChapter returned nil content")
	}
	if cc.Title != "Chapter One" || cc.Index != 0 {
		t.Errorf("cc = %+v", cc)
	}
	if !strings.Contains(cc.Content, "images/vol1_chap_0_img_0.jpg") {
		t.Errorf("content missing rewritten image src: %s", cc.Content)
	}
	if strings.Contains(cc.Content, "style=") || strings.Contains(cc.Content, "onclick=") {
		t.Errorf("content still has style/onclick: %s", cc.Content)
	}
	if strings.Contains(cc.Content, "chapter-banners") {
		t.Errorf("banner image was not dropped: %s", cc.Content)
	}
	if imgHits != 1 {
		t.Errorf("imgHits = %d, want 1 (banner/empty src must not be fetched)", imgHits)
	}

	info, err := os.Stat(filepath.Join(baseDir, "images", "vol1_chap_0_img_0.jpg"))
	if err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty saved image file: %v", err)
	}
}

func TestProcessChapterMissingContentReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>no chapter content here</p></body></html>`))
	}))
	defer srv.Close()

	d := New(&catalog.Novel{Title: "Novel"}, t.TempDir(), newTestFabric())
	ch := catalog.Chapter{Name: "Ghost", URL: srv.URL}
	cc, err := d.ProcessChapter(context.Background(), 0, ch, "vol1")
	if err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}
	if cc != nil {
		t.Errorf("expected nil content, got %+v", cc)
	}
}

func TestValidateCached(t *testing.T) {
	baseDir := t.TempDir()
	d := New(&catalog.Novel{}, baseDir, newTestFabric())

	if d.ValidateCached(record.ChapterContent{Content: "short"}) {
		t.Error("short content should be invalid")
	}

	longEnough := strings.Repeat("word ", 20)
	if !d.ValidateCached(record.ChapterContent{Content: longEnough}) {
		t.Error("plain long content with no images should be valid")
	}

	withMissingImg := longEnough + `<img src="images/missing.jpg"/>`
	if d.ValidateCached(record.ChapterContent{Content: withMissingImg}) {
		t.Error("content referencing a missing image file should be invalid")
	}

	if err := os.MkdirAll(filepath.Join(baseDir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "images", "present.jpg"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	withPresentImg := longEnough + `<img src="images/present.jpg"/>`
	if !d.ValidateCached(record.ChapterContent{Content: withPresentImg}) {
		t.Error("content referencing an existing non-empty image file should be valid")
	}
}

func TestDownloadVolumeReusesValidCache(t *testing.T) {
	var chapterHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chapterHits++
		w.Write([]byte(chapterPageHTML()))
	}))
	defer srv.Close()

	baseDir := t.TempDir()
	vol := catalog.Volume{
		Name: "Volume One",
		Chapters: []catalog.Chapter{
			{Name: "Ch 1", URL: srv.URL + "/ch1"},
		},
	}

	d := New(&catalog.Novel{Title: "Novel"}, baseDir, newTestFabric())
	if _, err := d.DownloadVolume(context.Background(), vol, nil); err != nil {
		t.Fatalf("first DownloadVolume: %v", err)
	}
	if chapterHits != 1 {
		t.Fatalf("chapterHits after first download = %d, want 1", chapterHits)
	}

	rec, err := d.DownloadVolume(context.Background(), vol, nil)
	if err != nil {
		t.Fatalf("second DownloadVolume: %v", err)
	}
	if chapterHits != 1 {
		t.Errorf("chapterHits after second download = %d, want 1 (cache should be reused)", chapterHits)
	}
	if len(rec.Chapters) != 1 || rec.Chapters[0].Index != 0 {
		t.Errorf("rec.Chapters = %+v", rec.Chapters)
	}
}

func TestCreateMetadataFileWritesDenseOrder(t *testing.T) {
	baseDir := t.TempDir()
	novel := &catalog.Novel{
		Title:  "My Novel",
		Author: "Some Author",
		Tags:   []string{"Action"},
		URL:    "https://example.com/novel",
		Volumes: []catalog.Volume{
			{Name: "Volume One"},
			{Name: "Volume Two"},
		},
	}

	d := New(novel, baseDir, newTestFabric())
	rec, err := d.CreateMetadataFile(context.Background())
	if err != nil {
		t.Fatalf("CreateMetadataFile: %v", err)
	}
	if len(rec.Volumes) != 2 || rec.Volumes[0].Order != 1 || rec.Volumes[1].Order != 2 {
		t.Errorf("Volumes = %+v", rec.Volumes)
	}
	if rec.Volumes[0].Filename != "Volume_One.json" {
		t.Errorf("Volumes[0].Filename = %q", rec.Volumes[0].Filename)
	}

	data, err := os.ReadFile(filepath.Join(baseDir, "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata.json: %v", err)
	}
	var onDisk record.NovelRecord
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("unmarshal metadata.json: %v", err)
	}
	if onDisk.NovelName != "My Novel" || onDisk.Author != "Some Author" {
		t.Errorf("onDisk = %+v", onDisk)
	}
}
