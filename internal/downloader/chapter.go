package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakoarchive/hakodl/internal/catalog"
	"github.com/hakoarchive/hakodl/internal/content"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/util"
)

// ProcessChapter fetches ch.url, scrubs the #chapter-content subtree,
// downloads and renames its images, extracts and rewrites its footnotes,
// and returns the materialized chapter. It returns (nil, nil), not an
// error, when the page has no #chapter-content (spec §4.F.1).
func (d *Downloader) ProcessChapter(ctx context.Context, i int, ch catalog.Chapter, volSlug string) (*record.ChapterContent, error) {
	html, err := d.fab.FetchHTML(ctx, ch.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("downloader: parse chapter page %s: %w", ch.URL, err)
	}
	sel := doc.Find("#chapter-content").First()
	if sel.Length() == 0 {
		return nil, nil
	}

	content.RemoveCommentsAdsHidden(sel)
	d.downloadChapterImages(ctx, sel, i, volSlug)
	content.RemoveEmptyNodes(sel)

	notes := content.ExtractFootnoteDefs(sel)
	content.RemoveFootnoteDivs(sel)

	body, err := sel.Html()
	if err != nil {
		return nil, fmt.Errorf("downloader: serialize chapter %s: %w", ch.URL, err)
	}

	slug := fmt.Sprintf("%s_ch%d", volSlug, i)
	converted, used := content.ConvertFootnoteMarkers(body, notes, slug)
	final := converted + content.GenerateFootnoteAsides(used, notes, slug, true)
	final = content.CollapseNewlines(final)

	return &record.ChapterContent{Title: ch.Name, URL: ch.URL, Content: final, Index: i}, nil
}

// downloadChapterImages walks sel's <img> elements in document order,
// assigning each a zero-based index m. Images whose src is empty or
// contains "chapter-banners", and images that fail to download, are
// removed from the DOM; the rest are rewritten to their saved
// images/<volSlug>_chap_<i>_img_<m>.<ext> path with style/onclick
// attributes stripped (spec §4.F.3).
func (d *Downloader) downloadChapterImages(ctx context.Context, sel *goquery.Selection, i int, volSlug string) {
	sel.Find("img").Each(func(m int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || strings.Contains(src, "chapter-banners") {
			img.Remove()
			return
		}

		rel := filepath.Join("images", fmt.Sprintf("%s_chap_%d_img_%d.%s", volSlug, i, m, util.ExtFromURL(src)))
		ok, err := d.fab.DownloadToFile(ctx, src, filepath.Join(d.baseDir, rel))
		if err != nil || !ok {
			img.Remove()
			return
		}

		img.SetAttr("src", filepath.ToSlash(rel))
		img.RemoveAttr("style")
		img.RemoveAttr("onclick")
	})
}
