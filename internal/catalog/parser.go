package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakoarchive/hakodl/internal/util"
)

// ErrInvalidURL is returned when the candidate URL does not parse as an
// http(s) URL.
var ErrInvalidURL = errors.New("InvalidURL")

// ErrInvalidDomain is returned when the candidate URL's host is not a
// member of the configured primary hostname list.
var ErrInvalidDomain = errors.New("InvalidDomain")

// ErrParseFailed wraps a fetch or HTML-parsing failure.
var ErrParseFailed = errors.New("ParseFailed")

// Fetcher is the narrow seam the Catalog Parser needs from the Network
// Fabric: fetch a URL and return its decoded HTML body.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

var coverURLRe = regexp.MustCompile(`url\(['"]?([^'")\s]+)`)

func extractCoverURL(style string) string {
	m := coverURLRe.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// canonicalPrimaryHost picks the primary host observed as a substring of
// baseURL, defaulting to the first primary host (spec §4.D).
func canonicalPrimaryHost(baseURL string, primaryHosts []string) string {
	for _, h := range primaryHosts {
		if h != "" && strings.Contains(baseURL, h) {
			return h
		}
	}
	if len(primaryHosts) > 0 {
		return primaryHosts[0]
	}
	return ""
}

func resolveAbsolute(href, baseURL, canonicalHost string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "https", Host: canonicalHost}
	}
	return base.ResolveReference(ref).String()
}

func isDomainMember(host string, hosts []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range hosts {
		d = strings.ToLower(d)
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ParseCatalog parses htmlStr (the fetched catalog page body) into a
// Novel. baseURL is the URL the page was fetched from, used to resolve
// relative hrefs and to pick the canonical primary host for absolutizing
// them (spec §4.D).
func ParseCatalog(htmlStr, baseURL string, primaryHosts []string) (*Novel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("parse catalog html: %w", err)
	}
	canonicalHost := canonicalPrimaryHost(baseURL, primaryHosts)

	title := util.FirstNonEmpty(strings.TrimSpace(doc.Find("span.series-name").First().Text()), "Unknown")

	var author string
	doc.Find("div.series-information > div.info-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := s.Find("span.info-name").First().Text()
		if strings.Contains(name, "Tác giả") {
			author = strings.TrimSpace(s.Find("span.info-value").First().Text())
			return false
		}
		return true
	})

	summarySel := doc.Find("div.summary-content").First().Clone()
	summarySel.Find("a.see-more, div.less-state, div.more-state, span.see-more, span.less-state, span.more-state").Remove()
	summary, _ := summarySel.Html()
	summary = strings.TrimSpace(summary)

	var mainCover string
	if style, ok := doc.Find("div.series-cover div.img-in-ratio").First().Attr("style"); ok {
		mainCover = extractCoverURL(style)
	}

	var tags []string
	doc.Find("div.series-gernes a, div.series-genres a").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			tags = append(tags, t)
		}
	})

	var volumes []Volume
	doc.Find("section.volume-list").Each(func(_ int, s *goquery.Selection) {
		name := util.FirstNonEmpty(strings.TrimSpace(s.Find("span.sect-title").First().Text()), "Unknown Volume")

		href, _ := s.Find("div.volume-cover a[href]").First().Attr("href")
		volURL := resolveAbsolute(href, baseURL, canonicalHost)

		coverStyle, _ := s.Find("div.volume-cover div.img-in-ratio").First().Attr("style")
		coverImg := extractCoverURL(coverStyle)

		var chapters []Chapter
		s.Find("ul.list-chapters li a").Each(func(_ int, a *goquery.Selection) {
			chHref, _ := a.Attr("href")
			chapters = append(chapters, Chapter{
				Name: strings.TrimSpace(a.Text()),
				URL:  resolveAbsolute(chHref, baseURL, canonicalHost),
			})
		})

		volumes = append(volumes, Volume{Name: name, URL: volURL, CoverImg: coverImg, Chapters: chapters})
	})

	return &Novel{
		Title:     title,
		URL:       baseURL,
		Author:    author,
		Summary:   summary,
		MainCover: mainCover,
		Tags:      dedupPreserveOrder(tags),
		Volumes:   volumes,
	}, nil
}

func dedupPreserveOrder(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// FetchCatalog validates candidateURL against primaryHosts, fetches it
// through f, and parses the result into a Novel (spec §4.D steps 1-3).
func FetchCatalog(ctx context.Context, f Fetcher, candidateURL string, primaryHosts []string) (*Novel, error) {
	u, err := url.Parse(candidateURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, candidateURL)
	}
	if !isDomainMember(u.Host, primaryHosts) {
		return nil, fmt.Errorf("%w: %s. Must be a Hako domain (%s)", ErrInvalidDomain, u.Host, strings.Join(primaryHosts, ", "))
	}

	htmlStr, err := f.FetchHTML(ctx, candidateURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	novel, err := ParseCatalog(htmlStr, candidateURL, primaryHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return novel, nil
}
