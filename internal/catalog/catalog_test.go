package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	n := &Novel{
		Title:     "T",
		URL:       "https://docln.net/truyen/5",
		Author:    "A",
		Summary:   "<p>hi</p>",
		MainCover: "https://img.docln.net/cover.jpg",
		Tags:      []string{"Action", "Fantasy"},
		Volumes: []Volume{
			{Name: "Vol 1", URL: "https://docln.net/v1", CoverImg: "c1.jpg", Chapters: []Chapter{
				{Name: "Ch 1", URL: "https://docln.net/c1"},
			}},
		},
	}

	data, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(n, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", n, got)
	}

	data2, err := Serialize(got)
	if err != nil {
		t.Fatalf("Serialize(2): %v", err)
	}
	if string(data) != string(data2) {
		t.Fatalf("re-serialize mismatch:\n%s\nvs\n%s", data, data2)
	}
}

func TestDeserializeDefaultsMissingOptionalFields(t *testing.T) {
	n, err := Deserialize([]byte(`{"name":"T","url":"https://x"}`))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n.Title != "T" || n.URL != "https://x" {
		t.Fatalf("required fields lost: %+v", n)
	}
	if n.Author != "" || n.Summary != "" || n.MainCover != "" {
		t.Fatalf("optional string fields not empty: %+v", n)
	}
	if len(n.Volumes) != 0 || len(n.Tags) != 0 {
		t.Fatalf("optional array fields not empty: %+v", n)
	}
}

// S1 from spec.md §8.
func TestParseCatalogScenarioS1(t *testing.T) {
	html := `<html><body>
		<span class="series-name">T</span>
		<div class="series-information">
			<div class="info-item"><span class="info-name">Tác giả</span><span class="info-value">A</span></div>
		</div>
	</body></html>`

	n, err := ParseCatalog(html, "https://docln.net/truyen/5", []string{"docln.net", "ln.hako.vn", "docln.sbs"})
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if n.Title != "T" {
		t.Fatalf("title = %q", n.Title)
	}
	if n.Author != "A" {
		t.Fatalf("author = %q", n.Author)
	}
	if len(n.Volumes) != 0 {
		t.Fatalf("volumes = %+v", n.Volumes)
	}
}

type stubFetcher struct {
	html string
	err  error
}

func (s stubFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	return s.html, s.err
}

// S2 from spec.md §8.
func TestFetchCatalogScenarioS2InvalidDomain(t *testing.T) {
	_, err := FetchCatalog(context.Background(), stubFetcher{}, "https://example.com/x", []string{"docln.net", "ln.hako.vn", "docln.sbs"})
	if !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("want ErrInvalidDomain, got %v", err)
	}
}

func TestFetchCatalogAcceptsSubdomainOfPrimary(t *testing.T) {
	f := stubFetcher{html: `<span class="series-name">Ok</span>`}
	n, err := FetchCatalog(context.Background(), f, "https://www.docln.net/truyen/5", []string{"docln.net"})
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if n.Title != "Ok" {
		t.Fatalf("title = %q", n.Title)
	}
}
