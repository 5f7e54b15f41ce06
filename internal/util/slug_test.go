package util

import "testing"

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Tập 1: Khởi Đầu":    "Tập_1_Khởi_Đầu",
		`weird/"name"*?`:     "weirdname",
		"  spaced out  ":     "spaced_out",
		"already_fine":       "already_fine",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugIsIdempotent(t *testing.T) {
	in := `Some / Weird * Title?`
	once := Slug(in)
	twice := Slug(once)
	if once != twice {
		t.Fatalf("Slug not idempotent: %q != %q", once, twice)
	}
}

func TestSlugTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := Slug(long)
	if len(got) != 100 {
		t.Fatalf("want truncation to 100 chars, got %d", len(got))
	}
}

func TestExtFromURL(t *testing.T) {
	cases := map[string]string{
		"https://img.x/a.png":       "png",
		"https://img.x/a.PNG?q=1":   "png",
		"https://img.x/a.gif":       "gif",
		"https://img.x/a.webp":      "webp",
		"https://img.x/a.jpeg":      "jpg",
		"https://img.x/noext":       "jpg",
	}
	for in, want := range cases {
		if got := ExtFromURL(in); got != want {
			t.Fatalf("ExtFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
