package content

import (
	"strings"
	"testing"
)

func TestCleanHtmlRemovesCommentsAndHiddenNodes(t *testing.T) {
	in := `<div><!-- ad --><div class="d-none">hidden</div><a target="_blank">x</a><p>hello</p></div>`
	out, err := CleanHtml(in)
	if err != nil {
		t.Fatalf("CleanHtml: %v", err)
	}
	if strings.Contains(out, "<!--") {
		t.Fatalf("comment survived: %s", out)
	}
	if strings.Contains(out, `class="d-none"`) {
		t.Fatalf("d-none node survived: %s", out)
	}
	if strings.Contains(out, `target="_blank"`) {
		t.Fatalf("target=_blank node survived: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("visible text lost: %s", out)
	}
}

func TestCleanHtmlRemovesEmptyNodesButKeepsImages(t *testing.T) {
	in := `<div><p>   </p><div><img src="a.jpg"/></div><span></span></div>`
	out, err := CleanHtml(in)
	if err != nil {
		t.Fatalf("CleanHtml: %v", err)
	}
	if strings.Contains(out, "<span>") {
		t.Fatalf("empty span survived: %s", out)
	}
	if !strings.Contains(out, "<img") {
		t.Fatalf("image lost: %s", out)
	}
}

func TestSanitizeXhtmlCollapsesBrAndNewlines(t *testing.T) {
	in := "<p>&nbsp;</p>\nhello<br/><br/><br/><br/>world\n\n\n\nend"
	out := SanitizeXhtml(in)
	if strings.Contains(out, "&nbsp;") {
		t.Fatalf("nbsp not converted: %s", out)
	}
	if strings.Contains(out, "<p>") {
		t.Fatalf("empty <p> survived: %s", out)
	}
	if strings.Count(out, "<br/>") != 2 {
		t.Fatalf("want 2 <br/>, got: %s", out)
	}
	if strings.Contains(out, "\n\n\n") {
		t.Fatalf("newline run not collapsed: %q", out)
	}
}

// S6 from spec.md §8.
func TestProcessContentScenarioS6(t *testing.T) {
	in := `<div><!--ad--><div class="d-none">h</div><p>hello [note1]</p>` +
		`<div id="note1"><span class="note-content_real">defn</span></div></div>`
	out, err := ProcessContent(in, "ch1")
	if err != nil {
		t.Fatalf("ProcessContent: %v", err)
	}
	if strings.Count(out, `href="#ch1_note1"`) != 1 {
		t.Fatalf("want exactly one noteref for ch1_note1, got: %s", out)
	}
	if !strings.Contains(out, `>[1]</a>`) {
		t.Fatalf("want label [1]: %s", out)
	}
	if !strings.Contains(out, `<aside id="ch1_note1"`) {
		t.Fatalf("want aside ch1_note1: %s", out)
	}
	if strings.Contains(out, "<!--ad-->") {
		t.Fatalf("comment survived: %s", out)
	}
	if strings.Contains(out, `class="d-none"`) {
		t.Fatalf("d-none survived: %s", out)
	}
	if strings.Contains(out, "[note1]") {
		t.Fatalf("literal marker survived: %s", out)
	}
}
