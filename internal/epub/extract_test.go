package epub

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRenderChapter_HeadingAndParagraphs(t *testing.T) {
	doc, err := Parse(context.Background(), twoChapterBook(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got, err := doc.RenderChapter(0)
	if err != nil {
		t.Fatalf("RenderChapter() error = %v", err)
	}
	if got.Title != "Opening" {
		t.Errorf("Title = %q, want Opening", got.Title)
	}
	if !strings.Contains(got.HTML, `<h2 class="chapter-title">Opening</h2>`) {
		t.Errorf("missing synthesized title: %s", got.HTML)
	}
	if !strings.Contains(got.HTML, "<h1>Opening</h1>") {
		t.Errorf("missing heading block: %s", got.HTML)
	}
	if !strings.Contains(got.HTML, "<p>It was a dark and stormy night.</p>") {
		t.Errorf("missing paragraph block: %s", got.HTML)
	}
	if strings.Contains(got.HTML, "ignored") {
		t.Errorf("head title must not leak into body content: %s", got.HTML)
	}
}

func TestRenderChapter_OutOfRange(t *testing.T) {
	doc, err := Parse(context.Background(), twoChapterBook(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for _, idx := range []int{-1, 2} {
		if _, err := doc.RenderChapter(idx); !errors.Is(err, ErrChapterNotFound) {
			t.Errorf("RenderChapter(%d) error = %v, want ErrChapterNotFound", idx, err)
		}
	}
}

func TestRenderChapter_MissingEntry(t *testing.T) {
	data := buildTestArchive(t,
		entry{ContainerPath, validContainerXML},
		entry{"OEBPS/content.opf", twoChapterOPF},
		entry{"OEBPS/text/chapter1.xhtml", chapterXHTML("One", "first chapter text")},
	)
	doc, err := Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := doc.RenderChapter(1); !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestRenderMarkup_EscapesText(t *testing.T) {
	ch := Chapter{Index: 0, Title: "Chapter 1", Path: "a.xhtml"}
	got := renderMarkup(ch, []byte(`<html><body><p>Tom &amp; Jerry &lt;3 "quotes" 'single'</p></body></html>`))
	want := "<p>Tom &amp; Jerry &lt;3 &quot;quotes&quot; &#39;single&#39;</p>"
	if !strings.Contains(got.HTML, want) {
		t.Fatalf("expected %s in %s", want, got.HTML)
	}
	if strings.Contains(got.HTML, "<script") {
		t.Fatalf("unexpected raw markup: %s", got.HTML)
	}
}

func TestRenderMarkup_NestedContainersEmitOnce(t *testing.T) {
	ch := Chapter{Index: 0, Title: "Chapter 1", Path: "a.xhtml"}
	markup := `<html><body>
<section><div><p>First paragraph.</p><p>Second <span>inline</span> paragraph.</p></div></section>
<article>Loose article text</article>
<div><span>alpha</span> <span>beta</span></div>
<script>alert("x")</script>
</body></html>`
	got := renderMarkup(ch, []byte(markup))

	for _, want := range []string{
		"<p>First paragraph.</p>",
		"<p>Second inline paragraph.</p>",
		"<p>Loose article text</p>",
		"<p>alpha beta</p>",
	} {
		if strings.Count(got.HTML, want) != 1 {
			t.Errorf("expected %q exactly once in %s", want, got.HTML)
		}
	}
	if strings.Contains(got.HTML, "<p>inline</p>") {
		t.Errorf("span inside paragraph emitted separately: %s", got.HTML)
	}
	if strings.Contains(got.HTML, "alert") {
		t.Errorf("script content leaked: %s", got.HTML)
	}
	if got.Title != "Chapter 1" {
		t.Errorf("Title = %q, want default", got.Title)
	}
}

func TestRenderMarkup_ContainerTextAroundBlocks(t *testing.T) {
	ch := Chapter{Index: 0, Title: "Chapter 1", Path: "a.xhtml"}
	markup := `<html><body><div>Opening words of the chapter <em>here</em>.` +
		`<p>A nested paragraph.</p>Closing words after it.<script>skip()</script></div></body></html>`
	got := renderMarkup(ch, []byte(markup))

	want := "<p>Opening words of the chapter here.</p>\n<p>A nested paragraph.</p>\n<p>Closing words after it.</p>"
	if !strings.Contains(got.HTML, want) {
		t.Fatalf("expected %q in %s", want, got.HTML)
	}
	if strings.Contains(got.HTML, "skip()") {
		t.Errorf("script content leaked: %s", got.HTML)
	}
}

func TestRenderMarkup_TitleRules(t *testing.T) {
	long := strings.Repeat("x", 120)
	ch := Chapter{Index: 2, Title: "Chapter 3", Path: "c.xhtml"}

	got := renderMarkup(ch, []byte(`<body><h1>`+long+`</h1><h2> </h2><h3>Short Heading</h3><p>text</p></body>`))
	if got.Title != "Short Heading" {
		t.Errorf("Title = %q, want Short Heading", got.Title)
	}

	got = renderMarkup(ch, []byte(`<body><h1>`+long+`</h1><p>text</p></body>`))
	if got.Title != "Chapter 3" {
		t.Errorf("Title = %q, want default for long headings", got.Title)
	}
}

func TestRenderMarkup_SentenceFallback(t *testing.T) {
	ch := Chapter{Index: 0, Title: "Chapter 1", Path: "plain.xhtml"}
	markup := `<html><body><blockquote>Short one. This sentence is long enough to keep! Tiny?

Another fragment that survives the length filter</blockquote></body></html>`
	got := renderMarkup(ch, []byte(markup))

	if !strings.Contains(got.HTML, "<p>This sentence is long enough to keep!</p>") {
		t.Errorf("missing first fragment: %s", got.HTML)
	}
	if !strings.Contains(got.HTML, "<p>Another fragment that survives the length filter</p>") {
		t.Errorf("missing blank-line fragment: %s", got.HTML)
	}
	if strings.Contains(got.HTML, "Short one") || strings.Contains(got.HTML, "Tiny") {
		t.Errorf("short fragments should be dropped: %s", got.HTML)
	}
}

func TestRenderMarkup_Placeholder(t *testing.T) {
	ch := Chapter{Index: 0, Title: "Chapter 1", Path: "OEBPS/empty<1>.xhtml"}
	got := renderMarkup(ch, []byte(`<html><body><img src="a.png"/></body></html>`))
	if !strings.Contains(got.HTML, `No readable content found in OEBPS/empty&lt;1&gt;.xhtml`) {
		t.Fatalf("expected placeholder naming the path, got %s", got.HTML)
	}
}

func TestSentenceFragments(t *testing.T) {
	got := sentenceFragments("First sentence here is long. second sentence is also long enough?? x.\n\nthird block of words, long enough")
	want := []string{
		"First sentence here is long.",
		"second sentence is also long enough??",
		"third block of words, long enough",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("sentenceFragments() = %q, want %q", got, want)
	}
}

func TestDocument_Placeholder(t *testing.T) {
	doc, err := Parse(context.Background(), twoChapterBook(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := doc.Placeholder(1)
	if got == nil || !strings.Contains(got.HTML, `class="placeholder"`) {
		t.Fatalf("expected placeholder markup, got %+v", got)
	}
	if doc.Placeholder(2) != nil {
		t.Fatalf("expected nil for out-of-range index")
	}
}
