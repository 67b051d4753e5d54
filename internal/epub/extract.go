package epub

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxHeadingTitleLen = 100
	minFragmentLen     = 20
)

// RenderedChapter is the display markup of one chapter.
type RenderedChapter struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Path  string `json:"path"`
	HTML  string `json:"html"`
}

// RenderChapter reads the chapter at index from the archive and renders it
// to sanitized markup. Only a missing or unreadable entry is an error;
// markup that yields no text still renders a placeholder.
func (d *Document) RenderChapter(index int) (*RenderedChapter, error) {
	if index < 0 || index >= len(d.Chapters) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrChapterNotFound, index, len(d.Chapters))
	}
	ch := d.Chapters[index]
	data, err := d.archive.ReadFile(ch.Path)
	if err != nil {
		if errors.Is(err, errEntryMissing) {
			return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, ch.Path)
		}
		return nil, fmt.Errorf("%w: %v", ErrChapterNotFound, err)
	}
	return renderMarkup(ch, data), nil
}

// Placeholder renders the chapter at index with no content, for use when
// its entry cannot be read. It returns nil for an out-of-range index.
func (d *Document) Placeholder(index int) *RenderedChapter {
	if index < 0 || index >= len(d.Chapters) {
		return nil
	}
	return renderMarkup(d.Chapters[index], nil)
}

type block struct {
	tag  string
	text string
}

func renderMarkup(ch Chapter, data []byte) *RenderedChapter {
	title := ch.Title
	var blocks []block

	if doc, err := html.Parse(bytes.NewReader(data)); err == nil {
		root := contentRoot(doc)
		if t := headingTitle(root); t != "" {
			title = t
		}
		collectBlocks(root, &blocks)
		if len(blocks) == 0 {
			for _, frag := range sentenceFragments(rawText(root)) {
				blocks = append(blocks, block{tag: "p", text: frag})
			}
		}
	}

	var b strings.Builder
	b.WriteString(`<h2 class="chapter-title">`)
	b.WriteString(EscapeHTML(title))
	b.WriteString("</h2>\n<div class=\"chapter-content\">\n")
	if len(blocks) == 0 {
		b.WriteString(`<p class="placeholder">No readable content found in `)
		b.WriteString(EscapeHTML(ch.Path))
		b.WriteString("</p>\n")
	}
	for _, blk := range blocks {
		fmt.Fprintf(&b, "<%s>%s</%s>\n", blk.tag, EscapeHTML(blk.text), blk.tag)
	}
	b.WriteString("</div>")

	return &RenderedChapter{
		Index: ch.Index,
		Title: title,
		Path:  ch.Path,
		HTML:  b.String(),
	}
}

// contentRoot prefers a body with text, falling back to the whole document.
func contentRoot(doc *html.Node) *html.Node {
	if body := findElement(doc, atom.Body); body != nil && collapse(rawText(body)) != "" {
		return body
	}
	return doc
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func headingTitle(n *html.Node) string {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Title:
			if t := collapse(rawText(n)); t != "" && utf8.RuneCountInString(t) < maxHeadingTitleLen {
				return t
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := headingTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectBlocks emits text-bearing elements in document order. Headings,
// paragraphs and spans are emitted whole; containers are descended into when
// they hold nested blocks so that no text is emitted twice.
func collectBlocks(n *html.Node, out *[]block) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			collectElement(c, out)
		}
	}
}

func collectElement(c *html.Node, out *[]block) {
	switch c.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Title:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		if t := collapse(rawText(c)); t != "" {
			*out = append(*out, block{tag: c.Data, text: t})
		}
	case atom.P, atom.Span:
		if t := collapse(rawText(c)); t != "" {
			*out = append(*out, block{tag: "p", text: t})
		}
	case atom.Div, atom.Section, atom.Article:
		if containsBlock(c) {
			collectMixed(c, out)
		} else if t := collapse(rawText(c)); t != "" {
			*out = append(*out, block{tag: "p", text: t})
		}
	default:
		collectBlocks(c, out)
	}
}

// collectMixed walks a container that holds nested blocks. Text and inline
// children between those blocks are gathered into runs, each emitted as a
// paragraph in place.
func collectMixed(n *html.Node, out *[]block) {
	var run strings.Builder
	flush := func() {
		if t := collapse(run.String()); t != "" {
			*out = append(*out, block{tag: "p", text: t})
		}
		run.Reset()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			run.WriteString(c.Data)
		case c.Type != html.ElementNode:
		case isBlock(c) || containsBlock(c):
			flush()
			collectElement(c, out)
		case c.DataAtom == atom.Br:
			run.WriteString("\n")
		default:
			run.WriteString(rawText(c))
		}
	}
	flush()
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func containsBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if isBlock(c) || containsBlock(c) {
			return true
		}
	}
	return false
}

// rawText concatenates text nodes below n, skipping script and style.
func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			case atom.Br, atom.P, atom.Div:
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var sentenceBoundary = regexp.MustCompile(`([.!?]+)\s+|\n\s*\n`)

// sentenceFragments splits text on sentence-ending punctuation or blank
// lines and keeps fragments longer than minFragmentLen characters.
func sentenceFragments(text string) []string {
	var out []string
	keep := func(s string) {
		if s = collapse(s); utf8.RuneCountInString(s) > minFragmentLen {
			out = append(out, s)
		}
	}
	start := 0
	for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		end := m[0]
		if m[2] >= 0 {
			end = m[3]
		}
		keep(text[start:end])
		start = m[1]
	}
	keep(text[start:])
	return out
}
