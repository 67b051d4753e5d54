package epub

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Chapter is one readable content document in reading order.
type Chapter struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
}

// chapterStrategy is one step of chapter discovery. Fallback strategies
// produce lists without a declared order, so their results are sorted.
type chapterStrategy struct {
	name     string
	fallback bool
	discover func(a *Archive, pkg *packageDocument) []Chapter
}

// chapterStrategies run in order; the first non-empty result wins.
var chapterStrategies = []chapterStrategy{
	{name: "spine", discover: spineChapters},
	{name: "manifest", fallback: true, discover: manifestChapters},
	{name: "archive", fallback: true, discover: archiveChapters},
}

func discoverChapters(a *Archive, pkg *packageDocument) ([]Chapter, string) {
	for _, s := range chapterStrategies {
		chapters := s.discover(a, pkg)
		if len(chapters) == 0 {
			continue
		}
		if s.fallback {
			sortChapters(chapters)
		}
		return renumber(chapters), s.name
	}
	return nil, ""
}

func spineChapters(_ *Archive, pkg *packageDocument) []Chapter {
	var out []Chapter
	for _, idref := range pkg.spine {
		item, ok := pkg.manifest[idref]
		if !ok || !isHTMLContent(item.MediaType, item.Path) {
			continue
		}
		out = append(out, Chapter{Path: item.Path, MediaType: item.MediaType})
	}
	return out
}

func manifestChapters(_ *Archive, pkg *packageDocument) []Chapter {
	var out []Chapter
	for _, item := range pkg.items {
		if !isHTMLContent(item.MediaType, item.Path) || isAuxiliary(item.Path) || isAuxiliary(item.ID) {
			continue
		}
		if hasProperty(item.Properties, "nav") {
			continue
		}
		out = append(out, Chapter{Path: item.Path, MediaType: item.MediaType})
	}
	return out
}

func archiveChapters(a *Archive, _ *packageDocument) []Chapter {
	var out []Chapter
	for _, name := range a.Names() {
		if !hasHTMLExtension(name) || isAuxiliary(name) {
			continue
		}
		out = append(out, Chapter{Path: name})
	}
	return out
}

func renumber(chapters []Chapter) []Chapter {
	for i := range chapters {
		chapters[i].Index = i
		chapters[i].Title = fmt.Sprintf("Chapter %d", i+1)
	}
	return chapters
}

var firstNumber = regexp.MustCompile(`\d+`)

// sortChapters orders by the first number embedded in the file name when
// both names carry one, otherwise by full path.
func sortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapterLess(chapters[i].Path, chapters[j].Path)
	})
}

func chapterLess(a, b string) bool {
	na, okA := embeddedNumber(a)
	nb, okB := embeddedNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

func embeddedNumber(p string) (uint64, bool) {
	m := firstNumber.FindString(path.Base(p))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isHTMLContent(mediaType, p string) bool {
	if strings.Contains(strings.ToLower(mediaType), "html") {
		return true
	}
	return hasHTMLExtension(p)
}

func hasHTMLExtension(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".xhtml", ".htm":
		return true
	}
	return false
}

// isAuxiliary reports file names that look like navigation, table of
// contents or cover documents.
func isAuxiliary(p string) bool {
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, "nav") ||
		strings.Contains(base, "toc") ||
		strings.Contains(base, "cover")
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if strings.EqualFold(p, want) {
			return true
		}
	}
	return false
}
