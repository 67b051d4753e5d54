package epub

import (
	"context"
	"fmt"
)

// Document is a parsed EPUB package. It is built fresh for each reading
// session and owned by a single goroutine; it is not safe for concurrent use.
type Document struct {
	Title       string
	Chapters    []Chapter
	Strategy    string
	PackagePath string

	archive  *Archive
	manifest map[string]ManifestItem
}

// Parse opens data as an EPUB package and discovers its chapters.
func Parse(ctx context.Context, data []byte) (*Document, error) {
	archive, err := OpenArchive(ctx, data)
	if err != nil {
		return nil, err
	}

	opfPath, err := packageDocumentPath(archive)
	if err != nil {
		return nil, err
	}

	pkg, err := parsePackageDocument(archive, opfPath)
	if err != nil {
		return nil, err
	}

	chapters, strategy := discoverChapters(archive, pkg)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no HTML content documents in %s", ErrNoReadableContent, opfPath)
	}

	return &Document{
		Title:       resolveTitle(pkg.tree),
		Chapters:    chapters,
		Strategy:    strategy,
		PackagePath: opfPath,
		archive:     archive,
		manifest:    pkg.manifest,
	}, nil
}

// ChapterCount returns the number of chapters; always at least one.
func (d *Document) ChapterCount() int {
	return len(d.Chapters)
}

// ManifestItem looks up a declared manifest entry by id.
func (d *Document) ManifestItem(id string) (ManifestItem, bool) {
	item, ok := d.manifest[id]
	return item, ok
}
