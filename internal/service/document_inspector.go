package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/go-fitz"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
)

const inspectTimeout = 30 * time.Second

// DocumentInspector opens uploads before they are stored so unreadable
// documents are rejected early.
type DocumentInspector struct {
	logger domain.Logger
}

func NewDocumentInspector(logger domain.Logger) *DocumentInspector {
	return &DocumentInspector{logger: logger}
}

func (p *DocumentInspector) Inspect(fileType string, data []byte) (*domain.DocumentInfo, error) {
	switch fileType {
	case domain.FileTypePDF:
		return p.inspectPDF(data)
	case domain.FileTypeEPUB:
		return p.inspectEPUB(data)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, fileType)
	}
}

func (p *DocumentInspector) inspectPDF(data []byte) (*domain.DocumentInfo, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: fmt.Sprintf("not a readable PDF document: %v", err)}
	}
	defer doc.Close()

	info := &domain.DocumentInfo{PageCount: doc.NumPage()}
	if title, ok := doc.Metadata()["title"]; ok && title != "" {
		info.Title = title
	}
	if info.PageCount == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "PDF document has no pages"}
	}
	p.logger.Debug("Inspected PDF upload", "pages", info.PageCount)
	return info, nil
}

func (p *DocumentInspector) inspectEPUB(data []byte) (*domain.DocumentInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
	defer cancel()

	doc, err := epub.Parse(ctx, data)
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: fmt.Sprintf("not a readable EPUB package: %v", err)}
	}
	info := &domain.DocumentInfo{PageCount: doc.ChapterCount()}
	if doc.Title != epub.UnknownTitle {
		info.Title = doc.Title
	}
	p.logger.Debug("Inspected EPUB upload", "chapters", info.PageCount, "strategy", doc.Strategy)
	return info, nil
}
