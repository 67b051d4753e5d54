package service

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"ebook-library/internal/domain"
)

func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDocumentInspector_EPUB(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Moby Dick</dc:title></metadata>
  <manifest>
    <item id="c1" href="c1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="c2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c1"/><itemref idref="c2"/></spine>
</package>`,
		"c1.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>Loomings</h1><p>Call me Ishmael.</p></body></html>`,
		"c2.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>The Carpet-Bag</h1><p>I stuffed a shirt or two.</p></body></html>`,
	})

	info, err := NewDocumentInspector(NewMockLogger()).Inspect(domain.FileTypeEPUB, data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Title != "Moby Dick" || info.PageCount != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestDocumentInspector_Rejects(t *testing.T) {
	inspector := NewDocumentInspector(NewMockLogger())

	tests := []struct {
		name     string
		fileType string
		data     []byte
	}{
		{"epub without container", domain.FileTypeEPUB, buildEPUB(t, map[string]string{"readme.txt": "hello"})},
		{"epub that is not a zip", domain.FileTypeEPUB, []byte("plain text")},
		{"pdf garbage", domain.FileTypePDF, []byte("not a pdf at all")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inspector.Inspect(tt.fileType, tt.data)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != "file" {
				t.Fatalf("expected file validation error, got %v", err)
			}
		})
	}

	if _, err := inspector.Inspect("text/plain", []byte("x")); !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
}
