package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

// entry is one file of a test archive. A slice keeps the archive listing
// order deterministic.
type entry struct {
	name    string
	content string
}

// buildTestArchive creates in-memory zip bytes from entries, in order.
func buildTestArchive(t *testing.T, entries ...entry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("buildTestArchive: create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(fw, e.content); err != nil {
			t.Fatalf("buildTestArchive: write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestArchive: close writer: %v", err)
	}
	return buf.Bytes()
}

const validContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const twoChapterOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Test Book</dc:title>
    <dc:creator>A. Writer</dc:creator>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="c1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

func chapterXHTML(heading, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>ignored</title></head>
<body><h1>` + heading + `</h1><p>` + body + `</p></body></html>`
}

// twoChapterBook is the canonical container -> OEBPS/content.opf fixture.
func twoChapterBook(t *testing.T) []byte {
	t.Helper()
	return buildTestArchive(t,
		entry{"mimetype", "application/epub+zip"},
		entry{ContainerPath, validContainerXML},
		entry{"OEBPS/content.opf", twoChapterOPF},
		entry{"OEBPS/nav.xhtml", chapterXHTML("Contents", "toc")},
		entry{"OEBPS/text/chapter1.xhtml", chapterXHTML("Opening", "It was a dark and stormy night.")},
		entry{"OEBPS/text/chapter2.xhtml", chapterXHTML("Ending", "And they lived happily ever after.")},
	)
}
