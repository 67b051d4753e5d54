package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"ebook-library/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}

// fakeClock collects debounce timers so tests decide when they fire.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// FireAll runs every timer that was not stopped.
func (c *fakeClock) FireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = true
		t.mu.Unlock()
		if run {
			t.f()
		}
	}
}

type memoryStore struct {
	mu       sync.Mutex
	records  map[string]*domain.ReadingProgress
	saved    []domain.ProgressUpdate
	loadErr  error
	loadHits int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*domain.ReadingProgress)}
}

func (m *memoryStore) Load(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadHits++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.records[userID+"/"+bookID], nil
}

func (m *memoryStore) Save(ctx context.Context, u domain.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, u)
	return nil
}

func (m *memoryStore) Saved() []domain.ProgressUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ProgressUpdate(nil), m.saved...)
}

func buildArchive(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatalf("create %s: %v", f[0], err)
		}
		if _, err := io.WriteString(w, f[1]); err != nil {
			t.Fatalf("write %s: %v", f[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OPS/book.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const threeChapterOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Three Parts</dc:title></metadata>
  <manifest>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
    <item id="c" href="c.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="a"/><itemref idref="b"/><itemref idref="c"/></spine>
</package>`

func page(heading string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><p>Body text of %s.</p></body></html>`, heading, heading)
}

func threeChapterBook(t *testing.T) []byte {
	return buildArchive(t,
		[2]string{"META-INF/container.xml", containerXML},
		[2]string{"OPS/book.opf", threeChapterOPF},
		[2]string{"OPS/a.xhtml", page("First")},
		[2]string{"OPS/b.xhtml", page("Second")},
		[2]string{"OPS/c.xhtml", page("Third")},
	)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
