package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxEntrySize caps the decompressed size of a single archive entry.
const maxEntrySize int64 = 64 * 1024 * 1024

// Archive is an opened zip package held entirely in memory.
type Archive struct {
	zr      *zip.Reader
	byName  map[string]*zip.File
	byLower map[string]*zip.File
}

// OpenArchive opens data as a zip archive. An expired ctx is reported as
// ErrFetch so that load timeouts look the same whichever step they hit.
func OpenArchive(ctx context.Context, data []byte) (*Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	a := &Archive{
		zr:      zr,
		byName:  make(map[string]*zip.File, len(zr.File)),
		byLower: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if _, ok := a.byName[f.Name]; !ok {
			a.byName[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := a.byLower[lower]; !ok {
			a.byLower[lower] = f
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return a, nil
}

// Names lists the file entries in archive order, skipping directories.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Has reports whether an entry exists (exact or case-insensitive match).
func (a *Archive) Has(name string) bool {
	return a.find(name) != nil
}

// ReadFile returns the full content of an entry. Lookup is exact first,
// then case-insensitive.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f := a.find(name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, errEntryMissing)
	}
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("%s: entry too large (%d bytes)", name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%s: decompressed size exceeds %d bytes", name, maxEntrySize)
	}
	return stripBOM(data), nil
}

func (a *Archive) find(name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	if f, ok := a.byName[name]; ok {
		return f
	}
	return a.byLower[strings.ToLower(name)]
}

// resolveRelativePath resolves href against the directory of basePath.
// Fragments are dropped; paths escaping the archive root resolve to "".
func resolveRelativePath(basePath, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(href, "/") || strings.Contains(href, "://") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ""
	}
	return cleaned
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
