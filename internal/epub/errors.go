package epub

import "errors"

// Sentinel errors returned by the epub package. Callers match them with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrFetch indicates the archive could not be retrieved (transport
	// failure, non-2xx status or timeout).
	ErrFetch = errors.New("epub: fetch failed")

	// ErrInvalidArchive indicates the bytes are not a zip archive or the
	// container pointer or package document is missing or unusable.
	ErrInvalidArchive = errors.New("epub: invalid archive")

	// ErrNoReadableContent indicates parsing succeeded but no chapter was found.
	ErrNoReadableContent = errors.New("epub: no readable content")

	// ErrChapterNotFound indicates a chapter index is out of range or its
	// backing file vanished from the archive.
	ErrChapterNotFound = errors.New("epub: chapter not found")
)

var errEntryMissing = errors.New("entry not in archive")
