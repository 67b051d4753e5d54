package service

import (
	"sort"
	"strings"
	"time"

	"ebook-library/internal/domain"
)

const recentWindow = 7 * 24 * time.Hour

// mergeLibrary pairs each book with the user's progress, defaulting to the
// start of the book.
func mergeLibrary(userID string, books []*domain.Book, progress []*domain.ReadingProgress) []*domain.LibraryItem {
	byBook := make(map[string]*domain.ReadingProgress, len(progress))
	for _, p := range progress {
		byBook[p.BookID] = p
	}

	items := make([]*domain.LibraryItem, 0, len(books))
	for _, b := range books {
		p, ok := byBook[b.ID]
		if !ok {
			p = domain.DefaultProgress(userID, b.ID)
		}
		items = append(items, &domain.LibraryItem{Book: b, Progress: p})
	}
	return items
}

func filterLibrary(items []*domain.LibraryItem, filter domain.LibraryFilter, now time.Time) []*domain.LibraryItem {
	var keep func(*domain.LibraryItem) bool
	switch filter {
	case domain.FilterPDF:
		keep = func(it *domain.LibraryItem) bool { return it.Book.IsPDF() }
	case domain.FilterEPUB:
		keep = func(it *domain.LibraryItem) bool { return it.Book.IsEPUB() }
	case domain.FilterRecent:
		cutoff := now.Add(-recentWindow)
		keep = func(it *domain.LibraryItem) bool { return it.Book.UploadedAt.After(cutoff) }
	case domain.FilterUnread:
		keep = func(it *domain.LibraryItem) bool { return it.Progress.Progress == 0 }
	case domain.FilterReading:
		keep = func(it *domain.LibraryItem) bool {
			p := it.Progress
			return p.Progress > 0 && p.Progress < 1 && !p.Completed
		}
	case domain.FilterCompleted:
		keep = func(it *domain.LibraryItem) bool { return it.Progress.Completed }
	default:
		return items
	}

	out := items[:0:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func searchLibrary(items []*domain.LibraryItem, q string) []*domain.LibraryItem {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Book.Title), q) {
			out = append(out, it)
		}
	}
	return out
}

// sortLibrary orders items in place. Recent is the default: newest upload
// first. Size and progress sort largest first; title sorts A to Z.
func sortLibrary(items []*domain.LibraryItem, by domain.LibrarySort) {
	var less func(a, b *domain.LibraryItem) bool
	switch by {
	case domain.SortTitle:
		less = func(a, b *domain.LibraryItem) bool {
			return strings.ToLower(a.Book.Title) < strings.ToLower(b.Book.Title)
		}
	case domain.SortSize:
		less = func(a, b *domain.LibraryItem) bool { return a.Book.FileSize > b.Book.FileSize }
	case domain.SortProgress:
		less = func(a, b *domain.LibraryItem) bool { return a.Progress.Progress > b.Progress.Progress }
	default:
		less = func(a, b *domain.LibraryItem) bool { return a.Book.UploadedAt.After(b.Book.UploadedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
