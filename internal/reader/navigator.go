package reader

import "fmt"

// Navigator tracks the current chapter (or page) of a document.
// The index is 0-based internally and 1-based when shown.
type Navigator struct {
	// Unit names a position in the indicator, "Chapter" unless set.
	Unit string

	current int
	total   int
}

// NewNavigator creates a navigator positioned at start, clamped to [0, total).
func NewNavigator(total, start int) *Navigator {
	n := &Navigator{Unit: "Chapter"}
	n.Reset(total, start)
	return n
}

// Reset replaces the chapter count and position.
func (n *Navigator) Reset(total, start int) {
	if total < 0 {
		total = 0
	}
	n.total = total
	n.current = clampIndex(start, total)
}

func (n *Navigator) Current() int { return n.current }
func (n *Navigator) Total() int   { return n.total }

// Page is the 1-based position, 0 when there is nothing to show.
func (n *Navigator) Page() int {
	if n.total == 0 {
		return 0
	}
	return n.current + 1
}

// Next advances one chapter. It returns false at the last chapter.
func (n *Navigator) Next() bool {
	if n.current >= n.total-1 {
		return false
	}
	n.current++
	return true
}

// Previous goes back one chapter. It returns false at the first chapter.
func (n *Navigator) Previous() bool {
	if n.current <= 0 {
		return false
	}
	n.current--
	return true
}

// GoTo jumps to index. Out-of-range targets are ignored.
func (n *Navigator) GoTo(index int) bool {
	if index < 0 || index >= n.total || index == n.current {
		return false
	}
	n.current = index
	return true
}

func (n *Navigator) HasNext() bool     { return n.current < n.total-1 }
func (n *Navigator) HasPrevious() bool { return n.current > 0 }

// Indicator renders the position label, e.g. "Chapter 2 of 5".
func (n *Navigator) Indicator() string {
	return fmt.Sprintf("%s %d of %d", n.Unit, n.Page(), n.total)
}

func clampIndex(i, total int) int {
	if total <= 0 || i < 0 {
		return 0
	}
	if i >= total {
		return total - 1
	}
	return i
}
