// Package pagination computes which page controls a listing shows.
package pagination

import (
	"strconv"
	"strings"
)

// DefaultPageSize is used until the user picks another size
const DefaultPageSize = 20

// maxVisible is the largest page count rendered without ellipses
const maxVisible = 5

// PageSizeOptions lists the page sizes a user may choose
var PageSizeOptions = []int{10, 20, 50, 100}

// Entry is one slot of the page-number list: a page or an ellipsis
type Entry struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// String renders the entry as its page number or "ellipsis"
func (e Entry) String() string {
	if e.Ellipsis {
		return "ellipsis"
	}
	return strconv.Itoa(e.Page)
}

// Window is the render model for pagination controls
type Window struct {
	TotalPages   int     `json:"totalPages"`
	PageNumbers  []Entry `json:"pageNumbers"`
	PrevDisabled bool    `json:"prevDisabled"`
	NextDisabled bool    `json:"nextDisabled"`
}

// TotalPages returns ceil(total/pageSize), 0 for an empty listing
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ComputeWindow returns the page numbers to render for the current page
func ComputeWindow(total, pageSize, current int) Window {
	if current < 1 {
		current = 1
	}
	totalPages := TotalPages(total, pageSize)

	return Window{
		TotalPages:   totalPages,
		PageNumbers:  pageNumbers(totalPages, current),
		PrevDisabled: current == 1,
		NextDisabled: totalPages == 0 || current >= totalPages,
	}
}

func pageNumbers(totalPages, current int) []Entry {
	entries := make([]Entry, 0, 7)
	ellipsis := Entry{Ellipsis: true}

	if totalPages <= maxVisible {
		for i := 1; i <= totalPages; i++ {
			entries = append(entries, Entry{Page: i})
		}
		return entries
	}

	switch {
	case current <= 3:
		for i := 1; i <= 4; i++ {
			entries = append(entries, Entry{Page: i})
		}
		entries = append(entries, ellipsis, Entry{Page: totalPages})
	case current >= totalPages-2:
		entries = append(entries, Entry{Page: 1}, ellipsis)
		for i := totalPages - 3; i <= totalPages; i++ {
			entries = append(entries, Entry{Page: i})
		}
	default:
		entries = append(entries, Entry{Page: 1}, ellipsis)
		for i := current - 1; i <= current+1; i++ {
			entries = append(entries, Entry{Page: i})
		}
		entries = append(entries, ellipsis, Entry{Page: totalPages})
	}

	return entries
}

// ValidPageSize reports whether size is one of PageSizeOptions
func ValidPageSize(size int) bool {
	for _, option := range PageSizeOptions {
		if option == size {
			return true
		}
	}
	return false
}

// ClampPage limits page to [1, max(1, TotalPages(total, pageSize))]
func ClampPage(page, total, pageSize int) int {
	maxPage := TotalPages(total, pageSize)
	if maxPage < 1 {
		maxPage = 1
	}
	if page > maxPage {
		return maxPage
	}
	if page < 1 {
		return 1
	}
	return page
}

// GoToPage parses a "go to page" input. It returns false unless the input is
// a page number within [1, totalPages].
func GoToPage(input string, totalPages int) (int, bool) {
	page, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, false
	}
	if page < 1 || page > totalPages {
		return 0, false
	}
	return page, true
}
