package seen

import (
	"sort"
	"strings"

	"github.com/pbaille/seen/internal/domain"
)

// Page is one page of sorted search results
type Page struct {
	Entries    []domain.Entry `json:"seen_entries" yaml:"seen_entries"`
	TotalCount int            `json:"number_of_seen_entries" yaml:"number_of_seen_entries"`
	TotalPages int            `json:"total_number_of_pages" yaml:"total_number_of_pages"`
	PageNumber int            `json:"page_number" yaml:"page_number"`
}

// SortAndPage sorts entries by key and returns the requested 1-based page.
//
// Entries are stable-sorted ascending and the result is reversed when
// descending, so entries with equal keys come out in reverse insertion
// order in a descending listing. An empty result has no pages and every page
// of it is empty; otherwise a page past the last one is a
// domain.PageOutOfRangeError.
// The input slice is not modified.
func SortAndPage(entries []domain.Entry, key domain.SortKey, descending bool, page, pageSize int) (*Page, error) {
	if page < 1 {
		return nil, domain.NewValidationError("page", "page must be at least 1")
	}
	if pageSize < 1 {
		return nil, domain.NewValidationError("max", "page size must be at least 1")
	}
	less, err := lessFunc(key)
	if err != nil {
		return nil, err
	}

	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(&sorted[i], &sorted[j]) })
	if descending {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	count := len(sorted)
	pages := totalPages(count, pageSize)
	if page > pages && pages != 0 {
		return nil, domain.PageOutOfRangeError{Page: page, TotalPages: pages}
	}

	start, end := pageBounds(page, pageSize, count)
	return &Page{
		Entries:    sorted[start:end],
		TotalCount: count,
		TotalPages: pages,
		PageNumber: page,
	}, nil
}

func totalPages(totalItems, perPage int) int {
	if totalItems <= 0 {
		return 0
	}
	n := totalItems / perPage
	if totalItems%perPage != 0 {
		n++
	}
	return n
}

// pageBounds returns the slice bounds of a 1-based page, clamped to
// [0, total]. It never multiplies past total, so huge page or perPage
// values cannot overflow.
func pageBounds(page, perPage, total int) (int, int) {
	if total <= 0 || page-1 > (total-1)/perPage {
		return total, total
	}
	offset := (page - 1) * perPage
	if perPage >= total-offset {
		return offset, total
	}
	return offset, offset + perPage
}

func lessFunc(key domain.SortKey) (func(a, b *domain.Entry) bool, error) {
	switch key {
	case domain.SortByTitle:
		return func(a, b *domain.Entry) bool { return strings.Compare(a.Title, b.Title) < 0 }, nil
	case domain.SortByTask:
		return func(a, b *domain.Entry) bool { return strings.Compare(a.Task, b.Task) < 0 }, nil
	case domain.SortByAdded:
		return func(a, b *domain.Entry) bool { return a.Added.Before(b.Added) }, nil
	case domain.SortByLocal:
		return func(a, b *domain.Entry) bool { return !a.Local && b.Local }, nil
	case domain.SortByID:
		return func(a, b *domain.Entry) bool { return a.ID < b.ID }, nil
	}
	return nil, domain.NewValidationError("sort_by", "unknown sort key "+string(key))
}
