// Package listing holds the paging and ordering primitives shared by the
// history API and every list view: request state, pagination, and
// field comparators.
package listing

// SortOrder is the direction of a sort. The zero value means unsorted.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort names the field a list is ordered by.
type Sort struct {
	Key   string    `json:"key"`
	Order SortOrder `json:"order"`
}

// Active reports whether s requests any ordering.
func (s Sort) Active() bool {
	return s.Key != "" && (s.Order == SortAsc || s.Order == SortDesc)
}

// DefaultPageSize is the page size a fresh list view starts with.
const DefaultPageSize = 10

// RequestState is the paging, sorting, and filter state driving one list.
type RequestState struct {
	PageIndex int    `json:"pageIndex"` // 1-based
	PageSize  int    `json:"pageSize"`
	Query     string `json:"query"`
	Sort      Sort   `json:"sort"`
	Total     int    `json:"total"`
}

// DefaultRequestState returns the state a list view starts in.
func DefaultRequestState() RequestState {
	return RequestState{PageIndex: 1, PageSize: DefaultPageSize}
}

// Normalize replaces out-of-range fields with their defaults.
func (r RequestState) Normalize() RequestState {
	if r.PageIndex < 1 {
		r.PageIndex = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.Total < 0 {
		r.Total = 0
	}
	return r
}

// Page is one page of results plus the size of the whole result set.
type Page[T any] struct {
	Items []T `json:"page"`
	Total int `json:"total"`
}

// LastPage returns the highest valid 1-based page index for total rows.
// An empty result still has one (empty) page.
func LastPage(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	n := total / pageSize
	if total%pageSize != 0 {
		n++
	}
	return n
}
