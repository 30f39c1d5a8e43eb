package listing

// Matcher reports whether a record satisfies a free-text query.
type Matcher[T any] func(item T, query string) bool

// Apply filters items by req.Query (when match is non-nil and the query
// is not empty), orders them by req.Sort, and returns the requested page.
// Total counts every row that passed the filter.
func Apply[T Sortable](items []T, req RequestState, match Matcher[T]) Page[T] {
	req = req.Normalize()

	rows := items
	if match != nil && req.Query != "" {
		rows = make([]T, 0, len(items))
		for _, it := range items {
			if match(it, req.Query) {
				rows = append(rows, it)
			}
		}
	}

	rows = SortStable(rows, req.Sort)
	return Page[T]{
		Items: Paginate(rows, req.PageSize, req.PageIndex),
		Total: len(rows),
	}
}
