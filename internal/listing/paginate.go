package listing

// Paginate returns the pageIndex-th run of pageSize items, clipped to the
// bounds of items. A pageIndex past the end yields an empty slice rather
// than an error; callers rely on that instead of clamping. The result is
// a copy and items is never modified.
func Paginate[T any](items []T, pageSize, pageIndex int) []T {
	if pageSize <= 0 || pageIndex < 1 || len(items) == 0 {
		return []T{}
	}
	if pageIndex > LastPage(len(items), pageSize) {
		return []T{}
	}
	start := (pageIndex - 1) * pageSize
	end := min(start+pageSize, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
