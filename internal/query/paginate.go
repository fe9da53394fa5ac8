package query

const DefaultPageSize = 15

// Page is one slice of a result set, shaped for table UIs.
type Page[T any] struct {
	Results []T  `json:"results"`
	Meta    Meta `json:"meta"`
}

type Meta struct {
	Page     int  `json:"page"`
	Pages    int  `json:"pages"`
	Count    int  `json:"count"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
}

// Paginate returns the 1-based page of items. Non-positive page or pageSize
// fall back to 1 and DefaultPageSize. A page past the end has no results
// but correct counts.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	count := len(items)
	pages := count / pageSize
	if count%pageSize != 0 {
		pages++
	}

	// page <= pages keeps (page-1)*pageSize below count, so it cannot overflow.
	results := []T{}
	if page <= pages {
		start := (page - 1) * pageSize
		results = items[start : start+min(pageSize, count-start)]
	}

	meta := Meta{Page: page, Pages: pages, Count: count}
	if page < pages {
		n := page + 1
		meta.Next = &n
	}
	if page > 1 {
		p := page - 1
		meta.Previous = &p
	}
	return Page[T]{Results: results, Meta: meta}
}
