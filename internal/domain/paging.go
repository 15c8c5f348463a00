package domain

const (
	DefaultPageSize  = 5
	DefaultPageIndex = 1
)

// NormalizePage приводит некорректные значения к значениям по умолчанию.
func NormalizePage(pageIndex, pageSize int) (int, int) {
	if pageIndex <= 0 {
		pageIndex = DefaultPageIndex
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return pageIndex, pageSize
}

type PagedResult[T any] struct {
	Items           []T  `json:"items"`
	PageIndex       int  `json:"pageIndex"`
	PageSize        int  `json:"pageSize"`
	TotalRecords    int  `json:"totalRecords"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

func NewPagedResult[T any](items []T, pageIndex, pageSize, total int) PagedResult[T] {
	pageIndex, pageSize = NormalizePage(pageIndex, pageSize)
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return PagedResult[T]{
		Items:           items,
		PageIndex:       pageIndex,
		PageSize:        pageSize,
		TotalRecords:    total,
		TotalPages:      totalPages,
		HasPreviousPage: total > 0 && pageIndex > 1,
		HasNextPage:     pageIndex < totalPages,
	}
}

// MapPage переводит страницу сущностей в страницу представлений, метаданные не меняются.
func MapPage[T, R any](p PagedResult[T], fn func(T) R) PagedResult[R] {
	out := make([]R, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, fn(it))
	}
	return PagedResult[R]{
		Items:           out,
		PageIndex:       p.PageIndex,
		PageSize:        p.PageSize,
		TotalRecords:    p.TotalRecords,
		TotalPages:      p.TotalPages,
		HasPreviousPage: p.HasPreviousPage,
		HasNextPage:     p.HasNextPage,
	}
}

// SlicePage режет уже материализованный упорядоченный список.
func SlicePage[T any](all []T, pageIndex, pageSize int) PagedResult[T] {
	pageIndex, pageSize = NormalizePage(pageIndex, pageSize)
	total := len(all)
	start := (pageIndex - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := make([]T, end-start)
	copy(items, all[start:end])
	return NewPagedResult(items, pageIndex, pageSize, total)
}
