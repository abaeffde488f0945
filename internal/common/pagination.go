package common

import (
	"net/http"
	"strconv"
)

// Pagination is the page envelope returned next to list data.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination derives the page count from total and limit.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return p
}

// ParsePagination reads ?page and ?limit. Missing or non-positive values
// become page 1 and defaultLimit; callers clamp the limit to their maximum.
func ParsePagination(r *http.Request, defaultLimit int) (page, limit int) {
	page, limit = 1, defaultLimit
	q := r.URL.Query()
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	return page, limit
}
