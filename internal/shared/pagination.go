package shared

import (
	"math"
	"net/http"
	"strconv"
)

// DefaultPerPage is applied when the client does not send per_page.
const DefaultPerPage = 20

// Pagination contains metadata for paginated listings. Field names match
// the JSON meta object of the API envelope.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	lastPage := int(math.Ceil(float64(total) / float64(perPage)))
	if lastPage < 1 {
		lastPage = 1
	}
	return Pagination{CurrentPage: page, PerPage: perPage, Total: total, LastPage: lastPage}
}

// PageQuery reads page/per_page query parameters with defaults.
func PageQuery(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return page, perPage
}
