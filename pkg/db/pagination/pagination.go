package pagination

import "gorm.io/gorm"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination carries offset-based paging parameters from the query string.
type Pagination struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// PageInfo is the pagination envelope returned alongside list results.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Apply constrains the statement to the requested page window.
func (p Pagination) Apply(stmt *gorm.DB) *gorm.DB {
	return stmt.Offset(p.Offset()).Limit(p.Limit)
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	totalPages := int64(0)
	if total > 0 {
		totalPages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return PageInfo{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(p.Page)*int64(p.Limit) < total,
	}
}
