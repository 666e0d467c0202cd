package pkg

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PaginationParams represents pagination and sorting parameters
type PaginationParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Sort   string `json:"sort"`
	Order  string `json:"order"`
	Search string `json:"search"`
}

// PaginationMeta represents pagination metadata returned alongside lists
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

// NewPaginationParams parses pagination parameters from the query string.
func NewPaginationParams(c *gin.Context) *PaginationParams {
	params := DefaultPaginationParams()

	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		params.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		params.Limit = v
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if v := c.Query("sort"); v != "" {
		params.Sort = v
	}
	if v := c.Query("order"); v == "asc" || v == "desc" {
		params.Order = v
	}
	params.Search = c.Query("search")

	return params
}

// DefaultPaginationParams returns parameters for the first page with defaults.
func DefaultPaginationParams() *PaginationParams {
	return &PaginationParams{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  "created_at",
		Order: "desc",
	}
}

// GetOffset returns the number of items to skip.
func (p *PaginationParams) GetOffset() int {
	return (p.Page - 1) * p.Limit
}

// GetSortDirection returns the mongo sort direction for the requested order.
func (p *PaginationParams) GetSortDirection() int {
	if p.Order == "asc" {
		return 1
	}
	return -1
}

// NewPaginationMeta derives metadata from a total item count.
func NewPaginationMeta(params *PaginationParams, totalItems int64) *PaginationMeta {
	totalPages := totalItems / int64(params.Limit)
	if totalItems%int64(params.Limit) != 0 {
		totalPages++
	}
	return &PaginationMeta{
		Page:       params.Page,
		Limit:      params.Limit,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}
