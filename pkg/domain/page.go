package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// sortableBookFields maps API field names to column names.
var sortableBookFields = map[string]string{
	"id":     "id",
	"title":  "title",
	"author": "author",
	"isbn":   "isbn",
}

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page      int
	Size      int
	SortField string
	SortDir   SortDirection
}

// NewPageRequest builds a normalized request. sort uses the "field[,dir]" form.
func NewPageRequest(page, size int, sort string) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, fmt.Errorf("page must not be negative")
	}
	if size < 0 {
		return PageRequest{}, fmt.Errorf("size must not be negative")
	}
	req := PageRequest{Page: page, Size: size}
	sort = strings.TrimSpace(sort)
	if sort != "" {
		field, dir, _ := strings.Cut(sort, ",")
		field = strings.ToLower(strings.TrimSpace(field))
		if _, ok := sortableBookFields[field]; !ok {
			return PageRequest{}, fmt.Errorf("unsupported sort field %q", field)
		}
		req.SortField = field
		switch SortDirection(strings.ToLower(strings.TrimSpace(dir))) {
		case "", SortAsc:
			req.SortDir = SortAsc
		case SortDesc:
			req.SortDir = SortDesc
		default:
			return PageRequest{}, fmt.Errorf("unsupported sort direction %q", dir)
		}
	}
	req = req.Normalize()
	if req.Page > math.MaxInt/req.Size {
		return PageRequest{}, fmt.Errorf("page %d is out of range", page)
	}
	return req, nil
}

// Normalize fills defaults and clamps the size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.SortField == "" {
		p.SortField = "id"
	}
	if p.SortDir == "" {
		p.SortDir = SortAsc
	}
	return p
}

// Offset is the number of rows skipped before this page. It saturates at
// math.MaxInt instead of overflowing.
func (p PageRequest) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// OrderClause renders the sort as a SQL ORDER BY expression. Non-id sorts
// break ties by id so OFFSET pages stay disjoint.
func (p PageRequest) OrderClause() string {
	p = p.Normalize()
	column, ok := sortableBookFields[p.SortField]
	if !ok {
		column = "id"
	}
	clause := column + " " + strings.ToUpper(string(p.SortDir))
	if column != "id" {
		clause += ", id ASC"
	}
	return clause
}

type Page[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Number           int   `json:"number"`
	Size             int   `json:"size"`
	NumberOfElements int   `json:"numberOfElements"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
}

// NewPage assembles a page from one slice of content and the total count.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Number:           req.Page,
		Size:             req.Size,
		NumberOfElements: len(content),
		First:            req.Page == 0,
		Last:             req.Page+1 >= totalPages,
	}
}
