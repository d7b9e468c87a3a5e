package dto

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/api/validation"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  map[string]string `json:"details,omitempty"`
	Messages []string          `json:"messages,omitempty"`
}

// ValidationFailed builds the 400 body for field errors.
func ValidationFailed(errs validation.Errors) ErrorResponse {
	return ErrorResponse{Error: "Validation failed", Details: errs, Messages: errs.Messages()}
}

// FieldError reports a single field conflict, e.g. a duplicate name.
func FieldError(msg, field, detail string) ErrorResponse {
	errs := validation.Errors{field: detail}
	return ErrorResponse{Error: msg, Details: errs, Messages: errs.Messages()}
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// ActionResponse is returned by soft-delete endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

func NewPaginatedResponse(data interface{}, total int64, p PaginationParams) PaginatedResponse {
	totalPages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		totalPages++
	}
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
	}
}

type PaginationParams struct {
	Page    int
	PerPage int
}

func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
}

func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

const (
	StatusFilterActive   = "ACTIVE"
	StatusFilterInactive = "INACTIVE"
	StatusFilterAll      = "all"
)

// ListParams are the query parameters shared by every list endpoint.
type ListParams struct {
	PaginationParams
	Query     string
	Sort      string
	Direction string
	Status    string
}

func ParseListParams(r *http.Request) ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	p := ListParams{
		PaginationParams: PaginationParams{Page: page, PerPage: perPage},
		Query:            strings.TrimSpace(q.Get("q")),
		Sort:             q.Get("sort"),
		Direction:        strings.ToLower(q.Get("direction")),
		Status:           q.Get("status"),
	}
	p.Normalize()
	if p.Direction != "desc" {
		p.Direction = "asc"
	}
	switch strings.ToUpper(p.Status) {
	case StatusFilterInactive:
		p.Status = StatusFilterInactive
	case "ALL":
		p.Status = StatusFilterAll
	default:
		p.Status = StatusFilterActive
	}
	return p
}

// OrderBy maps the sort key through allowed (key -> column). Unknown keys
// fall back to the "name" entry, or to fallback when there is none.
func (p ListParams) OrderBy(allowed map[string]string, fallback string) string {
	col, ok := allowed[p.Sort]
	if !ok {
		if col, ok = allowed["name"]; !ok {
			col = fallback
		}
	}
	return col + " " + strings.ToUpper(p.Direction)
}
