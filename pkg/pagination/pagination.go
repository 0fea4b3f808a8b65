package pagination

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
	// Sort lists "column [asc|desc]" terms from ?sort=a,-b.
	Sort []string
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset, Sort: parseSort(c.QueryParam("sort"))}
}

// parseSort turns "last_name,-created_at" into ["last_name", "created_at desc"].
func parseSort(raw string) []string {
	var out []string
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		switch {
		case term == "", term == "-":
			continue
		case strings.HasPrefix(term, "-"):
			out = append(out, term[1:]+" desc")
		default:
			out = append(out, term)
		}
	}
	return out
}

// OrderOr returns the requested sort terms, or fallback when none were given.
func (p Params) OrderOr(fallback ...string) []string {
	if len(p.Sort) > 0 {
		return p.Sort
	}
	return fallback
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}
