package api

import (
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/processor"
	"github.com/goran-ethernal/ChainProcessor/pkg/query"
)

// FindResponse is a limit/offset page of entity rows.
type FindResponse struct {
	Items      any              `json:"items"`
	Pagination PaginationResult `json:"pagination"`
}

// PaginationResult contains limit/offset pagination metadata.
type PaginationResult struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ConnectionResponse documents the shape of a cursor page.
type ConnectionResponse struct {
	Edges      []EdgeResponse `json:"edges"`
	PageInfo   query.PageInfo `json:"pageInfo"`
	TotalCount *int           `json:"totalCount,omitempty"`
}

// EdgeResponse is a row with its cursor.
type EdgeResponse struct {
	Node   map[string]any `json:"node"`
	Cursor string         `json:"cursor"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Chains    []processor.ChainStatus `json:"chains"`
}

// EntityInfo describes a queryable entity.
type EntityInfo struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Attributes []string `json:"attributes"`
	SoftDelete bool     `json:"soft_delete"`
	Endpoints  []string `json:"endpoints"`
}
