// Package domain provides shared types for business logic packages.
package domain

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Page holds pagination parameters with sensible bounds.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps pagination to defaults and hard limits.
func (p *Page) Normalize() {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
