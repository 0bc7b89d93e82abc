package history

import (
	"time"

	"github.com/searchgal/searchgal/internal/search"
)

// Status is the final or current state of a recorded search.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Entry is one recorded search.
type Entry struct {
	ID            string            `json:"id" yaml:"id"`
	Game          string            `json:"game" yaml:"game"`
	Mode          string            `json:"mode" yaml:"mode"`
	Status        Status            `json:"status" yaml:"status"`
	Total         int               `json:"total" yaml:"total"`
	Completed     int               `json:"completed" yaml:"completed"`
	PlatformCount int               `json:"platformCount" yaml:"platform_count"`
	ItemCount     int               `json:"itemCount" yaml:"item_count"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt     time.Time         `json:"startedAt" yaml:"started_at"`
	FinishedAt    *time.Time        `json:"finishedAt,omitempty" yaml:"finished_at,omitempty"`
	Platforms     []PlatformSummary `json:"platforms,omitempty" yaml:"platforms,omitempty"`
}

// PlatformSummary is one platform result stored with a search.
type PlatformSummary struct {
	Name      string        `json:"name" yaml:"name"`
	Color     search.Color  `json:"color" yaml:"color"`
	URL       string        `json:"url" yaml:"url"`
	ItemCount int           `json:"itemCount" yaml:"item_count"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Items     []search.Item `json:"items" yaml:"items"`
}

// CreateInput contains fields for recording a new search.
type CreateInput struct {
	ID   string // generated when empty
	Game string
	Mode search.Mode
}

// ListOptions contains options for listing history.
type ListOptions struct {
	Game     string // substring match, case-insensitive
	Status   string
	Page     int
	PageSize int
}

// ListResponse contains paginated history results.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
