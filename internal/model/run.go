package model

import "time"

// RunStatus represents the current state of a segmentation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one segmentation run for bookkeeping in the store.
type Run struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	K         int       `json:"k"`
	Seed      int64     `json:"seed"`
	Status    RunStatus `json:"status"`
	Customers int       `json:"customers"`
	Ratio     float64   `json:"ratio"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
