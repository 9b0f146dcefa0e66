package monitor

import (
	"context"
	"time"
)

// Status is the lifecycle state reported by the generation backend.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// ParseStatus maps a backend status string onto the known set, falling back
// to StatusUnknown for anything unrecognized.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusIdle, StatusRunning, StatusCompleted, StatusFailed:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// TaskHandle identifies exactly one backend generation job.
type TaskHandle struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusReport is one status poll result.
type StatusReport struct {
	Status   Status
	Progress int
}

// Snapshot is a fully-formed read of the monitored task's state. Status and
// Progress come from the status loop, Logs from the log loop; the fields are
// disjoint and each loop overwrites only its own.
type Snapshot struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Logs     string `json:"logs"`
}

// Backend is the remote surface the monitor polls. Implemented by
// client.Client; tests substitute fakes.
type Backend interface {
	TaskStatus(ctx context.Context, id string) (StatusReport, error)
	TaskLogs(ctx context.Context, id string) (string, error)
}
