package jobs

import "encoding/json"

// Status is the remote lifecycle state of a pipeline job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether polling must stop after observing s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// View is one job status snapshot as returned by the job status endpoint.
type View struct {
	JobID       string          `json:"job_id"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ClampedProgress returns Progress limited to [0,100].
func (v View) ClampedProgress() int {
	return clampProgress(v.Progress)
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
