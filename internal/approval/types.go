package approval

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// DefaultKeywordStep is the pipeline step that produces the SEO keyword taxonomy.
const DefaultKeywordStep = "keyword_research"

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusModified:
		return true
	}
	return false
}

// Request is a human-review gate holding one pipeline step's input and output.
type Request struct {
	ID              string          `json:"id"`
	JobID           string          `json:"job_id"`
	PipelineStep    string          `json:"pipeline_step"`
	Status          Status          `json:"status"`
	InputData       json.RawMessage `json:"input_data,omitempty"`
	OutputData      json.RawMessage `json:"output_data,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	Suggestions     []string        `json:"suggestions"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	UserComment     string          `json:"user_comment,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

// IsPending reports whether the request still accepts a decision.
func (r Request) IsPending() bool {
	return r.Status == StatusPending
}

// IsDecided reports whether a reviewer or the pipeline already closed the request.
func (r Request) IsDecided() bool {
	return r.Status.Valid() && r.Status != StatusPending
}

// IsKeywordStep reports whether the request belongs to the keyword selection step.
func (r Request) IsKeywordStep(keywordStep string) bool {
	keywordStep = strings.TrimSpace(keywordStep)
	if keywordStep == "" {
		keywordStep = DefaultKeywordStep
	}
	return strings.EqualFold(strings.TrimSpace(r.PipelineStep), keywordStep)
}

// Confidence returns the confidence score clamped to [0,1] and whether one was reported.
func (r Request) Confidence() (float64, bool) {
	if r.ConfidenceScore == nil {
		return 0, false
	}
	score := *r.ConfidenceScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}

// Query filters approval requests when listing.
type Query struct {
	Status       Status
	PipelineStep string
	JobID        string
}
