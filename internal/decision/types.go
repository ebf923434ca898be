package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/keywords"
)

// Kind is a canonical reviewer decision.
type Kind string

const (
	Approve Kind = "approve"
	Reject  Kind = "reject"
	Modify  Kind = "modify"
	Rerun   Kind = "rerun"
)

// ParseIntent accepts the three UI intents. Rerun is never requested directly;
// it is derived from a modify intent.
func ParseIntent(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case Approve:
		return Approve, nil
	case Reject:
		return Reject, nil
	case Modify:
		return Modify, nil
	}
	return "", fmt.Errorf("unknown decision intent: %q", raw)
}

// Draft is the transient per-approval decision state edited by the reviewer.
type Draft struct {
	Comment string
	Intent  Kind

	// Override is an explicit replacement payload supplied by the caller.
	Override json.RawMessage
	// EditedOutput is the editor's tracked data.
	EditedOutput     json.RawMessage
	HasEditorChanges bool
	// ManualText is free text the reviewer typed as a JSON payload.
	ManualText string
}

// TrimmedComment returns the comment without surrounding whitespace.
func (d Draft) TrimmedComment() string {
	return strings.TrimSpace(d.Comment)
}

// CanApprove is false while the editor holds changes that were never captured
// as an edited payload.
func (d Draft) CanApprove() bool {
	return !d.HasEditorChanges || len(d.EditedOutput) > 0
}

// Request is the canonical decision sent to the decide endpoint.
type Request struct {
	Decision         Kind              `json:"decision"`
	Comment          string            `json:"comment,omitempty"`
	ModifiedOutput   json.RawMessage   `json:"modified_output,omitempty"`
	MainKeyword      string            `json:"main_keyword,omitempty"`
	SelectedKeywords *keywords.Payload `json:"selected_keywords,omitempty"`
	ReviewedBy       string            `json:"reviewed_by"`
}
