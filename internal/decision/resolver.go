// Package decision turns reviewer intent plus draft state into one canonical
// decision request.
package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/keywords"
)

// Phase is the resolver's position in its state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseResolved
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the resolver state. Kind is set while pending or resolved, Err
// while failed.
type State struct {
	Phase Phase
	Kind  Kind
	Err   error
}

func (s State) String() string {
	switch s.Phase {
	case PhasePending:
		return fmt.Sprintf("pending(%s)", s.Kind)
	case PhaseResolved:
		return fmt.Sprintf("resolved(%s)", s.Kind)
	case PhaseFailed:
		return fmt.Sprintf("failed(%v)", s.Err)
	}
	return s.Phase.String()
}

const unknownReviewer = "unknown"

// Resolver derives canonical decision requests for one reviewer.
type Resolver struct {
	reviewer string
	state    State
}

// NewResolver creates an idle resolver stamping requests with reviewer.
func NewResolver(reviewer string) *Resolver {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		reviewer = unknownReviewer
	}
	return &Resolver{reviewer: reviewer}
}

// Reviewer returns the identity written into reviewed_by.
func (r *Resolver) Reviewer() string {
	return r.reviewer
}

// State returns the current state.
func (r *Resolver) State() State {
	return r.state
}

// Reset returns the resolver to idle, e.g. after a transport failure rolled
// the submission back.
func (r *Resolver) Reset() {
	r.state = State{Phase: PhaseIdle}
}

// Resolve maps a UI intent and draft to a decision request. On failure the
// resolver moves to PhaseFailed and no request is produced; the draft is never
// modified.
func (r *Resolver) Resolve(intent Kind, draft Draft) (Request, error) {
	switch intent {
	case Approve, Reject, Modify:
	default:
		return Request{}, r.fail(approval.NewValidationError(approval.CodeUnknownIntent, fmt.Sprintf("unknown decision intent %q", intent), nil))
	}

	effective := EffectiveKind(intent, draft)
	r.state = State{Phase: PhasePending, Kind: effective}

	req := Request{
		Decision:   effective,
		Comment:    draft.TrimmedComment(),
		ReviewedBy: r.reviewer,
	}

	if effective == Modify {
		payload, err := modifiedPayload(draft)
		if err != nil {
			return Request{}, r.fail(err)
		}
		req.ModifiedOutput = payload
	}

	r.state = State{Phase: PhaseResolved, Kind: effective}
	return req, nil
}

// ResolveKeywords builds the keyword step decision. It bypasses intent
// disambiguation: the result is always a modify carrying the selection.
func (r *Resolver) ResolveKeywords(selection keywords.Selection, comment string) (Request, error) {
	r.state = State{Phase: PhasePending, Kind: Modify}
	if !selection.IsSubmittable() {
		return Request{}, r.fail(approval.NewValidationError(approval.CodeMissingMainKeyword, "a main keyword is required", nil))
	}

	payload := selection.Payload()
	r.state = State{Phase: PhaseResolved, Kind: Modify}
	return Request{
		Decision:         Modify,
		Comment:          strings.TrimSpace(comment),
		MainKeyword:      selection.MainKeyword,
		SelectedKeywords: &payload,
		ReviewedBy:       r.reviewer,
	}, nil
}

// EffectiveKind applies the modify/rerun rule: a modify with no edits of any
// kind but a non-blank comment re-executes the step with the comment as
// guidance.
func EffectiveKind(intent Kind, draft Draft) Kind {
	if intent != Modify {
		return intent
	}
	if hasEdits(draft) || len(draft.Override) > 0 {
		return Modify
	}
	if draft.TrimmedComment() != "" {
		return Rerun
	}
	return Modify
}

func hasEdits(draft Draft) bool {
	return draft.HasEditorChanges || strings.TrimSpace(draft.ManualText) != ""
}

func (r *Resolver) fail(err error) error {
	r.state = State{Phase: PhaseFailed, Err: err}
	return err
}

func modifiedPayload(draft Draft) (json.RawMessage, error) {
	switch {
	case len(draft.Override) > 0:
		return compactJSON(draft.Override, "override payload")
	case draft.HasEditorChanges && len(draft.EditedOutput) > 0:
		return compactJSON(draft.EditedOutput, "edited output")
	case strings.TrimSpace(draft.ManualText) != "":
		return compactJSON([]byte(draft.ManualText), "modified output")
	}
	return nil, approval.NewValidationError(approval.CodeEmptyModification, "nothing to modify: edit the output or add a comment to rerun", nil)
}

func compactJSON(raw []byte, what string) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(raw)); err != nil {
		return nil, approval.NewValidationError(approval.CodeInvalidJSON, what+" is not valid JSON", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
