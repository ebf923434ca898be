// Package sandbox is a local stand-in for the pipeline API. It keeps approvals
// and jobs in a JSON file and simulates job progress: every status read moves a
// running job forward, and a job stops at its approval gate until a reviewer
// decides.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/keywords"
)

const (
	defaultAdvance = 15
	// CodeJobFinished is reported when cancelling a job that already ended.
	CodeJobFinished = "job_finished"
	// CodeBadRequest is reported for malformed decision bodies.
	CodeBadRequest = "bad_request"
)

// ErrNotFound is returned for unknown approval or job ids.
var ErrNotFound = errors.New("not found")

// CreateInput describes a step output that needs review.
type CreateInput struct {
	PipelineStep    string
	InputData       json.RawMessage
	OutputData      json.RawMessage
	ConfidenceScore *float64
	Suggestions     []string
}

// Service orchestrates the sandbox approval and job lifecycle.
type Service struct {
	store   *Store
	steps   []string
	advance int
	now     func() time.Time
	mu      sync.Mutex
}

// NewService creates a service backed by <workspace>/state/sandbox.json.
// steps is the pipeline used to place approvals and report current_step.
func NewService(workspace string, steps []string) *Service {
	cleaned := make([]string, 0, len(steps))
	for _, step := range steps {
		if step = strings.TrimSpace(step); step != "" {
			cleaned = append(cleaned, step)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{approval.DefaultKeywordStep}
	}
	return &Service{
		store:   NewStore(workspace),
		steps:   cleaned,
		advance: defaultAdvance,
		now:     time.Now,
	}
}

// Steps returns the simulated pipeline.
func (s *Service) Steps() []string {
	return append([]string(nil), s.steps...)
}

// Create inserts a pending approval together with a job gated on it.
func (s *Service) Create(input CreateInput) (approval.Request, error) {
	step := strings.TrimSpace(input.PipelineStep)
	if step == "" {
		return approval.Request{}, fmt.Errorf("pipeline_step is required")
	}
	if len(input.OutputData) > 0 && !json.Valid(input.OutputData) {
		return approval.Request{}, fmt.Errorf("output_data must be valid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return approval.Request{}, err
	}
	req := s.createLocked(&data, input)
	if err := s.store.Save(data); err != nil {
		return approval.Request{}, err
	}
	return req, nil
}

func (s *Service) createLocked(data *fileData, input CreateInput) approval.Request {
	now := s.now().UTC()
	step := strings.TrimSpace(input.PipelineStep)
	start, gate := s.stepBounds(step)

	job := Job{
		ID:           "job-" + strconv.FormatInt(data.NextID, 10),
		Status:       jobs.StatusProcessing,
		Progress:     start,
		CurrentStep:  step,
		GateProgress: gate,
		Gated:        true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data.NextID++

	suggestions := input.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	req := approval.Request{
		ID:              "ap-" + strconv.FormatInt(data.NextID, 10),
		JobID:           job.ID,
		PipelineStep:    step,
		Status:          approval.StatusPending,
		InputData:       input.InputData,
		OutputData:      input.OutputData,
		ConfidenceScore: input.ConfidenceScore,
		Suggestions:     suggestions,
		CreatedAt:       now,
	}
	data.NextID++

	job.ApprovalID = req.ID
	data.Jobs = append(data.Jobs, job)
	data.Approvals = append(data.Approvals, req)
	return req
}

// Get returns one approval.
func (s *Service) Get(id string) (approval.Request, error) {
	id = strings.TrimSpace(id)
	list, err := s.List(approval.Query{})
	if err != nil {
		return approval.Request{}, err
	}
	for _, req := range list {
		if req.ID == id {
			return req, nil
		}
	}
	return approval.Request{}, fmt.Errorf("approval %s: %w", id, ErrNotFound)
}

// List returns approvals filtered by query values.
func (s *Service) List(query approval.Query) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	stepFilter := strings.TrimSpace(query.PipelineStep)
	jobFilter := strings.TrimSpace(query.JobID)

	result := make([]approval.Request, 0, len(data.Approvals))
	for _, req := range data.Approvals {
		if query.Status != "" && req.Status != query.Status {
			continue
		}
		if stepFilter != "" && !strings.EqualFold(req.PipelineStep, stepFilter) {
			continue
		}
		if jobFilter != "" && req.JobID != jobFilter {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

// Decide applies a decision to a pending approval. A decided approval yields
// an *approval.ConflictError carrying its status.
func (s *Service) Decide(id string, req decision.Request) (approval.Request, error) {
	id = strings.TrimSpace(id)
	if err := validateDecision(req); err != nil {
		return approval.Request{}, err
	}
	reviewer := strings.TrimSpace(req.ReviewedBy)
	if reviewer == "" {
		reviewer = "unknown"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return approval.Request{}, err
	}

	idx := findApproval(data, id)
	if idx < 0 {
		return approval.Request{}, fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	current := &data.Approvals[idx]
	if !current.IsPending() {
		return approval.Request{}, &approval.ConflictError{ApprovalID: id, Status: current.Status}
	}

	now := s.now().UTC()
	current.ReviewedBy = reviewer
	current.ReviewedAt = &now
	current.UserComment = strings.TrimSpace(req.Comment)

	job := findJob(data, current.JobID)
	switch req.Decision {
	case decision.Approve:
		current.Status = approval.StatusApproved
		releaseGate(job, now)
	case decision.Modify:
		current.Status = approval.StatusModified
		current.OutputData = modifiedOutput(current.OutputData, req)
		releaseGate(job, now)
	case decision.Reject:
		current.Status = approval.StatusRejected
		if job != nil && !job.Status.IsTerminal() {
			job.Status = jobs.StatusFailed
			job.Error = fmt.Sprintf("step %s rejected by %s", current.PipelineStep, reviewer)
			job.UpdatedAt = now
		}
	case decision.Rerun:
		current.Status = approval.StatusRejected
		decided := *current
		guidance := fmt.Sprintf("rerun requested by %s", reviewer)
		if current.UserComment != "" {
			guidance += ": " + current.UserComment
		}
		rerun := s.createLocked(&data, CreateInput{
			PipelineStep:    decided.PipelineStep,
			InputData:       decided.InputData,
			OutputData:      decided.OutputData,
			ConfidenceScore: decided.ConfidenceScore,
			Suggestions:     []string{guidance},
		})
		// createLocked appended a fresh job; the old one is superseded.
		if job := findJob(data, decided.JobID); job != nil && !job.Status.IsTerminal() {
			job.Status = jobs.StatusFailed
			job.Error = "superseded by rerun " + rerun.JobID
			job.UpdatedAt = now
		}
		if err := s.store.Save(data); err != nil {
			return approval.Request{}, err
		}
		return decided, nil
	}

	decided := *current
	if err := s.store.Save(data); err != nil {
		return approval.Request{}, err
	}
	return decided, nil
}

// Retry re-queues the step of a rejected approval as a new job.
func (s *Service) Retry(approvalID string) (Job, error) {
	approvalID = strings.TrimSpace(approvalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Job{}, err
	}
	idx := findApproval(data, approvalID)
	if idx < 0 {
		return Job{}, fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
	}
	req := data.Approvals[idx]
	if req.Status != approval.StatusRejected {
		return Job{}, &approval.ConflictError{ApprovalID: approvalID, Status: req.Status}
	}

	now := s.now().UTC()
	start, _ := s.stepBounds(req.PipelineStep)
	job := Job{
		ID:          "job-" + strconv.FormatInt(data.NextID, 10),
		ApprovalID:  req.ID,
		Status:      jobs.StatusQueued,
		Progress:    start,
		CurrentStep: req.PipelineStep,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data.NextID++
	data.Jobs = append(data.Jobs, job)

	if err := s.store.Save(data); err != nil {
		return Job{}, err
	}
	return job, nil
}

// JobStatus returns the job state after advancing it one simulated tick.
func (s *Service) JobStatus(jobID string) (jobs.View, error) {
	jobID = strings.TrimSpace(jobID)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return jobs.View{}, err
	}
	job := findJob(data, jobID)
	if job == nil {
		return jobs.View{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if job.Status.IsTerminal() {
		return job.View(), nil
	}

	s.advanceJob(job)
	if err := s.store.Save(data); err != nil {
		return jobs.View{}, err
	}
	return job.View(), nil
}

// Cancel stops a running job. Pending approvals of the job are closed as
// rejected by the system.
func (s *Service) Cancel(jobID string) error {
	jobID = strings.TrimSpace(jobID)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return err
	}
	job := findJob(data, jobID)
	if job == nil {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if job.Status.IsTerminal() {
		return approval.NewValidationError(CodeJobFinished, fmt.Sprintf("job %s already %s", jobID, job.Status), nil)
	}

	now := s.now().UTC()
	job.Status = jobs.StatusFailed
	job.Error = "cancelled by reviewer"
	job.Gated = false
	job.UpdatedAt = now

	for i := range data.Approvals {
		req := &data.Approvals[i]
		if req.JobID != jobID || !req.IsPending() {
			continue
		}
		req.Status = approval.StatusRejected
		req.ReviewedBy = "system"
		req.ReviewedAt = &now
		req.UserComment = "job cancelled"
	}

	return s.store.Save(data)
}

// Reset removes every approval and job.
func (s *Service) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(defaultFileData())
}

func (s *Service) advanceJob(job *Job) {
	now := s.now().UTC()
	if job.Status == jobs.StatusQueued {
		job.Status = jobs.StatusProcessing
		job.UpdatedAt = now
		return
	}

	limit := 100
	if job.Gated && job.GateProgress > 0 {
		limit = job.GateProgress
	}
	if job.Progress < limit {
		job.Progress = min(job.Progress+s.advance, limit)
		job.UpdatedAt = now
	}
	job.CurrentStep = s.stepAt(job.Progress)

	if job.Progress >= 100 {
		job.Status = jobs.StatusCompleted
		job.CurrentStep = s.steps[len(s.steps)-1]
		job.Result = json.RawMessage(fmt.Sprintf(`{"approval_id":%q,"published":true}`, job.ApprovalID))
	}
}

func (s *Service) stepAt(progress int) string {
	idx := jobs.StepIndex(progress, len(s.steps))
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx]
}

// stepBounds returns where step starts and the progress at which its output
// waits for review. Unknown steps are placed at the start of the pipeline.
func (s *Service) stepBounds(step string) (start, gate int) {
	n := len(s.steps)
	idx := 0
	for i, name := range s.steps {
		if strings.EqualFold(name, step) {
			idx = i
			break
		}
	}
	start = idx * 100 / n
	gate = (idx+1)*100/n - 1
	if gate <= start {
		gate = start + 1
	}
	return start, gate
}

func releaseGate(job *Job, now time.Time) {
	if job == nil || job.Status.IsTerminal() {
		return
	}
	job.Gated = false
	job.UpdatedAt = now
}

func modifiedOutput(previous json.RawMessage, req decision.Request) json.RawMessage {
	if len(req.ModifiedOutput) > 0 {
		return req.ModifiedOutput
	}
	if req.SelectedKeywords == nil {
		return previous
	}
	encoded, err := json.Marshal(map[string]any{
		"main_keyword":       req.MainKeyword,
		"primary_keywords":   req.SelectedKeywords.Primary,
		"secondary_keywords": req.SelectedKeywords.Secondary,
		"lsi_keywords":       req.SelectedKeywords.LSI,
		"long_tail_keywords": req.SelectedKeywords.LongTail,
	})
	if err != nil {
		return previous
	}
	return encoded
}

func validateDecision(req decision.Request) error {
	switch req.Decision {
	case decision.Approve, decision.Reject, decision.Rerun:
		return nil
	case decision.Modify:
	default:
		return approval.NewValidationError(approval.CodeUnknownIntent, fmt.Sprintf("unknown decision %q", req.Decision), nil)
	}

	if req.SelectedKeywords != nil {
		sel := keywords.Selection{
			MainKeyword: strings.TrimSpace(req.MainKeyword),
			Primary:     req.SelectedKeywords.Primary,
		}
		if !sel.IsSubmittable() {
			return approval.NewValidationError(approval.CodeMissingMainKeyword, "main_keyword is required with selected_keywords", nil)
		}
		if !sel.Contains(keywords.Primary, sel.MainKeyword) {
			return approval.NewValidationError(approval.CodeMissingMainKeyword, "main_keyword must be one of the primary keywords", nil)
		}
		return nil
	}
	if len(req.ModifiedOutput) == 0 {
		return approval.NewValidationError(approval.CodeEmptyModification, "modify requires modified_output or selected_keywords", nil)
	}
	if !json.Valid(req.ModifiedOutput) {
		return approval.NewValidationError(approval.CodeInvalidJSON, "modified_output must be valid JSON", nil)
	}
	return nil
}

func findApproval(data fileData, id string) int {
	for i := range data.Approvals {
		if data.Approvals[i].ID == id {
			return i
		}
	}
	return -1
}

func findJob(data fileData, id string) *Job {
	for i := range data.Jobs {
		if data.Jobs[i].ID == id {
			return &data.Jobs[i]
		}
	}
	return nil
}
