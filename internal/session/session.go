// Package session drives one reviewer's work on one approval at a time.
//
// A Session loads an approval, holds the reviewer's draft or keyword
// selection, and turns actions into calls on the pipeline API. Decision
// submissions are single-flight and re-check the approval status right before
// the decide call, so a decision made elsewhere in the meantime is reported as
// a conflict instead of being overwritten.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/audit"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/keywords"
	"github.com/MEKXH/reviewdesk/internal/metrics"
)

const (
	opLoad     = "load approval"
	opDecide   = "submit decision"
	opKeywords = "submit keywords"
	opCancel   = "cancel job"
	opRetry    = "retry step"
	opPoll     = "poll job status"
)

var (
	ErrNotLoaded = errors.New("no approval loaded")
	ErrClosed    = errors.New("session closed")
)

// API is the pipeline backend as seen by a session.
type API interface {
	GetApproval(ctx context.Context, id string) (approval.Request, error)
	Decide(ctx context.Context, approvalID string, req decision.Request) error
	CancelJob(ctx context.Context, jobID string) error
	RetryStep(ctx context.Context, approvalID string) (string, error)
	JobStatus(ctx context.Context, jobID string) (jobs.View, error)
}

// AuditRecorder stores reviewer actions.
type AuditRecorder interface {
	Append(event audit.Event) error
}

// MetricsRecorder aggregates submit and poll outcomes.
type MetricsRecorder interface {
	RecordDecision(kind string, duration time.Duration, err error) (metrics.ReviewSnapshot, error)
	RecordPoll(success bool, terminalStatus string) (metrics.ReviewSnapshot, error)
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	Reviewer    string
	KeywordStep string
	// PipelineSteps is the number of steps a job's progress is spread over.
	PipelineSteps int
	PollInterval  time.Duration
	MaxFailures   int

	Notifier  Notifier
	Confirmer Confirmer
	Audit     AuditRecorder
	Metrics   MetricsRecorder
	// JobObserver additionally receives every applied job tick.
	JobObserver jobs.Observer
	Now         func() time.Time
}

// Outcome is the last decision this session submitted successfully.
type Outcome struct {
	ApprovalID string
	JobID      string
	Request    decision.Request
	At         time.Time
}

// Session is the controller for one approval. All methods are safe for
// concurrent use; network calls are made without holding the session lock.
type Session struct {
	api         API
	notifier    Notifier
	confirmer   Confirmer
	audit       AuditRecorder
	metrics     MetricsRecorder
	jobObserver jobs.Observer
	keywordStep string
	now         func() time.Time

	poller  *jobs.Poller
	watcher *jobs.Watcher

	mu         sync.Mutex
	resolver   *decision.Resolver
	current    *approval.Request
	conflicted bool
	draft      decision.Draft
	selection  keywords.Selection
	candidates keywords.Candidates
	submitting bool
	closed     bool
	last       *Outcome
}

// New creates a session backed by api.
func New(api API, opts Options) *Session {
	s := &Session{
		api:         api,
		notifier:    opts.Notifier,
		confirmer:   opts.Confirmer,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		jobObserver: opts.JobObserver,
		keywordStep: strings.TrimSpace(opts.KeywordStep),
		now:         opts.Now,
		resolver:    decision.NewResolver(opts.Reviewer),
		poller:      jobs.NewPoller(opts.PipelineSteps),
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.confirmer == nil {
		s.confirmer = declineConfirmer{}
	}
	if s.jobObserver == nil {
		s.jobObserver = jobs.ObserverFuncs{}
	}
	if s.keywordStep == "" {
		s.keywordStep = approval.DefaultKeywordStep
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.watcher = jobs.NewWatcher(jobs.WatcherConfig{
		Interval:    opts.PollInterval,
		MaxFailures: opts.MaxFailures,
	}, api, s.poller, s)
	return s
}

// Reviewer returns the identity stamped on decisions.
func (s *Session) Reviewer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Reviewer()
}

// Load fetches approval id and makes it current. The draft and keyword
// selection are reset when the approval identity changes; reloading the same
// approval keeps them and only refreshes the status.
func (s *Session) Load(ctx context.Context, id string) (approval.Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return approval.Request{}, fmt.Errorf("approval id is required")
	}

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return approval.Request{}, err
	}
	s.mu.Unlock()

	req, err := s.api.GetApproval(ctx, id)
	if err != nil {
		s.notifyFailure(opLoad, err)
		return approval.Request{}, err
	}

	var parseErr error
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return approval.Request{}, ErrClosed
	}
	changed := s.current == nil || s.current.ID != req.ID
	s.current = &req
	s.conflicted = false
	if changed {
		s.draft = decision.Draft{}
		s.resolver.Reset()
		s.selection = keywords.Selection{}
		s.candidates = keywords.Candidates{}
		if req.IsKeywordStep(s.keywordStep) {
			s.selection, s.candidates, parseErr = keywords.FromOutput(req.OutputData)
		}
	}
	s.mu.Unlock()

	if parseErr != nil {
		slog.Warn("keyword output could not be parsed", "approval_id", req.ID, "error", parseErr)
		s.notifier.Notify(Notice{
			Level:   LevelWarn,
			Op:      opLoad,
			Message: "keyword candidates could not be read: " + parseErr.Error(),
			Err:     parseErr,
		})
	}
	slog.Debug("approval loaded", "approval_id", req.ID, "step", req.PipelineStep, "status", req.Status)
	return req, nil
}

// Approval returns the current approval.
func (s *Session) Approval() (approval.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return approval.Request{}, false
	}
	return *s.current, true
}

// IsKeywordStep reports whether the current approval uses keyword selection.
func (s *Session) IsKeywordStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.IsKeywordStep(s.keywordStep)
}

// CanDecide reports whether decision actions are currently enabled.
func (s *Session) CanDecide() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usableLocked() == nil && s.current != nil && s.current.IsPending() && !s.conflicted && !s.submitting
}

// Submitting reports whether a decision is in flight.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Draft returns a copy of the decision draft.
func (s *Session) Draft() decision.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Selection returns the keyword selection.
func (s *Session) Selection() keywords.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Candidates returns the keywords the step produced.
func (s *Session) Candidates() keywords.Candidates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates
}

// ResolverState returns the decision resolver state.
func (s *Session) ResolverState() decision.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.State()
}

// LastOutcome returns the last successful decision, if any.
func (s *Session) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// SetComment replaces the reviewer comment.
func (s *Session) SetComment(comment string) error {
	return s.editDraft(func(d *decision.Draft) { d.Comment = comment })
}

// SetEditedOutput records the editor's data as the modified output.
func (s *Session) SetEditedOutput(output json.RawMessage) error {
	return s.editDraft(func(d *decision.Draft) {
		d.EditedOutput = append(json.RawMessage(nil), output...)
		d.HasEditorChanges = true
	})
}

// MarkEditorChanged flags unsaved editor changes that have no captured payload yet.
func (s *Session) MarkEditorChanged() error {
	return s.editDraft(func(d *decision.Draft) { d.HasEditorChanges = true })
}

// SetManualText stores free text to be parsed as the modified output.
func (s *Session) SetManualText(text string) error {
	return s.editDraft(func(d *decision.Draft) { d.ManualText = text })
}

// SetOverride sets an explicit replacement payload that wins over every other source.
func (s *Session) SetOverride(payload json.RawMessage) error {
	return s.editDraft(func(d *decision.Draft) {
		d.Override = append(json.RawMessage(nil), payload...)
	})
}

// ClearEdits drops every output edit but keeps the comment.
func (s *Session) ClearEdits() error {
	return s.editDraft(func(d *decision.Draft) {
		*d = decision.Draft{Comment: d.Comment, Intent: d.Intent}
	})
}

func (s *Session) editDraft(fn func(*decision.Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.current == nil {
		return ErrNotLoaded
	}
	fn(&s.draft)
	return nil
}

// SetMainKeyword makes kw the main keyword.
func (s *Session) SetMainKeyword(kw string) error {
	return s.editSelection(func(sel keywords.Selection) (keywords.Selection, error) {
		return sel.SetMainKeyword(kw), nil
	})
}

// Promote moves kw from a category into the main keyword slot.
func (s *Session) Promote(kw string, from keywords.Category) error {
	return s.editSelection(func(sel keywords.Selection) (keywords.Selection, error) {
		return sel.Promote(kw, from), nil
	})
}

// ToggleKeyword flips kw in category. The main keyword cannot be removed from
// primary this way; promote a replacement instead.
func (s *Session) ToggleKeyword(category keywords.Category, kw string) error {
	return s.editSelection(func(sel keywords.Selection) (keywords.Selection, error) {
		if !sel.CanToggle(category, kw) {
			return sel, approval.NewValidationError(approval.CodeMainKeywordLocked,
				fmt.Sprintf("%q is the main keyword; promote another keyword first", kw), nil)
		}
		return sel.Toggle(category, kw), nil
	})
}

// SelectAll selects every candidate of category.
func (s *Session) SelectAll(category keywords.Category) error {
	return s.editSelection(func(sel keywords.Selection) (keywords.Selection, error) {
		return sel.SelectAll(category, s.candidates.Keywords(category)), nil
	})
}

// DeselectAll clears category, keeping the main keyword in primary.
func (s *Session) DeselectAll(category keywords.Category) error {
	return s.editSelection(func(sel keywords.Selection) (keywords.Selection, error) {
		return sel.DeselectAll(category), nil
	})
}

func (s *Session) editSelection(fn func(keywords.Selection) (keywords.Selection, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.current == nil {
		return ErrNotLoaded
	}
	if !s.current.IsKeywordStep(s.keywordStep) {
		return approval.NewValidationError(approval.CodeNotKeywordStep,
			fmt.Sprintf("step %q has no keyword selection", s.current.PipelineStep), nil)
	}
	next, err := fn(s.selection)
	if err != nil {
		return err
	}
	s.selection = next
	return nil
}

// Submit resolves intent against the draft and sends the decision. On the
// keyword step approve and modify submit the keyword selection; reject is
// sent as a reject. While another submission is in flight Submit returns a
// busy error without side effects.
func (s *Session) Submit(ctx context.Context, intent decision.Kind) (decision.Request, error) {
	if intent != decision.Reject && s.IsKeywordStep() {
		return s.SubmitKeywords(ctx)
	}
	return s.submit(ctx, opDecide, func() (decision.Request, error) {
		if intent == decision.Approve && !s.draft.CanApprove() {
			return decision.Request{}, approval.NewValidationError(approval.CodeUnsavedEdits,
				"save or discard the editor changes before approving", nil)
		}
		return s.resolver.Resolve(intent, s.draft)
	})
}

// SubmitKeywords sends the keyword selection as a modify decision.
func (s *Session) SubmitKeywords(ctx context.Context) (decision.Request, error) {
	return s.submit(ctx, opKeywords, func() (decision.Request, error) {
		if !s.current.IsKeywordStep(s.keywordStep) {
			return decision.Request{}, approval.NewValidationError(approval.CodeNotKeywordStep,
				fmt.Sprintf("step %q has no keyword selection", s.current.PipelineStep), nil)
		}
		return s.resolver.ResolveKeywords(s.selection, s.draft.Comment)
	})
}

// submit runs one guarded submission. resolve is called with the lock held.
func (s *Session) submit(ctx context.Context, op string, resolve func() (decision.Request, error)) (decision.Request, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return decision.Request{}, err
	}
	if s.submitting {
		s.mu.Unlock()
		return decision.Request{}, approval.NewValidationError(approval.CodeBusy, "a decision is already being submitted", nil)
	}
	if s.current == nil {
		s.mu.Unlock()
		return decision.Request{}, ErrNotLoaded
	}
	if !s.current.IsPending() || s.conflicted {
		err := &approval.ConflictError{ApprovalID: s.current.ID, Status: s.current.Status}
		s.mu.Unlock()
		s.notifyFailure(op, err)
		return decision.Request{}, err
	}
	req, err := resolve()
	if err != nil {
		s.mu.Unlock()
		s.notifyFailure(op, err)
		return decision.Request{}, err
	}
	s.submitting = true
	approvalID := s.current.ID
	jobID := s.current.JobID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	if err := s.recheckPending(ctx, approvalID); err != nil {
		s.rollback()
		s.notifyFailure(op, err)
		return decision.Request{}, err
	}

	started := s.now()
	err = s.api.Decide(ctx, approvalID, req)
	s.recordDecision(approvalID, jobID, req, s.now().Sub(started), err)
	if err != nil {
		var conflict *approval.ConflictError
		if errors.As(err, &conflict) {
			s.markConflicted(approvalID, conflict.Status)
		}
		s.rollback()
		s.notifyFailure(op, err)
		return decision.Request{}, err
	}

	s.mu.Lock()
	s.last = &Outcome{ApprovalID: approvalID, JobID: jobID, Request: req, At: s.now()}
	s.mu.Unlock()
	s.teardown()

	slog.Info("decision submitted", "approval_id", approvalID, "decision", req.Decision, "reviewer", req.ReviewedBy)
	s.notifier.Notify(Notice{
		Level:   LevelInfo,
		Op:      op,
		Message: fmt.Sprintf("approval %s: %s submitted", approvalID, req.Decision),
	})
	return req, nil
}

// recheckPending reads the approval status at action time.
func (s *Session) recheckPending(ctx context.Context, approvalID string) error {
	fresh, err := s.api.GetApproval(ctx, approvalID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == approvalID {
		s.current.Status = fresh.Status
		s.current.ReviewedBy = fresh.ReviewedBy
		s.current.ReviewedAt = fresh.ReviewedAt
	}
	if !fresh.IsPending() {
		return &approval.ConflictError{ApprovalID: approvalID, Status: fresh.Status}
	}
	return nil
}

func (s *Session) markConflicted(approvalID string, status approval.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != approvalID {
		return
	}
	s.conflicted = true
	if status != "" {
		s.current.Status = status
	}
}

func (s *Session) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver.Reset()
}

// CancelJob asks for confirmation and cancels the tracked job, or the current
// approval's job when none is tracked. It reports whether the job was
// cancelled; a declined confirmation is not an error.
func (s *Session) CancelJob(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	jobID := s.poller.JobID()
	approvalID := ""
	if s.current != nil {
		approvalID = s.current.ID
		if jobID == "" {
			jobID = s.current.JobID
		}
	}
	s.mu.Unlock()

	if jobID == "" {
		err := approval.NewValidationError(approval.CodeNoJob, "there is no job to cancel", nil)
		s.notifyFailure(opCancel, err)
		return false, err
	}
	if !s.confirmer.Confirm(fmt.Sprintf("Cancel job %s? The pipeline run stops and cannot be resumed.", jobID)) {
		slog.Debug("job cancel declined", "job_id", jobID)
		return false, nil
	}

	err := s.api.CancelJob(ctx, jobID)
	s.appendAudit(audit.Event{
		Type:       audit.TypeCancel,
		ApprovalID: approvalID,
		JobID:      jobID,
		Reviewer:   s.Reviewer(),
		Result:     resultOf(err),
		Detail:     errDetail(err),
	})
	if err != nil {
		s.notifyFailure(opCancel, err)
		return false, err
	}

	s.teardown()
	slog.Info("job cancelled", "job_id", jobID)
	s.notifier.Notify(Notice{Level: LevelInfo, Op: opCancel, Message: fmt.Sprintf("job %s cancelled", jobID)})
	return true, nil
}

// RetryStep re-queues the step of a rejected approval and attaches the new
// job. It is offered once after this session rejected an approval, or while
// the current approval is rejected.
func (s *Session) RetryStep(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	approvalID := ""
	fromOutcome := false
	switch {
	case s.current != nil && s.current.Status == approval.StatusRejected:
		approvalID = s.current.ID
	case s.current == nil && s.last != nil && s.last.Request.Decision == decision.Reject:
		approvalID = s.last.ApprovalID
		fromOutcome = true
	}
	s.mu.Unlock()

	if approvalID == "" {
		err := approval.NewValidationError(approval.CodeNotRetryable, "retry is only offered after a rejection", nil)
		s.notifyFailure(opRetry, err)
		return "", err
	}

	jobID, err := s.api.RetryStep(ctx, approvalID)
	s.appendAudit(audit.Event{
		Type:       audit.TypeRetry,
		ApprovalID: approvalID,
		JobID:      jobID,
		Reviewer:   s.Reviewer(),
		Result:     resultOf(err),
		Detail:     errDetail(err),
	})
	if err != nil {
		s.notifyFailure(opRetry, err)
		return "", err
	}

	if fromOutcome {
		s.mu.Lock()
		s.last = nil
		s.mu.Unlock()
	}
	s.AttachJob(jobID)
	s.notifier.Notify(Notice{Level: LevelInfo, Op: opRetry, Message: fmt.Sprintf("step re-queued as job %s", jobID)})
	return jobID, nil
}

// AttachJob tracks jobID for caller-driven polling through PollJob or
// HandleTick. Any previously tracked job is replaced; attaching the tracked
// job again is a no-op.
func (s *Session) AttachJob(jobID string) {
	if s.poller.Tracking(strings.TrimSpace(jobID)) {
		return
	}
	if s.watcher.IsRunning() {
		s.watcher.Stop()
	}
	s.poller.Attach(jobID)
}

// WatchJob polls jobID in the background until it reaches a terminal state.
func (s *Session) WatchJob(ctx context.Context, jobID string) error {
	return s.watcher.Start(ctx, jobID)
}

// RunJob polls jobID in the calling goroutine until a terminal state.
func (s *Session) RunJob(ctx context.Context, jobID string) (jobs.TickResult, error) {
	return s.watcher.Run(ctx, jobID)
}

// PollJob requests the tracked job's status once.
func (s *Session) PollJob(ctx context.Context) (jobs.TickResult, error) {
	jobID := s.poller.JobID()
	if jobID == "" {
		return jobs.TickResult{}, approval.NewValidationError(approval.CodeNoJob, "no job is being tracked", nil)
	}
	return s.watcher.PollOnce(ctx, jobID)
}

// HandleTick applies a status response requested for jobID. Responses for a
// job that is no longer tracked have no effect.
func (s *Session) HandleTick(jobID string, view jobs.View, fetchErr error) (jobs.TickResult, error) {
	return s.watcher.Apply(jobID, view, fetchErr)
}

// JobSnapshot returns the tracked job state.
func (s *Session) JobSnapshot() jobs.Snapshot {
	return s.poller.Snapshot()
}

// JobUpdated implements jobs.Observer.
func (s *Session) JobUpdated(result jobs.TickResult) {
	terminal := ""
	if result.Terminal {
		terminal = string(result.View.Status)
	}
	s.recordPoll(true, terminal)
	s.jobObserver.JobUpdated(result)

	if !result.Terminal {
		return
	}
	notice := Notice{
		Level:   LevelInfo,
		Op:      opPoll,
		Message: fmt.Sprintf("job %s completed", result.View.JobID),
	}
	if result.View.Status == jobs.StatusFailed {
		notice.Level = LevelError
		notice.Message = fmt.Sprintf("job %s failed", result.View.JobID)
		if detail := strings.TrimSpace(result.View.Error); detail != "" {
			notice.Message += ": " + detail
		}
	}
	s.notifier.Notify(notice)
}

// JobPollFailed implements jobs.Observer.
func (s *Session) JobPollFailed(jobID string, err error, failures int) {
	s.recordPoll(false, "")
	s.jobObserver.JobPollFailed(jobID, err, failures)
	slog.Warn("job status poll failed", "job_id", jobID, "failures", failures, "error", err)
	s.notifier.Notify(Notice{
		Level:     LevelWarn,
		Op:        opPoll,
		Message:   fmt.Sprintf("job %s: %v (attempt %d)", jobID, err, failures),
		Retryable: true,
		Err:       err,
	})
}

// Close discards the session. The job poll is stopped and late responses are
// ignored; further actions return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.teardown()
}

// teardown drops the current approval and any job poll. It must not be
// called with s.mu held: stopping the watcher waits for its loop, which may
// be delivering a tick to this session.
func (s *Session) teardown() {
	s.watcher.Stop()
	s.poller.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.conflicted = false
	s.draft = decision.Draft{}
	s.selection = keywords.Selection{}
	s.candidates = keywords.Candidates{}
	s.resolver.Reset()
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Session) recordDecision(approvalID, jobID string, req decision.Request, elapsed time.Duration, err error) {
	if s.metrics != nil {
		if _, mErr := s.metrics.RecordDecision(string(req.Decision), elapsed, err); mErr != nil {
			slog.Warn("record decision metrics failed", "error", mErr)
		}
	}
	s.appendAudit(audit.Event{
		Type:       audit.TypeDecision,
		ApprovalID: approvalID,
		JobID:      jobID,
		Decision:   string(req.Decision),
		Reviewer:   req.ReviewedBy,
		Result:     resultOf(err),
		Detail:     errDetail(err),
	})
}

func (s *Session) recordPoll(success bool, terminal string) {
	if s.metrics == nil {
		return
	}
	if _, err := s.metrics.RecordPoll(success, terminal); err != nil {
		slog.Warn("record poll metrics failed", "error", err)
	}
}

func (s *Session) appendAudit(event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Time = s.now().UTC()
	if err := s.audit.Append(event); err != nil {
		slog.Warn("audit append failed", "type", event.Type, "error", err)
	}
}

func (s *Session) notifyFailure(op string, err error) {
	slog.Debug("session operation failed", "op", op, "error", err)
	s.notifier.Notify(failureNotice(op, err))
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
