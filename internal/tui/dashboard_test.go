package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/keywords"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu        sync.Mutex
	approvals map[string]approval.Request
	decided   []decision.Request
	cancelled []string
	retried   []string
	views     map[string]jobs.View
}

func newFakeAPI(reqs ...approval.Request) *fakeAPI {
	f := &fakeAPI{approvals: map[string]approval.Request{}, views: map[string]jobs.View{}}
	for _, req := range reqs {
		f.approvals[req.ID] = req
	}
	return f
}

func (f *fakeAPI) GetApproval(_ context.Context, id string) (approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.approvals[id]
	if !ok {
		return approval.Request{}, &approval.TransportError{Op: "fetch approval", StatusCode: 404, Err: errors.New("not found")}
	}
	return req, nil
}

func (f *fakeAPI) ListApprovals(_ context.Context, query approval.Query) ([]approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Request
	for _, req := range f.approvals {
		if query.Status == "" || req.Status == query.Status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeAPI) Decide(_ context.Context, id string, req decision.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current := f.approvals[id]
	if !current.IsPending() {
		return &approval.ConflictError{ApprovalID: id, Status: current.Status}
	}
	current.Status = approval.StatusApproved
	if req.Decision == decision.Reject {
		current.Status = approval.StatusRejected
	}
	f.approvals[id] = current
	f.decided = append(f.decided, req)
	return nil
}

func (f *fakeAPI) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeAPI) RetryStep(_ context.Context, approvalID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, approvalID)
	return "job-retry", nil
}

func (f *fakeAPI) JobStatus(_ context.Context, jobID string) (jobs.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, ok := f.views[jobID]
	if !ok {
		return jobs.View{JobID: jobID, Status: jobs.StatusProcessing}, nil
	}
	return view, nil
}

func outlineApproval() approval.Request {
	return approval.Request{
		ID:           "ap-1",
		JobID:        "job-1",
		PipelineStep: "outline",
		Status:       approval.StatusPending,
		OutputData:   json.RawMessage(`{"title":"t"}`),
	}
}

func keywordApproval() approval.Request {
	return approval.Request{
		ID:           "ap-kw",
		JobID:        "job-kw",
		PipelineStep: approval.DefaultKeywordStep,
		Status:       approval.StatusPending,
		OutputData:   json.RawMessage(`{"primary_keywords":["go testing","go fuzzing"],"secondary_keywords":["table tests"]}`),
	}
}

var testSteps = []string{"keyword_research", "outline", "draft", "seo_review", "final_edit"}

func newTestModel(t *testing.T, api *fakeAPI) *Model {
	t.Helper()
	m := New(api, Options{Reviewer: "alice", PipelineSteps: testSteps})
	t.Cleanup(m.Close)
	return m
}

// send applies msg and returns the command the dashboard asked for.
func send(t *testing.T, m *Model, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(msg)
	return cmd
}

// runCmd executes cmd and feeds its message back.
func runCmd(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func openApproval(t *testing.T, m *Model, req approval.Request) {
	t.Helper()
	send(t, m, queueLoadedMsg{items: []approval.Request{req}})
	runCmd(t, m, send(t, m, key("enter")))
	require.Equal(t, screenReview, m.screen)
}

func TestQueueOpensSelectedApproval(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)

	openApproval(t, m, outlineApproval())

	current, ok := m.Session().Approval()
	require.True(t, ok)
	assert.Equal(t, "ap-1", current.ID)
	assert.Contains(t, m.View(), "outline")
}

func TestApproveStartsJobPolling(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	openApproval(t, m, outlineApproval())

	cmd := send(t, m, key("a"))
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	send(t, m, cmd())

	require.Len(t, api.decided, 1)
	assert.Equal(t, decision.Approve, api.decided[0].Decision)
	assert.Equal(t, "alice", api.decided[0].ReviewedBy)
	assert.Equal(t, screenQueue, m.screen)
	assert.Equal(t, "job-1", m.jobID)
	assert.Equal(t, "job-1", m.Session().JobSnapshot().JobID)
}

func TestJobTicksAdvanceAndStaleTicksAreDropped(t *testing.T) {
	api := newFakeAPI()
	m := newTestModel(t, api)
	send(t, m, submittedMsg{jobID: "job-1"})

	next := send(t, m, jobTickMsg{jobID: "job-1", view: jobs.View{JobID: "job-1", Status: jobs.StatusProcessing, Progress: 40}})
	assert.NotNil(t, next, "expected the next poll to be scheduled")
	assert.Equal(t, 40, m.lastJob.Progress)
	assert.Equal(t, 2, m.lastJob.StepIndex)

	send(t, m, jobTickMsg{jobID: "job-1", view: jobs.View{JobID: "job-1", Status: jobs.StatusProcessing, Progress: 20}})
	assert.Equal(t, 40, m.lastJob.Progress, "progress must not regress")

	assert.Nil(t, send(t, m, jobTickMsg{jobID: "job-old", view: jobs.View{JobID: "job-old", Status: jobs.StatusCompleted, Progress: 100}}))
	assert.Equal(t, 40, m.lastJob.Progress)

	send(t, m, jobTickMsg{jobID: "job-1", view: jobs.View{JobID: "job-1", Status: jobs.StatusCompleted, Progress: 100}})
	assert.True(t, m.lastJob.Terminal)
	assert.Empty(t, m.jobID)
	assert.Nil(t, send(t, m, pollDueMsg{jobID: "job-1"}), "no poll after a terminal state")
	assert.Contains(t, m.View(), "completed")
}

func TestCancelRequiresConfirmation(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	openApproval(t, m, outlineApproval())

	assert.Nil(t, send(t, m, key("k")))
	assert.Equal(t, screenConfirm, m.screen)
	assert.Contains(t, m.View(), "Cancel job job-1?")

	send(t, m, key("n"))
	assert.Equal(t, screenReview, m.screen)
	assert.Empty(t, api.cancelled)

	send(t, m, key("k"))
	cmd := send(t, m, key("y"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	assert.Equal(t, []string{"job-1"}, api.cancelled)
	assert.Equal(t, screenQueue, m.screen)
	_, loaded := m.Session().Approval()
	assert.False(t, loaded)
}

func TestCommentEditorFeedsRerun(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	openApproval(t, m, outlineApproval())

	send(t, m, key("c"))
	require.Equal(t, screenEdit, m.screen)
	m.editor.SetValue("tighten the intro")
	send(t, m, key("ctrl+s"))
	assert.Equal(t, screenReview, m.screen)
	assert.Equal(t, "tighten the intro", m.Session().Draft().Comment)

	cmd := send(t, m, key("m"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	require.Len(t, api.decided, 1)
	assert.Equal(t, decision.Rerun, api.decided[0].Decision)
	assert.Equal(t, "tighten the intro", api.decided[0].Comment)
	assert.Empty(t, api.decided[0].ModifiedOutput)
}

func TestInvalidEditedOutputKeepsReviewOpen(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	openApproval(t, m, outlineApproval())

	send(t, m, key("e"))
	m.editor.SetValue(`{"title":`)
	send(t, m, key("ctrl+s"))

	cmd := send(t, m, key("m"))
	require.NotNil(t, cmd)
	msg := cmd()
	sub, ok := msg.(submittedMsg)
	require.True(t, ok)
	assert.True(t, approval.IsValidation(sub.err, approval.CodeInvalidJSON))
	send(t, m, msg)

	assert.Empty(t, api.decided)
	assert.Equal(t, screenReview, m.screen)
	assert.True(t, m.Session().Draft().HasEditorChanges, "the draft survives a failed resolution")
}

func TestKeywordSelectionKeys(t *testing.T) {
	api := newFakeAPI(keywordApproval())
	m := newTestModel(t, api)
	openApproval(t, m, keywordApproval())
	require.True(t, m.Session().IsKeywordStep())

	// The main keyword cannot be toggled out of primary.
	send(t, m, key("space"))
	assert.True(t, m.Session().Selection().Contains(keywords.Primary, "go testing"))

	send(t, m, key("down"))
	send(t, m, key("p"))
	assert.Equal(t, "go fuzzing", m.Session().Selection().MainKeyword)

	send(t, m, key("tab"))
	send(t, m, key("D"))
	assert.Zero(t, m.Session().Selection().Count(keywords.Secondary))

	view := m.View()
	assert.True(t, strings.Contains(view, "Main keyword: go fuzzing"), view)

	cmd := send(t, m, key("s"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	require.Len(t, api.decided, 1)
	req := api.decided[0]
	assert.Equal(t, decision.Modify, req.Decision)
	assert.Equal(t, "go fuzzing", req.MainKeyword)
	require.NotNil(t, req.SelectedKeywords)
	assert.Equal(t, "go fuzzing", req.SelectedKeywords.Primary[0])
	assert.Empty(t, req.SelectedKeywords.Secondary)
}

func TestNoticesAreShown(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	openApproval(t, m, outlineApproval())

	// Submitting the same approval twice surfaces the conflict notice.
	api.approvals["ap-1"] = approval.Request{ID: "ap-1", JobID: "job-1", PipelineStep: "outline", Status: approval.StatusRejected}
	cmd := send(t, m, key("a"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	notice := <-m.notices
	send(t, m, noticeMsg(notice))
	assert.Contains(t, m.View(), "reload")
	assert.False(t, m.Session().CanDecide())
}

func TestRejectThenRetryFromQueue(t *testing.T) {
	api := newFakeAPI(outlineApproval())
	m := newTestModel(t, api)
	assert.Nil(t, send(t, m, key("t")), "nothing to retry before a reject")

	openApproval(t, m, outlineApproval())
	cmd := send(t, m, key("x"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	require.Len(t, api.decided, 1)
	assert.Equal(t, decision.Reject, api.decided[0].Decision)
	assert.Equal(t, screenQueue, m.screen)
	assert.Contains(t, m.View(), "t retry rejected step")

	cmd = send(t, m, key("t"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	assert.Equal(t, []string{"ap-1"}, api.retried)
	assert.Equal(t, "job-retry", m.jobID)
	assert.Equal(t, "job-retry", m.Session().JobSnapshot().JobID)
	assert.NotContains(t, m.View(), "t retry rejected step")
	assert.Nil(t, send(t, m, key("t")), "retry is offered once")
}

func TestRejectOnKeywordStep(t *testing.T) {
	api := newFakeAPI(keywordApproval())
	m := newTestModel(t, api)
	openApproval(t, m, keywordApproval())
	require.True(t, m.Session().IsKeywordStep())

	cmd := send(t, m, key("x"))
	require.NotNil(t, cmd)
	send(t, m, cmd())

	require.Len(t, api.decided, 1)
	req := api.decided[0]
	assert.Equal(t, decision.Reject, req.Decision)
	assert.Empty(t, req.MainKeyword)
	assert.Nil(t, req.SelectedKeywords)
	assert.Equal(t, approval.StatusRejected, api.approvals["ap-kw"].Status)
}

func TestRefusedKeywordToggleIsShown(t *testing.T) {
	api := newFakeAPI(keywordApproval())
	m := newTestModel(t, api)
	openApproval(t, m, keywordApproval())

	send(t, m, key("space"))
	assert.True(t, m.Session().Selection().Contains(keywords.Primary, "go testing"))
	assert.True(t, approval.IsValidation(m.notice.Err, approval.CodeMainKeywordLocked))
	assert.Contains(t, m.View(), "is the main keyword")
}
