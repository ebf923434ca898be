// Package tui is the interactive review dashboard: a queue of pending
// approvals, a review screen driving a session.Session, and a job progress
// footer fed by caller-scheduled status polls.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/keywords"
	"github.com/MEKXH/reviewdesk/internal/session"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	requestTimeout = 15 * time.Second
	noticeBuffer   = 32
)

// API is what the dashboard needs from the pipeline backend.
type API interface {
	session.API
	ListApprovals(ctx context.Context, query approval.Query) ([]approval.Request, error)
}

// Options configures the dashboard.
type Options struct {
	Reviewer      string
	KeywordStep   string
	PipelineSteps []string
	PollInterval  time.Duration
	MaxFailures   int
	Audit         session.AuditRecorder
	Metrics       session.MetricsRecorder
	// Renderer renders previews; nil shows raw markdown.
	Renderer Renderer
}

type screen int

const (
	screenQueue screen = iota
	screenReview
	screenEdit
	screenConfirm
)

type editTarget int

const (
	editComment editTarget = iota
	editOutput
)

type (
	queueLoadedMsg struct {
		items []approval.Request
		err   error
	}
	approvalLoadedMsg struct {
		req approval.Request
		err error
	}
	submittedMsg struct {
		req   decision.Request
		jobID string
		err   error
	}
	cancelledMsg struct {
		ok  bool
		err error
	}
	retriedMsg struct {
		jobID string
		err   error
	}
	jobTickMsg struct {
		jobID string
		view  jobs.View
		err   error
	}
	pollDueMsg struct {
		jobID string
	}
	noticeMsg session.Notice
)

type queueItem struct {
	req approval.Request
}

func (i queueItem) Title() string { return i.req.PipelineStep + "  " + i.req.ID }

func (i queueItem) Description() string {
	desc := "job " + i.req.JobID
	if score, ok := i.req.Confidence(); ok {
		desc += fmt.Sprintf("  confidence %.0f%%", score*100)
	}
	if !i.req.CreatedAt.IsZero() {
		desc += "  " + i.req.CreatedAt.Local().Format("Jan 02 15:04")
	}
	return desc
}

func (i queueItem) FilterValue() string { return i.req.PipelineStep + " " + i.req.ID }

// Model is the dashboard bubbletea model.
type Model struct {
	api      API
	sess     *session.Session
	opts     Options
	notices  chan session.Notice
	armed    *atomic.Bool
	renderer Renderer

	screen  screen
	width   int
	height  int
	editing editTarget

	queue    list.Model
	preview  viewport.Model
	editor   textarea.Model
	progress progress.Model
	spinner  spinner.Model

	kwCategory int
	kwCursor   int

	busy    bool
	notice  session.Notice
	jobID   string
	lastJob jobs.TickResult
}

// New creates the dashboard over api.
func New(api API, opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	m := &Model{
		api:      api,
		opts:     opts,
		notices:  make(chan session.Notice, noticeBuffer),
		armed:    &atomic.Bool{},
		renderer: opts.Renderer,
	}

	notifier := session.NotifierFunc(func(n session.Notice) {
		select {
		case m.notices <- n:
		default:
			slog.Debug("dashboard notice dropped", "op", n.Op, "message", n.Message)
		}
	})
	armed := m.armed
	m.sess = session.New(api, session.Options{
		Reviewer:      opts.Reviewer,
		KeywordStep:   opts.KeywordStep,
		PipelineSteps: len(opts.PipelineSteps),
		PollInterval:  opts.PollInterval,
		MaxFailures:   opts.MaxFailures,
		Notifier:      notifier,
		// The dashboard asks on its confirm screen before invoking CancelJob.
		Confirmer: session.ConfirmFunc(func(string) bool { return armed.Swap(false) }),
		Audit:     opts.Audit,
		Metrics:   opts.Metrics,
	})

	m.queue = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.queue.Title = "Pending approvals"
	m.queue.SetShowHelp(false)

	m.preview = viewport.New(0, 0)

	m.editor = textarea.New()
	m.editor.CharLimit = 0
	m.editor.ShowLineNumbers = false

	m.progress = progress.New(progress.WithDefaultGradient())

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	return m
}

// Session exposes the underlying review session.
func (m *Model) Session() *session.Session {
	return m.sess
}

// Close stops any job poll and discards the session.
func (m *Model) Close() {
	m.sess.Close()
}

// Run starts the dashboard program and blocks until it exits.
func Run(ctx context.Context, m *Model) error {
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	m.busy = true
	return tea.Batch(m.loadQueue(), m.waitForNotice(), m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeMsg:
		m.notice = session.Notice(msg)
		return m, m.waitForNotice()

	case queueLoadedMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		items := make([]list.Item, 0, len(msg.items))
		for _, req := range msg.items {
			items = append(items, queueItem{req: req})
		}
		return m, m.queue.SetItems(items)

	case approvalLoadedMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.screen = screenReview
		m.kwCategory, m.kwCursor = 0, 0
		m.refreshPreview()
		return m, nil

	case submittedMsg:
		m.busy = false
		if msg.err != nil {
			m.refreshPreview()
			return m, nil
		}
		m.screen = screenQueue
		return m, tea.Batch(m.trackJob(msg.jobID), m.loadQueue())

	case retriedMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.screen = screenQueue
		return m, m.startPolling(msg.jobID)

	case cancelledMsg:
		m.busy = false
		if msg.ok {
			m.jobID = ""
			m.lastJob = jobs.TickResult{}
			m.screen = screenQueue
			return m, m.loadQueue()
		}
		m.leaveConfirm()
		return m, nil

	case pollDueMsg:
		if msg.jobID == "" || msg.jobID != m.jobID {
			return m, nil
		}
		return m, m.fetchJob(msg.jobID)

	case jobTickMsg:
		return m, m.applyTick(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, m.forward(msg)
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.screen {
	case screenQueue:
		m.queue, cmd = m.queue.Update(msg)
	case screenReview:
		m.preview, cmd = m.preview.Update(msg)
	case screenEdit:
		m.editor, cmd = m.editor.Update(msg)
	}
	return cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	body := max(height-8, 4)
	m.queue.SetSize(width, body)
	m.preview.Width = width
	m.preview.Height = max(body-4, 3)
	m.editor.SetWidth(max(width-4, 10))
	m.editor.SetHeight(max(body-4, 3))
	m.progress.Width = max(width-30, 10)
	if m.opts.Renderer == nil {
		if r, err := NewRenderer(max(width-4, 20)); err == nil {
			m.renderer = r
		}
	}
	m.refreshPreview()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	switch m.screen {
	case screenQueue:
		return m.handleQueueKey(msg, key)
	case screenReview:
		return m.handleReviewKey(msg, key)
	case screenEdit:
		return m.handleEditKey(msg, key)
	case screenConfirm:
		return m.handleConfirmKey(key)
	}
	return nil
}

func (m *Model) handleQueueKey(msg tea.KeyMsg, key string) tea.Cmd {
	if m.queue.FilterState() == list.Filtering {
		return m.forward(msg)
	}
	switch key {
	case "q":
		return tea.Quit
	case "r":
		m.busy = true
		return m.loadQueue()
	case "k":
		if m.jobID == "" {
			return nil
		}
		m.screen = screenConfirm
		return nil
	case "t":
		if !m.retryOffered() || m.busy {
			return nil
		}
		return m.retry()
	case "enter":
		item, ok := m.queue.SelectedItem().(queueItem)
		if !ok || m.busy {
			return nil
		}
		return m.loadApproval(item.req.ID)
	}
	return m.forward(msg)
}

func (m *Model) handleReviewKey(msg tea.KeyMsg, key string) tea.Cmd {
	if m.busy {
		return nil
	}
	if m.sess.IsKeywordStep() {
		if cmd, handled := m.handleKeywordKey(key); handled {
			return cmd
		}
	}

	switch key {
	case "esc", "q":
		m.screen = screenQueue
		return nil
	case "a":
		return m.submit(decision.Approve)
	case "x":
		return m.submit(decision.Reject)
	case "m":
		return m.submit(decision.Modify)
	case "c":
		return m.openEditor(editComment)
	case "e":
		if m.sess.IsKeywordStep() {
			return nil
		}
		return m.openEditor(editOutput)
	case "u":
		m.report(m.sess.ClearEdits())
		m.refreshPreview()
		return nil
	case "k":
		m.screen = screenConfirm
		return nil
	case "t":
		return m.retry()
	case "R":
		if req, ok := m.sess.Approval(); ok {
			return m.loadApproval(req.ID)
		}
		return nil
	}
	return m.forward(msg)
}

// handleKeywordKey handles selection keys on the keyword step.
func (m *Model) handleKeywordKey(key string) (tea.Cmd, bool) {
	category := keywords.Categories[m.kwCategory]
	rows := m.keywordRows(category)
	current := ""
	if m.kwCursor < len(rows) {
		current = rows[m.kwCursor]
	}

	switch key {
	case "tab":
		m.kwCategory = (m.kwCategory + 1) % len(keywords.Categories)
		m.kwCursor = 0
	case "shift+tab":
		m.kwCategory = (m.kwCategory + len(keywords.Categories) - 1) % len(keywords.Categories)
		m.kwCursor = 0
	case "up":
		if m.kwCursor > 0 {
			m.kwCursor--
		}
	case "down":
		if m.kwCursor < len(rows)-1 {
			m.kwCursor++
		}
	case " ", "space":
		if current != "" {
			m.report(m.sess.ToggleKeyword(category, current))
		}
	case "p":
		if current != "" {
			m.report(m.sess.Promote(current, category))
		}
	case "A":
		m.report(m.sess.SelectAll(category))
	case "D":
		m.report(m.sess.DeselectAll(category))
	case "s", "a", "m":
		return m.submitKeywords(), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) handleEditKey(msg tea.KeyMsg, key string) tea.Cmd {
	switch key {
	case "esc":
		m.editor.Blur()
		m.screen = screenReview
		return nil
	case "ctrl+s":
		value := m.editor.Value()
		var err error
		if m.editing == editComment {
			err = m.sess.SetComment(value)
		} else {
			err = m.sess.SetEditedOutput(json.RawMessage(value))
		}
		m.report(err)
		m.editor.Blur()
		m.screen = screenReview
		m.refreshPreview()
		return nil
	}
	return m.forward(msg)
}

func (m *Model) handleConfirmKey(key string) tea.Cmd {
	switch key {
	case "y", "Y":
		m.armed.Store(true)
		return m.cancelJob()
	case "n", "N", "esc":
		m.leaveConfirm()
	}
	return nil
}

// report shows a refused edit on the notice line.
func (m *Model) report(err error) {
	if err == nil {
		return
	}
	slog.Debug("dashboard edit refused", "error", err)
	m.notice = session.Notice{Level: session.LevelWarn, Op: "edit", Message: err.Error(), Err: err}
}

// retryOffered reports whether the last submitted decision was a reject that
// has not been retried yet. Opening another approval withdraws the offer.
func (m *Model) retryOffered() bool {
	if _, loaded := m.sess.Approval(); loaded {
		return false
	}
	out, ok := m.sess.LastOutcome()
	return ok && out.Request.Decision == decision.Reject
}

func (m *Model) leaveConfirm() {
	if _, ok := m.sess.Approval(); ok {
		m.screen = screenReview
		return
	}
	m.screen = screenQueue
}

func (m *Model) openEditor(target editTarget) tea.Cmd {
	m.editing = target
	draft := m.sess.Draft()
	switch target {
	case editComment:
		m.editor.Placeholder = "Comment for the pipeline (a comment alone on modify reruns the step)"
		m.editor.SetValue(draft.Comment)
	case editOutput:
		m.editor.Placeholder = "Edited step output (JSON)"
		value := string(draft.EditedOutput)
		if !draft.HasEditorChanges {
			if req, ok := m.sess.Approval(); ok {
				value = PrettyJSON(req.OutputData)
			}
		}
		m.editor.SetValue(value)
	}
	m.screen = screenEdit
	return m.editor.Focus()
}

func (m *Model) loadQueue() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		items, err := api.ListApprovals(ctx, approval.Query{Status: approval.StatusPending})
		if err != nil {
			slog.Warn("list approvals failed", "error", err)
		}
		return queueLoadedMsg{items: items, err: err}
	}
}

func (m *Model) loadApproval(id string) tea.Cmd {
	m.busy = true
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		req, err := sess.Load(ctx, id)
		return approvalLoadedMsg{req: req, err: err}
	}
}

func (m *Model) submit(intent decision.Kind) tea.Cmd {
	current, ok := m.sess.Approval()
	if !ok {
		return nil
	}
	m.busy = true
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		req, err := sess.Submit(ctx, intent)
		return submittedMsg{req: req, jobID: current.JobID, err: err}
	}
}

func (m *Model) submitKeywords() tea.Cmd {
	current, ok := m.sess.Approval()
	if !ok {
		return nil
	}
	m.busy = true
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		req, err := sess.SubmitKeywords(ctx)
		return submittedMsg{req: req, jobID: current.JobID, err: err}
	}
}

func (m *Model) cancelJob() tea.Cmd {
	m.busy = true
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ok, err := sess.CancelJob(ctx)
		return cancelledMsg{ok: ok, err: err}
	}
}

func (m *Model) retry() tea.Cmd {
	m.busy = true
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		jobID, err := sess.RetryStep(ctx)
		return retriedMsg{jobID: jobID, err: err}
	}
}

// trackJob attaches jobID to the session and polls it right away.
func (m *Model) trackJob(jobID string) tea.Cmd {
	if strings.TrimSpace(jobID) == "" {
		return nil
	}
	m.sess.AttachJob(jobID)
	return m.startPolling(jobID)
}

func (m *Model) startPolling(jobID string) tea.Cmd {
	m.jobID = jobID
	m.lastJob = jobs.TickResult{}
	return m.fetchJob(jobID)
}

func (m *Model) fetchJob(jobID string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		view, err := api.JobStatus(ctx, jobID)
		return jobTickMsg{jobID: jobID, view: view, err: err}
	}
}

// applyTick feeds a status response to the session and schedules the next
// poll while the job is still tracked. Responses for a replaced job are
// dropped by the session.
func (m *Model) applyTick(msg jobTickMsg) tea.Cmd {
	result, _ := m.sess.HandleTick(msg.jobID, msg.view, msg.err)
	if result.Applied && msg.jobID == m.jobID {
		m.lastJob = result
	}
	if msg.jobID != m.jobID {
		return nil
	}
	if m.sess.JobSnapshot().JobID != msg.jobID {
		m.jobID = ""
		return m.loadQueue()
	}
	jobID := msg.jobID
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg {
		return pollDueMsg{jobID: jobID}
	})
}

func (m *Model) waitForNotice() tea.Cmd {
	notices := m.notices
	return func() tea.Msg {
		return noticeMsg(<-notices)
	}
}

func (m *Model) refreshPreview() {
	req, ok := m.sess.Approval()
	if !ok {
		m.preview.SetContent("")
		return
	}
	m.preview.SetContent(RenderPreview(m.renderer, req, m.opts.KeywordStep))
}

// keywordRows lists the candidates of c followed by any selected keyword the
// AI did not propose, such as a promoted main keyword.
func (m *Model) keywordRows(c keywords.Category) []string {
	rows := append([]string{}, m.sess.Candidates().Keywords(c)...)
	seen := make(map[string]bool, len(rows))
	for _, kw := range rows {
		seen[kw] = true
	}
	for _, kw := range m.sess.Selection().Keywords(c) {
		if !seen[kw] {
			rows = append(rows, kw)
			seen[kw] = true
		}
	}
	return rows
}

func (m *Model) View() string {
	var body string
	switch m.screen {
	case screenQueue:
		body = m.queue.View()
	case screenReview:
		body = m.reviewView()
	case screenEdit:
		title := "Edit comment"
		if m.editing == editOutput {
			title = "Edit output"
		}
		body = sectionStyle.Render(title) + "\n" + m.editor.View()
	case screenConfirm:
		body = m.confirmView()
	}

	parts := []string{m.headerView(), body}
	if job := m.jobView(); job != "" {
		parts = append(parts, job)
	}
	if m.notice.Message != "" {
		line := m.notice.Message
		if m.notice.Retryable {
			line += " (retry available)"
		}
		parts = append(parts, noticeStyle(m.notice.Level).Render(line))
	}
	parts = append(parts, helpStyle.Render(m.helpView()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) headerView() string {
	header := titleStyle.Render("reviewdesk") + " " + mutedStyle.Render("reviewer: "+m.sess.Reviewer())
	if m.busy {
		header += " " + m.spinner.View()
	}
	return header
}

func (m *Model) reviewView() string {
	req, ok := m.sess.Approval()
	if !ok {
		return mutedStyle.Render("No approval loaded.")
	}

	var lines []string
	state := fmt.Sprintf("%s  %s  status %s  resolver %s", req.PipelineStep, req.ID, req.Status, m.sess.ResolverState())
	if req.IsDecided() && req.ReviewedBy != "" {
		state += "  decided by " + req.ReviewedBy
	} else if !m.sess.CanDecide() {
		state += "  (read-only)"
	}
	lines = append(lines, sectionStyle.Render(state))

	if m.sess.IsKeywordStep() {
		lines = append(lines, m.keywordView())
	} else {
		lines = append(lines, m.preview.View())
	}
	lines = append(lines, m.draftView())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) keywordView() string {
	sel := m.sess.Selection()
	var columns []string
	for i, c := range keywords.Categories {
		var b strings.Builder
		title := fmt.Sprintf("%s (%d)", c.Label(), sel.Count(c))
		if i == m.kwCategory {
			b.WriteString(sectionStyle.Render("> " + title))
		} else {
			b.WriteString(mutedStyle.Render("  " + title))
		}
		b.WriteString("\n")
		for j, kw := range m.keywordRows(c) {
			mark := "[ ]"
			if sel.Contains(c, kw) {
				mark = "[x]"
			}
			line := mark + " " + kw
			if kw == sel.MainKeyword && c == keywords.Primary {
				line = mainStyle.Render(line + " *")
			}
			if i == m.kwCategory && j == m.kwCursor {
				line = cursorStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
		columns = append(columns, panelStyle.Render(b.String()))
	}
	main := "Main keyword: " + orNone(sel.MainKeyword)
	return lipgloss.JoinVertical(lipgloss.Left, main, lipgloss.JoinHorizontal(lipgloss.Top, columns...))
}

func (m *Model) draftView() string {
	draft := m.sess.Draft()
	comment := strings.TrimSpace(draft.Comment)
	if comment == "" {
		comment = "-"
	}
	edits := "none"
	switch {
	case len(draft.Override) > 0:
		edits = "override payload"
	case draft.HasEditorChanges && len(draft.EditedOutput) > 0:
		edits = "edited output"
	case draft.HasEditorChanges:
		edits = "unsaved editor changes"
	case strings.TrimSpace(draft.ManualText) != "":
		edits = "manual text"
	}
	return mutedStyle.Render(fmt.Sprintf("comment: %s  edits: %s", comment, edits))
}

func (m *Model) confirmView() string {
	jobID := m.sess.JobSnapshot().JobID
	if jobID == "" {
		if req, ok := m.sess.Approval(); ok {
			jobID = req.JobID
		}
	}
	return confirmStyle.Render(fmt.Sprintf("Cancel job %s?\nThe pipeline run stops and cannot be resumed.\n\n[y] yes   [n] no", jobID))
}

func (m *Model) jobView() string {
	if m.jobID == "" && !m.lastJob.Terminal {
		return ""
	}
	res := m.lastJob
	jobID := m.jobID
	if jobID == "" {
		jobID = res.View.JobID
	}
	status := string(res.View.Status)
	if status == "" {
		status = "waiting"
	}
	step := ""
	if n := len(m.opts.PipelineSteps); n > 0 {
		idx := min(res.StepIndex, n-1)
		step = fmt.Sprintf("  step %d/%d %s", min(res.StepIndex+1, n), n, m.opts.PipelineSteps[idx])
	}
	line := fmt.Sprintf("job %s  %s%s  ", jobID, status, step)
	if !res.Terminal && m.jobID != "" {
		line = m.spinner.View() + " " + line
	}
	return line + m.progress.ViewAs(float64(res.Progress)/100)
}

func (m *Model) helpView() string {
	switch m.screen {
	case screenQueue:
		help := "enter open  r refresh  / filter  q quit"
		if m.jobID != "" {
			help += "  k cancel job"
		}
		if m.retryOffered() {
			help += "  t retry rejected step"
		}
		return help
	case screenReview:
		if m.sess.IsKeywordStep() {
			return "tab category  up/down move  space toggle  p make main  A all  D none  c comment  s submit  x reject  k cancel job  esc back"
		}
		return "a approve  x reject  m modify/rerun  c comment  e edit output  u undo edits  t retry  k cancel job  R reload  esc back"
	case screenEdit:
		return "ctrl+s save  esc discard"
	case screenConfirm:
		return "y confirm  n keep running"
	}
	return ""
}
