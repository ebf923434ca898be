// Package jobs tracks a remote pipeline job until it reaches a terminal state.
//
// Poller is the bookkeeping half: it remembers which job id is current and
// turns status responses into monotonically advancing step indices. Every
// response is tagged with the job id it was requested for, and responses for
// any other id are dropped, so a late reply for a detached job never changes
// state. Watcher is the effect half that issues the requests.
package jobs

import (
	"strings"
	"sync"
)

// TickResult describes the effect of one status response.
type TickResult struct {
	Applied   bool
	Terminal  bool
	View      View
	Progress  int
	StepIndex int
	Steps     int
}

// Snapshot is the poller's current view of the tracked job.
type Snapshot struct {
	JobID     string
	Status    Status
	Progress  int
	StepIndex int
	Steps     int
	Failures  int
}

// Poller tracks at most one job id at a time.
type Poller struct {
	steps int

	mu        sync.Mutex
	jobID     string
	status    Status
	progress  int
	stepIndex int
	failures  int
}

// NewPoller creates a poller that maps progress onto steps pipeline steps.
func NewPoller(steps int) *Poller {
	if steps < 0 {
		steps = 0
	}
	return &Poller{steps: steps}
}

// StepIndex maps progress in [0,100] to floor(progress/100 * steps).
func StepIndex(progress, steps int) int {
	if steps <= 0 {
		return 0
	}
	return clampProgress(progress) * steps / 100
}

// Attach starts tracking jobID, replacing any previously tracked id. An empty
// id detaches. Attaching the id already tracked keeps its progress.
func (p *Poller) Attach(jobID string) {
	jobID = strings.TrimSpace(jobID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if jobID != "" && jobID == p.jobID {
		return
	}
	p.jobID = jobID
	p.status = ""
	p.progress = 0
	p.stepIndex = 0
	p.failures = 0
	if jobID != "" {
		p.status = StatusQueued
	}
}

// Detach stops tracking and returns the id that was tracked.
func (p *Poller) Detach() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous := p.jobID
	p.jobID = ""
	return previous
}

// JobID returns the tracked id, or "" when detached.
func (p *Poller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Tracking reports whether jobID is the currently tracked id.
func (p *Poller) Tracking(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID != "" && p.jobID == jobID
}

// Snapshot returns the last applied state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		JobID:     p.jobID,
		Status:    p.status,
		Progress:  p.progress,
		StepIndex: p.stepIndex,
		Steps:     p.steps,
		Failures:  p.failures,
	}
}

// OnTick applies a status response that was requested for jobID. Responses
// for an id that is no longer tracked are ignored. Terminal responses detach.
func (p *Poller) OnTick(jobID string, view View) TickResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jobID == "" || jobID != p.jobID {
		return TickResult{Steps: p.steps}
	}

	p.failures = 0
	progress := view.ClampedProgress()
	if view.Status == StatusCompleted {
		progress = 100
	}
	if progress > p.progress {
		p.progress = progress
	}

	index := StepIndex(progress, p.steps)
	if index > p.stepIndex {
		p.stepIndex = index
	}
	p.status = view.Status

	result := TickResult{
		Applied:   true,
		Terminal:  view.Status.IsTerminal(),
		View:      view,
		Progress:  p.progress,
		StepIndex: p.stepIndex,
		Steps:     p.steps,
	}
	if result.Terminal {
		p.jobID = ""
	}
	return result
}

// OnError records a failed status request for jobID. Failures are transient:
// the poller stays attached. It returns the consecutive failure count and
// whether the failure belonged to the tracked job.
func (p *Poller) OnError(jobID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jobID == "" || jobID != p.jobID {
		return 0, false
	}
	p.failures++
	return p.failures, true
}
