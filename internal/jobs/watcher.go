package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval    = 2 * time.Second
	defaultMaxFailures = 5
)

// StatusFetcher performs one job status request.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (View, error)
}

// Observer receives applied ticks and poll failures. Calls arrive on the
// watcher goroutine.
type Observer interface {
	JobUpdated(result TickResult)
	JobPollFailed(jobID string, err error, failures int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Updated func(TickResult)
	Failed  func(jobID string, err error, failures int)
}

func (o ObserverFuncs) JobUpdated(result TickResult) {
	if o.Updated != nil {
		o.Updated(result)
	}
}

func (o ObserverFuncs) JobPollFailed(jobID string, err error, failures int) {
	if o.Failed != nil {
		o.Failed(jobID, err, failures)
	}
}

// WatcherConfig controls poll cadence.
type WatcherConfig struct {
	Interval time.Duration
	// MaxFailures consecutive request failures end the job as failed.
	MaxFailures int
}

// Watcher polls the tracked job at a fixed interval until the poller reports
// a terminal state or the watch is stopped.
type Watcher struct {
	cfg      WatcherConfig
	fetcher  StatusFetcher
	poller   *Poller
	observer Observer

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	running bool
}

// NewWatcher creates a watcher feeding poller from fetcher.
func NewWatcher(cfg WatcherConfig, fetcher StatusFetcher, poller *Poller, observer Observer) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	return &Watcher{
		cfg:      cfg,
		fetcher:  fetcher,
		poller:   poller,
		observer: observer,
	}
}

// Poller returns the poller the watcher feeds.
func (w *Watcher) Poller() *Poller {
	return w.poller
}

// IsRunning returns true while a background loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start attaches jobID and polls it in the background. A previous watch is
// stopped first.
func (w *Watcher) Start(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}

	w.Stop()
	w.poller.Attach(jobID)

	loopCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	w.mu.Lock()
	w.cancel = cancel
	w.stopped = stopped
	w.running = true
	w.mu.Unlock()

	go func() {
		defer close(stopped)
		defer w.markStopped(stopped)
		defer cancel()
		if _, err := w.loop(loopCtx, jobID); err != nil && loopCtx.Err() == nil {
			slog.Warn("job watch ended with error", "job_id", jobID, "error", err)
		}
	}()
	slog.Debug("job watch started", "job_id", jobID, "interval", w.cfg.Interval.String())
	return nil
}

// Stop detaches the poller and waits for the background loop to exit. Late
// responses for the old job id are dropped by the poller.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	stopped := w.stopped
	w.cancel = nil
	w.stopped = nil
	w.running = false
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	if jobID := w.poller.Detach(); jobID != "" {
		slog.Debug("job watch stopped", "job_id", jobID)
	}
	cancel()
	<-stopped
}

// Run attaches jobID and polls in the calling goroutine until a terminal
// state, detach, or ctx cancellation. It returns the last applied tick.
func (w *Watcher) Run(ctx context.Context, jobID string) (TickResult, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return TickResult{}, fmt.Errorf("job id is required")
	}
	w.poller.Attach(jobID)
	return w.loop(ctx, jobID)
}

// PollOnce issues a single status request for jobID and applies it.
func (w *Watcher) PollOnce(ctx context.Context, jobID string) (TickResult, error) {
	view, err := w.fetcher.JobStatus(ctx, jobID)
	return w.Apply(jobID, view, err)
}

// Apply feeds one status response, or the error from requesting it, into the
// poller. Callers that schedule their own requests use it directly. After
// MaxFailures consecutive errors the job is ended with a synthesized failed
// view.
func (w *Watcher) Apply(jobID string, view View, fetchErr error) (TickResult, error) {
	if fetchErr != nil {
		failures, tracked := w.poller.OnError(jobID)
		if !tracked {
			return TickResult{}, fetchErr
		}
		w.observer.JobPollFailed(jobID, fetchErr, failures)
		if failures < w.cfg.MaxFailures {
			return TickResult{}, fetchErr
		}
		view = View{
			JobID:  jobID,
			Status: StatusFailed,
			Error:  fmt.Sprintf("job status unavailable after %d attempts: %v", failures, fetchErr),
		}
	}

	result := w.poller.OnTick(jobID, view)
	if result.Applied {
		w.observer.JobUpdated(result)
	}
	return result, nil
}

func (w *Watcher) loop(ctx context.Context, jobID string) (TickResult, error) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var last TickResult
	for {
		result, err := w.PollOnce(ctx, jobID)
		if err == nil && result.Applied {
			last = result
		}
		if !w.poller.Tracking(jobID) {
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) markStopped(stopped chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped == stopped {
		w.running = false
		w.cancel = nil
		w.stopped = nil
	}
}
