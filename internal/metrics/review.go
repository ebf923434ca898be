package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
)

const reviewMetricsFileName = "review_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// ReviewSnapshot contains aggregated reviewer-side metrics.
type ReviewSnapshot struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Decision  DecisionStats `json:"decision"`
	Poll      PollStats     `json:"poll"`
}

// DecisionStats tracks decision submissions.
type DecisionStats struct {
	Total             int64            `json:"total"`
	Failures          int64            `json:"failures"`
	Conflicts         int64            `json:"conflicts"`
	ByKind            map[string]int64 `json:"by_kind,omitempty"`
	TotalLatencyMs    int64            `json:"total_latency_ms"`
	MaxLatencyMs      int64            `json:"max_latency_ms"`
	LastLatencyMs     int64            `json:"last_latency_ms"`
	P95ProxyLatencyMs int64            `json:"p95_proxy_latency_ms"`
}

// FailureRatio returns failures/total in [0,1].
func (d DecisionStats) FailureRatio() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Failures) / float64(d.Total)
}

// AvgLatencyMs returns average submit latency in milliseconds.
func (d DecisionStats) AvgLatencyMs() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.TotalLatencyMs) / float64(d.Total)
}

// PollStats tracks job status polling.
type PollStats struct {
	Ticks     int64 `json:"ticks"`
	Failures  int64 `json:"failures"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// FailureRatio returns failed polls/all polls in [0,1].
func (p PollStats) FailureRatio() float64 {
	attempts := p.Ticks + p.Failures
	if attempts <= 0 {
		return 0
	}
	return float64(p.Failures) / float64(attempts)
}

// HasData reports whether any metrics were recorded.
func (s ReviewSnapshot) HasData() bool {
	return s.Decision.Total > 0 || s.Poll.Ticks > 0 || s.Poll.Failures > 0
}

// ReviewMetrics records and persists review metrics.
type ReviewMetrics struct {
	path string

	mu      sync.Mutex
	snap    ReviewSnapshot
	buckets []int64
}

// NewReviewMetrics creates a recorder rooted at <workspace>/state/review_metrics.json.
// Counters continue from a previously persisted snapshot.
func NewReviewMetrics(workspacePath string) *ReviewMetrics {
	m := &ReviewMetrics{
		path:    reviewMetricsPath(workspacePath),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
	if snap, err := ReadReviewSnapshot(workspacePath); err == nil {
		m.snap = snap
	}
	return m
}

// Snapshot returns the latest in-memory snapshot.
func (m *ReviewMetrics) Snapshot() ReviewSnapshot {
	if m == nil {
		return ReviewSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snap)
}

// RecordDecision updates decision metrics for one submission and persists the snapshot.
func (m *ReviewMetrics) RecordDecision(kind string, duration time.Duration, submitErr error) (ReviewSnapshot, error) {
	if m == nil {
		return ReviewSnapshot{}, nil
	}

	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}
	kind = strings.TrimSpace(kind)

	m.mu.Lock()
	m.snap.UpdatedAt = time.Now().UTC()
	m.snap.Decision.Total++
	m.snap.Decision.TotalLatencyMs += latencyMs
	m.snap.Decision.LastLatencyMs = latencyMs
	if latencyMs > m.snap.Decision.MaxLatencyMs {
		m.snap.Decision.MaxLatencyMs = latencyMs
	}
	if kind != "" {
		if m.snap.Decision.ByKind == nil {
			m.snap.Decision.ByKind = map[string]int64{}
		}
		m.snap.Decision.ByKind[kind]++
	}
	if submitErr != nil {
		m.snap.Decision.Failures++
		if approval.IsConflict(submitErr) {
			m.snap.Decision.Conflicts++
		}
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Decision.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets)

	snapshot := cloneSnapshot(m.snap)
	m.mu.Unlock()

	return snapshot, persistReviewSnapshot(m.path, snapshot)
}

// RecordPoll updates poll metrics. terminalStatus is "completed" or "failed"
// when the tick ended the job.
func (m *ReviewMetrics) RecordPoll(success bool, terminalStatus string) (ReviewSnapshot, error) {
	if m == nil {
		return ReviewSnapshot{}, nil
	}

	m.mu.Lock()
	m.snap.UpdatedAt = time.Now().UTC()
	if success {
		m.snap.Poll.Ticks++
	} else {
		m.snap.Poll.Failures++
	}
	switch terminalStatus {
	case "completed":
		m.snap.Poll.Completed++
	case "failed":
		m.snap.Poll.Failed++
	}
	snapshot := cloneSnapshot(m.snap)
	m.mu.Unlock()

	return snapshot, persistReviewSnapshot(m.path, snapshot)
}

// Close flushes the current snapshot to disk.
func (m *ReviewMetrics) Close() error {
	if m == nil {
		return nil
	}
	snapshot := m.Snapshot()
	if !snapshot.HasData() {
		return nil
	}
	return persistReviewSnapshot(m.path, snapshot)
}

// ReadReviewSnapshot reads the persisted snapshot from workspace state.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadReviewSnapshot(workspacePath string) (ReviewSnapshot, error) {
	path := reviewMetricsPath(workspacePath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReviewSnapshot{}, nil
		}
		return ReviewSnapshot{}, fmt.Errorf("read review metrics: %w", err)
	}

	var snap ReviewSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return ReviewSnapshot{}, fmt.Errorf("decode review metrics: %w", err)
	}
	return snap, nil
}

func reviewMetricsPath(workspacePath string) string {
	if strings.TrimSpace(workspacePath) == "" {
		return ""
	}
	return filepath.Join(workspacePath, "state", reviewMetricsFileName)
}

func persistReviewSnapshot(path string, snapshot ReviewSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create review metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode review metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write review metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename review metrics file: %w", err)
	}
	return nil
}

func cloneSnapshot(snap ReviewSnapshot) ReviewSnapshot {
	if snap.Decision.ByKind != nil {
		byKind := make(map[string]int64, len(snap.Decision.ByKind))
		for k, v := range snap.Decision.ByKind {
			byKind[k] = v
		}
		snap.Decision.ByKind = byKind
	}
	return snap
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

// p95ProxyFromBuckets uses only latencies observed by this process.
func p95ProxyFromBuckets(buckets []int64) int64 {
	var total int64
	for _, count := range buckets {
		total += count
	}
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}
