package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
)

func TestReviewMetrics_AggregatesDecisionAndPollStats(t *testing.T) {
	workspace := t.TempDir()
	recorder := NewReviewMetrics(workspace)
	defer recorder.Close()

	snap, err := recorder.RecordDecision("approve", 120*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("RecordDecision success error: %v", err)
	}
	if snap.Decision.Total != 1 || snap.Decision.Failures != 0 || snap.Decision.Conflicts != 0 {
		t.Fatalf("unexpected first decision snapshot: %+v", snap.Decision)
	}

	_, _ = recorder.RecordDecision("modify", 250*time.Millisecond, errors.New("submit decision: HTTP 502"))
	_, _ = recorder.RecordDecision("approve", 2*time.Second, &approval.ConflictError{ApprovalID: "ap-1", Status: approval.StatusApproved})
	snap, _ = recorder.RecordDecision("rerun", 1500*time.Millisecond, nil)

	if snap.Decision.Total != 4 {
		t.Fatalf("expected 4 decisions, got %d", snap.Decision.Total)
	}
	if snap.Decision.Failures != 2 {
		t.Fatalf("expected 2 failures, got %d", snap.Decision.Failures)
	}
	if snap.Decision.Conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %d", snap.Decision.Conflicts)
	}
	if snap.Decision.ByKind["approve"] != 2 || snap.Decision.ByKind["rerun"] != 1 {
		t.Fatalf("unexpected per-kind counts: %+v", snap.Decision.ByKind)
	}
	if got := snap.Decision.FailureRatio(); got < 0.49 || got > 0.51 {
		t.Fatalf("expected failure ratio about 0.5, got %.4f", got)
	}
	if snap.Decision.MaxLatencyMs != 2000 {
		t.Fatalf("expected max latency 2000ms, got %d", snap.Decision.MaxLatencyMs)
	}
	if snap.Decision.P95ProxyLatencyMs <= 0 {
		t.Fatalf("expected p95 proxy latency > 0, got %d", snap.Decision.P95ProxyLatencyMs)
	}

	_, _ = recorder.RecordPoll(true, "")
	_, _ = recorder.RecordPoll(false, "")
	snap, _ = recorder.RecordPoll(true, "completed")

	if snap.Poll.Ticks != 2 || snap.Poll.Failures != 1 || snap.Poll.Completed != 1 {
		t.Fatalf("unexpected poll snapshot: %+v", snap.Poll)
	}
	if got := snap.Poll.FailureRatio(); got < 0.33 || got > 0.34 {
		t.Fatalf("expected poll failure ratio about 0.3333, got %.4f", got)
	}
}

func TestReviewMetrics_PersistsAndResumes(t *testing.T) {
	workspace := t.TempDir()
	recorder := NewReviewMetrics(workspace)
	if _, err := recorder.RecordDecision("approve", 99*time.Millisecond, nil); err != nil {
		t.Fatalf("RecordDecision error: %v", err)
	}
	if _, err := recorder.RecordPoll(false, "failed"); err != nil {
		t.Fatalf("RecordPoll error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	snap, err := ReadReviewSnapshot(workspace)
	if err != nil {
		t.Fatalf("ReadReviewSnapshot error: %v", err)
	}
	if snap.Decision.Total != 1 || snap.Poll.Failures != 1 || snap.Poll.Failed != 1 {
		t.Fatalf("unexpected loaded snapshot: %+v", snap)
	}

	resumed := NewReviewMetrics(workspace)
	next, _ := resumed.RecordDecision("reject", time.Millisecond, nil)
	if next.Decision.Total != 2 {
		t.Fatalf("expected counters to resume from disk, got %+v", next.Decision)
	}
}

func TestReviewMetrics_ReadMissingSnapshot(t *testing.T) {
	snap, err := ReadReviewSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("ReadReviewSnapshot error: %v", err)
	}
	if snap.HasData() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestReviewMetrics_NilRecorderIsNoop(t *testing.T) {
	var recorder *ReviewMetrics
	if _, err := recorder.RecordDecision("approve", time.Second, nil); err != nil {
		t.Fatalf("expected nil recorder to ignore decisions, got %v", err)
	}
	if _, err := recorder.RecordPoll(true, ""); err != nil {
		t.Fatalf("expected nil recorder to ignore polls, got %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("expected nil recorder close to succeed, got %v", err)
	}
}
