package approval

import (
	"errors"
	"fmt"
	"testing"
)

func TestRequest_IsKeywordStep(t *testing.T) {
	req := Request{PipelineStep: " Keyword_Research "}
	if !req.IsKeywordStep("") {
		t.Fatal("expected default keyword step to match case-insensitively")
	}
	if req.IsKeywordStep("outline") {
		t.Fatal("did not expect outline step to match")
	}

	custom := Request{PipelineStep: "seo_keywords"}
	if !custom.IsKeywordStep("seo_keywords") {
		t.Fatal("expected configured keyword step to match")
	}
}

func TestRequest_ConfidenceClamped(t *testing.T) {
	if _, ok := (Request{}).Confidence(); ok {
		t.Fatal("expected no confidence when score is absent")
	}

	high := 1.4
	score, ok := Request{ConfidenceScore: &high}.Confidence()
	if !ok || score != 1 {
		t.Fatalf("expected clamped score 1, got %v (ok=%v)", score, ok)
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusApproved, StatusRejected, StatusModified} {
		if !status.Valid() {
			t.Fatalf("expected %q to be valid", status)
		}
	}
	if Status("expired").Valid() {
		t.Fatal("did not expect expired to be valid")
	}
}

func TestRequest_IsDecided(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:   false,
		StatusApproved:  true,
		StatusRejected:  true,
		StatusModified:  true,
		Status("stale"): false,
	}
	for status, want := range cases {
		if got := (Request{Status: status}).IsDecided(); got != want {
			t.Fatalf("IsDecided(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestErrorTaxonomy_MatchesThroughWrapping(t *testing.T) {
	validation := fmt.Errorf("submit: %w", NewValidationError(CodeInvalidJSON, "modified output is not valid JSON", errors.New("unexpected end")))
	if !IsValidation(validation) {
		t.Fatal("expected wrapped validation error to match")
	}
	if !IsValidation(validation, CodeMissingMainKeyword, CodeInvalidJSON) {
		t.Fatal("expected code filter to match invalid_json")
	}
	if IsValidation(validation, CodeBusy) {
		t.Fatal("did not expect busy code to match")
	}

	conflict := fmt.Errorf("decide: %w", &ConflictError{ApprovalID: "a-1", Status: StatusApproved})
	if !IsConflict(conflict) || IsTransport(conflict) {
		t.Fatalf("unexpected classification for %v", conflict)
	}
	if got := conflict.Error(); got != "decide: approval a-1 is already approved" {
		t.Fatalf("unexpected conflict message: %q", got)
	}

	transport := &TransportError{Op: "fetch approval", StatusCode: 502, Err: errors.New("bad gateway")}
	if !IsTransport(transport) {
		t.Fatal("expected transport error to match")
	}
	if got := transport.Error(); got != "fetch approval: HTTP 502: bad gateway" {
		t.Fatalf("unexpected transport message: %q", got)
	}
}
