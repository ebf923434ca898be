package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/keywords"
)

func TestApprovalList_ShowsPendingOnly(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	kw, outline, draft := seedSandbox(t, svc)

	if _, err := svc.Decide(outline.ID, decision.Request{Decision: decision.Approve, ReviewedBy: "owner"}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	output := stripANSI(captureOutput(t, func() {
		if err := runApprovalList(nil, nil); err != nil {
			t.Fatalf("runApprovalList: %v", err)
		}
	}))

	for _, id := range []string{kw.ID, draft.ID} {
		if !strings.Contains(output, id) {
			t.Fatalf("expected pending id %q in output, got: %s", id, output)
		}
	}
	if strings.Contains(output, outline.ID+" ") {
		t.Fatalf("did not expect approved id %q in output, got: %s", outline.ID, output)
	}
	if !strings.Contains(output, "82%") {
		t.Fatalf("expected keyword confidence in output, got: %s", output)
	}
}

func TestApprovalList_NoPending(t *testing.T) {
	_ = prepareReviewWorkspace(t)
	output := captureOutput(t, func() {
		if err := runApprovalList(nil, nil); err != nil {
			t.Fatalf("runApprovalList: %v", err)
		}
	})
	if !strings.Contains(output, "No pending approvals.") {
		t.Fatalf("expected no-pending message, got: %s", output)
	}
}

func TestApprovalList_JSONWithStatusFilter(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)
	if _, err := svc.Decide(outline.ID, decision.Request{Decision: decision.Reject, ReviewedBy: "owner"}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	cmd := newApprovalListCmd()
	setFlag(t, cmd, "status", "rejected")
	setFlag(t, cmd, "output", "json")

	output := captureOutput(t, func() {
		if err := runApprovalList(cmd, nil); err != nil {
			t.Fatalf("runApprovalList: %v", err)
		}
	})

	var listed []approval.Request
	if err := json.Unmarshal([]byte(output), &listed); err != nil {
		t.Fatalf("decode output: %v\n%s", err, output)
	}
	if len(listed) != 1 || listed[0].ID != outline.ID || listed[0].Status != approval.StatusRejected {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}

func TestApprovalList_RejectsUnknownStatus(t *testing.T) {
	_ = prepareReviewWorkspace(t)
	cmd := newApprovalListCmd()
	setFlag(t, cmd, "status", "stale")
	if err := runApprovalList(cmd, nil); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestApprovalShow_RendersPreview(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalShowCmd()
	setFlag(t, cmd, "output", "yaml")
	output := captureOutput(t, func() {
		if err := runApprovalShow(cmd, []string{outline.ID}); err != nil {
			t.Fatalf("runApprovalShow: %v", err)
		}
	})
	if !strings.Contains(output, "pipeline_step: outline") {
		t.Fatalf("expected yaml fields, got: %s", output)
	}
	if !strings.Contains(output, "Integration Testing Go Services") {
		t.Fatalf("expected output data in yaml, got: %s", output)
	}
}

func TestApprovalApprove_UpdatesDecision(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalApproveCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "comment", "looks good")

	output := captureOutput(t, func() {
		if err := runApprovalApprove(cmd, []string{outline.ID}); err != nil {
			t.Fatalf("runApprovalApprove: %v", err)
		}
	})
	if !strings.Contains(output, "approved by owner") {
		t.Fatalf("expected approved output, got: %s", output)
	}

	stored, err := svc.Get(outline.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != approval.StatusApproved {
		t.Fatalf("expected approved status, got %q", stored.Status)
	}
	if stored.ReviewedBy != "owner" || stored.UserComment != "looks good" {
		t.Fatalf("unexpected reviewer fields: %+v", stored)
	}
}

func TestApprovalApprove_RequiresBy(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalApproveCmd()
	if err := runApprovalApprove(cmd, []string{outline.ID}); err == nil {
		t.Fatal("expected error when --by is missing")
	}
	stored, _ := svc.Get(outline.ID)
	if !stored.IsPending() {
		t.Fatalf("approval must stay pending, got %q", stored.Status)
	}
}

func TestApprovalApprove_AlreadyDecidedIsConflict(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)
	if _, err := svc.Decide(outline.ID, decision.Request{Decision: decision.Reject, ReviewedBy: "bob"}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	cmd := newApprovalApproveCmd()
	setFlag(t, cmd, "by", "owner")
	err := runApprovalApprove(cmd, []string{outline.ID})
	if !approval.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestApprovalApprove_KeywordStepNeedsKeywordsCommand(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	kw, _, _ := seedSandbox(t, svc)

	cmd := newApprovalApproveCmd()
	setFlag(t, cmd, "by", "owner")
	err := runApprovalApprove(cmd, []string{kw.ID})
	if err == nil || !strings.Contains(err.Error(), "approval keywords") {
		t.Fatalf("expected keyword step hint, got %v", err)
	}
}

func TestApprovalReject_KeywordStepSendsReject(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	kw, _, _ := seedSandbox(t, svc)

	cmd := newApprovalRejectCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "comment", "off topic")
	output := captureOutput(t, func() {
		if err := runApprovalReject(cmd, []string{kw.ID}); err != nil {
			t.Fatalf("runApprovalReject: %v", err)
		}
	})
	if !strings.Contains(output, "rejected by owner") {
		t.Fatalf("expected rejected output, got: %s", output)
	}

	stored, err := svc.Get(kw.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != approval.StatusRejected {
		t.Fatalf("expected rejected status, got %q", stored.Status)
	}
	view, err := svc.JobStatus(kw.JobID)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if view.Status != jobs.StatusFailed || !strings.Contains(view.Error, "rejected by owner") {
		t.Fatalf("expected job failed by the reject, got %+v", view)
	}
}

func TestApprovalModify_ReplacesOutput(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalModifyCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "data", `{"title": "Shorter title"}`)

	output := captureOutput(t, func() {
		if err := runApprovalModify(cmd, []string{outline.ID}); err != nil {
			t.Fatalf("runApprovalModify: %v", err)
		}
	})
	if !strings.Contains(output, "modified by owner") {
		t.Fatalf("expected modified output, got: %s", output)
	}

	stored, err := svc.Get(outline.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != approval.StatusModified {
		t.Fatalf("expected modified status, got %q", stored.Status)
	}
	if string(stored.OutputData) != `{"title":"Shorter title"}` {
		t.Fatalf("unexpected output data: %s", stored.OutputData)
	}
}

func TestApprovalModify_InvalidJSONIsRejectedLocally(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalModifyCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "data", `{"title":`)

	err := runApprovalModify(cmd, []string{outline.ID})
	if !approval.IsValidation(err, approval.CodeInvalidJSON) {
		t.Fatalf("expected invalid_json, got %v", err)
	}
	stored, _ := svc.Get(outline.ID)
	if !stored.IsPending() {
		t.Fatalf("approval must stay pending, got %q", stored.Status)
	}
}

func TestApprovalModify_CommentOnlyBecomesRerun(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalModifyCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "comment", "add a section on flaky tests")

	output := captureOutput(t, func() {
		if err := runApprovalModify(cmd, []string{outline.ID}); err != nil {
			t.Fatalf("runApprovalModify: %v", err)
		}
	})
	if !strings.Contains(output, "sent back for rerun") {
		t.Fatalf("expected rerun output, got: %s", output)
	}

	pending, err := svc.List(approval.Query{Status: approval.StatusPending, PipelineStep: "outline"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].ID == outline.ID {
		t.Fatalf("expected a fresh outline approval, got %+v", pending)
	}
	if len(pending[0].Suggestions) == 0 || !strings.Contains(pending[0].Suggestions[0], "add a section on flaky tests") {
		t.Fatalf("expected rerun guidance, got %+v", pending[0].Suggestions)
	}
}

func TestApprovalRerun_RequiresComment(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalRerunCmd()
	setFlag(t, cmd, "by", "owner")
	if err := runApprovalRerun(cmd, []string{outline.ID}); err == nil {
		t.Fatal("expected error without --comment")
	}
}

func TestApprovalKeywords_SubmitsSelectionAndWatchesJob(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	kw, _, _ := seedSandbox(t, svc)

	cmd := newApprovalKeywordsCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "main", "golang test containers")
	setFlag(t, cmd, "clear", "long_tail")
	setFlag(t, cmd, "drop", "lsi:testing pyramid")
	setFlag(t, cmd, "watch", "true")

	output := captureOutput(t, func() {
		if err := runApprovalKeywords(cmd, []string{kw.ID}); err != nil {
			t.Fatalf("runApprovalKeywords: %v", err)
		}
	})
	if !strings.Contains(output, `main keyword "golang test containers"`) {
		t.Fatalf("expected main keyword in output, got: %s", output)
	}
	if !strings.Contains(output, "Job "+kw.JobID+" completed.") {
		t.Fatalf("expected job completion, got: %s", output)
	}

	stored, err := svc.Get(kw.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != approval.StatusModified {
		t.Fatalf("expected modified status, got %q", stored.Status)
	}
	sel, _, err := keywords.FromOutput(stored.OutputData)
	if err != nil {
		t.Fatalf("FromOutput: %v", err)
	}
	if sel.MainKeyword != "golang test containers" {
		t.Fatalf("unexpected main keyword %q", sel.MainKeyword)
	}
	if sel.Count(keywords.LongTail) != 0 || sel.Contains(keywords.LSI, "testing pyramid") {
		t.Fatalf("unexpected stored selection: %+v", sel)
	}
}

func TestApprovalKeywords_DryRunDoesNotSubmit(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	kw, _, _ := seedSandbox(t, svc)

	cmd := newApprovalKeywordsCmd()
	setFlag(t, cmd, "by", "owner")
	setFlag(t, cmd, "promote", "long_tail:how to test a go http handler")
	setFlag(t, cmd, "dry-run", "true")

	output := captureOutput(t, func() {
		if err := runApprovalKeywords(cmd, []string{kw.ID}); err != nil {
			t.Fatalf("runApprovalKeywords: %v", err)
		}
	})
	if !strings.Contains(output, "main_keyword: how to test a go http handler") {
		t.Fatalf("expected promoted main keyword, got: %s", output)
	}

	stored, _ := svc.Get(kw.ID)
	if !stored.IsPending() {
		t.Fatalf("dry run must not decide, got %q", stored.Status)
	}
}

func TestApprovalKeywords_RejectsOtherSteps(t *testing.T) {
	svc := prepareReviewWorkspace(t)
	_, outline, _ := seedSandbox(t, svc)

	cmd := newApprovalKeywordsCmd()
	setFlag(t, cmd, "by", "owner")
	err := runApprovalKeywords(cmd, []string{outline.ID})
	if !approval.IsValidation(err, approval.CodeNotKeywordStep) {
		t.Fatalf("expected not_keyword_step, got %v", err)
	}
}

func TestParseCategoryKeyword(t *testing.T) {
	category, kw, err := parseCategoryKeyword("long-tail: go fuzzing ")
	if err != nil {
		t.Fatalf("parseCategoryKeyword: %v", err)
	}
	if category != keywords.LongTail || kw != "go fuzzing" {
		t.Fatalf("unexpected parse: %q %q", category, kw)
	}
	for _, raw := range []string{"go fuzzing", "primary:", "tertiary:go"} {
		if _, _, err := parseCategoryKeyword(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestApprovalCommand_RegisteredInRoot(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"approval", "list"},
		{"approval", "keywords"},
		{"job", "watch"},
		{"sandbox", "serve"},
		{"dashboard"},
	} {
		found, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if found == nil || found.Name() != path[len(path)-1] {
			t.Fatalf("expected %v command, got %#v", path, found)
		}
	}
}
