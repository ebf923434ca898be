package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/keywords"
	"github.com/MEKXH/reviewdesk/internal/session"
	"github.com/MEKXH/reviewdesk/internal/tui"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Review approval requests",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalShowCmd(),
		newApprovalApproveCmd(),
		newApprovalRejectCmd(),
		newApprovalModifyCmd(),
		newApprovalRerunCmd(),
		newApprovalKeywordsCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE:  runApprovalList,
	}
	cmd.Flags().String("status", string(approval.StatusPending), "Filter by status (pending|approved|rejected|modified|all)")
	cmd.Flags().String("step", "", "Filter by pipeline step")
	cmd.Flags().String("job", "", "Filter by job id")
	addOutputFlag(cmd, outputTable, outputTable, outputJSON, outputYAML)
	return cmd
}

func newApprovalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an approval request and its step output",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalShow,
	}
	addOutputFlag(cmd, outputMarkdown, outputMarkdown, outputJSON, outputYAML)
	return cmd
}

func addDecisionFlags(cmd *cobra.Command) {
	cmd.Flags().String("by", "", "Decision maker (defaults to review.reviewer)")
	cmd.Flags().String("comment", "", "Comment sent with the decision")
	cmd.Flags().Bool("watch", false, "Watch the job until it finishes")
}

func newApprovalApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a step output as is",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	addDecisionFlags(cmd)
	return cmd
}

func newApprovalRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a step output and fail the job",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalReject,
	}
	addDecisionFlags(cmd)
	return cmd
}

func newApprovalModifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify <id>",
		Short: "Replace a step output, or rerun the step when only a comment is given",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalModify,
	}
	addDecisionFlags(cmd)
	cmd.Flags().String("output-file", "", "File holding the replacement output JSON")
	cmd.Flags().String("data", "", "Replacement output JSON")
	return cmd
}

func newApprovalRerunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerun <id>",
		Short: "Re-execute a step with the comment as guidance",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalRerun,
	}
	addDecisionFlags(cmd)
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func newApprovalKeywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords <id>",
		Short: "Edit and submit the keyword selection of the keyword step",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalKeywords,
	}
	addDecisionFlags(cmd)
	cmd.Flags().String("main", "", "Main keyword (added to primary when missing)")
	cmd.Flags().StringArray("promote", nil, "Promote category:keyword to main keyword")
	cmd.Flags().StringArray("drop", nil, "Deselect category:keyword")
	cmd.Flags().StringArray("add", nil, "Select category:keyword")
	cmd.Flags().StringArray("clear", nil, "Deselect every keyword of a category")
	cmd.Flags().Bool("dry-run", false, "Print the resulting selection without submitting")
	return cmd
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	query := approval.Query{Status: approval.StatusPending}
	if cmd != nil {
		rawStatus, _ := cmd.Flags().GetString("status")
		if query.Status, err = parseStatus(rawStatus); err != nil {
			return err
		}
		query.PipelineStep, _ = cmd.Flags().GetString("step")
		query.JobID, _ = cmd.Flags().GetString("job")
	}

	requests, err := rt.client.ListApprovals(commandContext(cmd), query)
	if err != nil {
		return err
	}

	format := outputFormat(cmd, outputTable)
	if format != outputTable {
		return printStructured(format, requests)
	}
	if len(requests) == 0 {
		if query.Status == approval.StatusPending {
			fmt.Println("No pending approvals.")
		} else {
			fmt.Println("No approvals found.")
		}
		return nil
	}

	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		rows = append(rows, []string{
			req.ID,
			req.PipelineStep,
			string(req.Status),
			confidenceLabel(req),
			req.JobID,
			req.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	columns := []column{{"id", 10}, {"step", 18}, {"status", 10}, {"conf", 6}, {"job", 10}, {"created", 17}}
	printTable("Approvals", columns, rows, func(row, col int) lipgloss.Style {
		if col == 2 {
			return statusStyle(requests[row].Status)
		}
		return lipgloss.NewStyle()
	})
	return nil
}

func runApprovalShow(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	req, err := rt.client.GetApproval(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	format := outputFormat(cmd, outputMarkdown)
	if format != outputMarkdown {
		return printStructured(format, req)
	}
	renderer, err := tui.NewRenderer(100)
	if err != nil {
		fmt.Print(tui.PreviewMarkdown(req, rt.cfg.Review.KeywordStep))
		return nil
	}
	fmt.Print(tui.RenderPreview(renderer, req, rt.cfg.Review.KeywordStep))
	return nil
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], decision.Approve)
}

func runApprovalReject(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], decision.Reject)
}

func runApprovalModify(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], decision.Modify)
}

func runApprovalRerun(cmd *cobra.Command, args []string) error {
	comment, _ := cmd.Flags().GetString("comment")
	if strings.TrimSpace(comment) == "" {
		return fmt.Errorf("--comment is required to rerun a step")
	}
	return runApprovalDecision(cmd, args[0], decision.Modify)
}

// runApprovalDecision loads the approval into a session, applies the draft
// flags and submits intent.
func runApprovalDecision(cmd *cobra.Command, id string, intent decision.Kind) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reviewer, err := rt.reviewer(cmd)
	if err != nil {
		return err
	}
	sess := rt.newSession(reviewer, rt.progressPrinter(), nil)
	defer sess.Close()

	ctx := commandContext(cmd)
	current, err := sess.Load(ctx, id)
	if err != nil {
		return err
	}
	if sess.IsKeywordStep() && intent != decision.Reject {
		return fmt.Errorf("approval %s is a keyword step: use 'reviewdesk approval keywords %s'", id, id)
	}
	if err := applyDraftFlags(cmd, sess); err != nil {
		return err
	}

	req, err := sess.Submit(ctx, intent)
	if err != nil {
		return err
	}
	fmt.Printf("Approval %s %s by %s.\n", id, decisionVerb(req.Decision), req.ReviewedBy)

	watch, _ := cmd.Flags().GetBool("watch")
	switch {
	case !watch:
	case req.Decision == decision.Approve || req.Decision == decision.Modify:
		_, err := rt.watchJob(ctx, sess, current.JobID)
		return err
	case req.Decision == decision.Rerun:
		fmt.Println("The step runs again under a new approval; list pending approvals to follow it.")
	}
	return nil
}

func applyDraftFlags(cmd *cobra.Command, sess *session.Session) error {
	if cmd == nil {
		return nil
	}
	comment, _ := cmd.Flags().GetString("comment")
	if err := sess.SetComment(comment); err != nil {
		return err
	}

	if cmd.Flags().Lookup("output-file") == nil {
		return nil
	}
	path, _ := cmd.Flags().GetString("output-file")
	data, _ := cmd.Flags().GetString("data")
	switch {
	case strings.TrimSpace(path) != "" && strings.TrimSpace(data) != "":
		return fmt.Errorf("use either --output-file or --data, not both")
	case strings.TrimSpace(path) != "":
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read output file: %w", err)
		}
		return sess.SetOverride(json.RawMessage(raw))
	case strings.TrimSpace(data) != "":
		return sess.SetManualText(data)
	}
	return nil
}

func decisionVerb(kind decision.Kind) string {
	switch kind {
	case decision.Approve:
		return "approved"
	case decision.Reject:
		return "rejected"
	case decision.Modify:
		return "modified"
	case decision.Rerun:
		return "sent back for rerun"
	}
	return string(kind)
}

func runApprovalKeywords(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reviewer, err := rt.reviewer(cmd)
	if err != nil {
		return err
	}
	sess := rt.newSession(reviewer, rt.progressPrinter(), nil)
	defer sess.Close()

	ctx := commandContext(cmd)
	current, err := sess.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if !sess.IsKeywordStep() {
		return approval.NewValidationError(approval.CodeNotKeywordStep,
			fmt.Sprintf("approval %s is step %q, not the keyword step", current.ID, current.PipelineStep), nil)
	}
	if err := applyKeywordFlags(cmd, sess); err != nil {
		return err
	}
	comment, _ := cmd.Flags().GetString("comment")
	if err := sess.SetComment(comment); err != nil {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		sel := sess.Selection()
		return printSelection(sel.MainKeyword, sel.Payload())
	}

	req, err := sess.SubmitKeywords(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Keywords for %s submitted by %s (main keyword %q).\n", current.ID, req.ReviewedBy, req.MainKeyword)
	if req.SelectedKeywords != nil {
		if err := printSelection(req.MainKeyword, *req.SelectedKeywords); err != nil {
			return err
		}
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		_, err := rt.watchJob(ctx, sess, current.JobID)
		return err
	}
	return nil
}

// applyKeywordFlags replays the selection flags in a fixed order: main,
// promotions, clears, drops, adds.
func applyKeywordFlags(cmd *cobra.Command, sess *session.Session) error {
	main, _ := cmd.Flags().GetString("main")
	if strings.TrimSpace(main) != "" {
		if err := sess.SetMainKeyword(main); err != nil {
			return err
		}
	}

	promotes, _ := cmd.Flags().GetStringArray("promote")
	for _, raw := range promotes {
		category, kw, err := parseCategoryKeyword(raw)
		if err != nil {
			return err
		}
		if err := sess.Promote(kw, category); err != nil {
			return err
		}
	}

	clears, _ := cmd.Flags().GetStringArray("clear")
	for _, raw := range clears {
		category, err := keywords.ParseCategory(raw)
		if err != nil {
			return err
		}
		if err := sess.DeselectAll(category); err != nil {
			return err
		}
	}

	drops, _ := cmd.Flags().GetStringArray("drop")
	for _, raw := range drops {
		category, kw, err := parseCategoryKeyword(raw)
		if err != nil {
			return err
		}
		if sess.Selection().Contains(category, kw) {
			if err := sess.ToggleKeyword(category, kw); err != nil {
				return err
			}
		}
	}

	adds, _ := cmd.Flags().GetStringArray("add")
	for _, raw := range adds {
		category, kw, err := parseCategoryKeyword(raw)
		if err != nil {
			return err
		}
		if !sess.Selection().Contains(category, kw) {
			if err := sess.ToggleKeyword(category, kw); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseCategoryKeyword(raw string) (keywords.Category, string, error) {
	name, kw, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(kw) == "" {
		return "", "", fmt.Errorf("expected category:keyword, got %q", raw)
	}
	category, err := keywords.ParseCategory(name)
	if err != nil {
		return "", "", err
	}
	return category, strings.TrimSpace(kw), nil
}

func printSelection(main string, payload keywords.Payload) error {
	view := map[string]any{
		"main_keyword":      main,
		"selected_keywords": payload,
	}
	return printStructured(outputYAML, view)
}
