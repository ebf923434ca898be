package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/keywords"
	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer interface {
	Render(string) (string, error)
}

// NewRenderer returns a glamour renderer wrapping at width columns.
func NewRenderer(width int) (Renderer, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return r, nil
}

// markdownFields are output keys whose string value is shown as prose.
var markdownFields = []string{"body", "content", "markdown"}

// PreviewMarkdown builds the markdown preview of an approval: a header,
// confidence and suggestions, then the step output.
func PreviewMarkdown(req approval.Request, keywordStep string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", req.PipelineStep)
	fmt.Fprintf(&b, "- **Approval:** `%s`\n- **Job:** `%s`\n- **Status:** %s\n", req.ID, req.JobID, req.Status)
	if score, ok := req.Confidence(); ok {
		fmt.Fprintf(&b, "- **Confidence:** %.0f%%\n", score*100)
	}
	if req.ReviewedBy != "" {
		fmt.Fprintf(&b, "- **Reviewed by:** %s\n", req.ReviewedBy)
	}
	if req.UserComment != "" {
		fmt.Fprintf(&b, "- **Comment:** %s\n", req.UserComment)
	}

	if len(req.Suggestions) > 0 {
		b.WriteString("\n## Suggestions\n\n")
		for _, s := range req.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\n## Output\n\n")
	if req.IsKeywordStep(keywordStep) {
		if section, ok := keywordMarkdown(req.OutputData); ok {
			b.WriteString(section)
			return b.String()
		}
	}
	if prose, ok := proseField(req.OutputData); ok {
		b.WriteString(prose)
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString("```json\n")
	b.WriteString(PrettyJSON(req.OutputData))
	b.WriteString("\n```\n")
	return b.String()
}

// RenderPreview renders PreviewMarkdown with r, falling back to the raw
// markdown when rendering fails.
func RenderPreview(r Renderer, req approval.Request, keywordStep string) string {
	md := PreviewMarkdown(req, keywordStep)
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// PrettyJSON indents raw JSON. Invalid input is returned unchanged.
func PrettyJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func proseField(output json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(output, &fields); err != nil {
		return "", false
	}
	for _, key := range markdownFields {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
			if title, ok := stringField(fields, "title"); ok {
				return "### " + title + "\n\n" + text, true
			}
			return text, true
		}
	}
	return "", false
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func keywordMarkdown(output json.RawMessage) (string, bool) {
	sel, _, err := keywords.FromOutput(output)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Main keyword:** %s\n", orNone(sel.MainKeyword))
	for _, c := range keywords.Categories {
		fmt.Fprintf(&b, "\n**%s** (%d)\n\n", c.Label(), sel.Count(c))
		for _, kw := range sel.Keywords(c) {
			fmt.Fprintf(&b, "- %s\n", kw)
		}
	}
	return b.String(), true
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_none_"
	}
	return s
}
