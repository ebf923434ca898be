package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputTable    = "table"
	outputJSON     = "json"
	outputYAML     = "yaml"
	outputMarkdown = "markdown"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#8E4EC6")). // Purple
			Padding(0, 1).
			MarginBottom(1)

	colHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8E4EC6")).
			Bold(true).
			MarginRight(1)

	sepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
	cellStyle = lipgloss.NewStyle().MarginRight(1)
	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginRight(1)

	statusColors = map[approval.Status]lipgloss.Color{
		approval.StatusPending:  lipgloss.Color("#E5C07B"),
		approval.StatusApproved: lipgloss.Color("#2E8B57"), // SeaGreen
		approval.StatusModified: lipgloss.Color("#61AFEF"),
		approval.StatusRejected: lipgloss.Color("#E06C75"),
	}
)

func addOutputFlag(cmd *cobra.Command, def string, allowed ...string) {
	cmd.Flags().StringP("output", "o", def, "Output format ("+strings.Join(allowed, "|")+")")
}

func outputFormat(cmd *cobra.Command, def string) string {
	if cmd == nil {
		return def
	}
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return def
	}
	return format
}

// printStructured writes v as JSON or YAML. YAML goes through JSON first so
// field names and raw JSON payloads match the API.
func printStructured(format string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	switch format {
	case outputJSON:
		fmt.Println(string(encoded))
		return nil
	case outputYAML:
		var generic any
		if err := json.Unmarshal(encoded, &generic); err != nil {
			return fmt.Errorf("decode output: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

type column struct {
	title string
	width int
}

// printTable renders rows with fixed column widths, styled like the rest of
// the CLI. style may color a cell; nil keeps the default.
func printTable(title string, columns []column, rows [][]string, style func(row, col int) lipgloss.Style) {
	fmt.Println(headerStyle.Render(title))

	headers := make([]string, 0, len(columns))
	seps := make([]string, 0, len(columns))
	for _, c := range columns {
		headers = append(headers, colHeaderStyle.Width(c.width).Render(strings.ToUpper(c.title)))
		seps = append(seps, sepStyle.Render(strings.Repeat("─", c.width)))
	}
	fmt.Printf("  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, headers...))
	fmt.Printf("  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, seps...))

	for i, row := range rows {
		cells := make([]string, 0, len(columns))
		for j, c := range columns {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			s := cellStyle
			if j == 0 {
				s = idStyle
			}
			if style != nil {
				s = style(i, j).Inherit(s)
			}
			cells = append(cells, s.Width(c.width).Render(truncate(value, c.width)))
		}
		fmt.Printf("  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	fmt.Println()
}

func statusStyle(status approval.Status) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(color)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func confidenceLabel(req approval.Request) string {
	score, ok := req.Confidence()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", score*100)
}
