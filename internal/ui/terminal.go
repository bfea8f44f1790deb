// Package ui renders the interactive session: glamour markdown at flush
// points, lipgloss-styled tool lines and notifications, diff panels for file
// operations, and the huh approval prompt.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/NForce-ai/sdrbot/internal/agent"
	"github.com/NForce-ai/sdrbot/internal/llm"
)

const (
	defaultWidth = 100
	maxWidth     = 120
)

// Terminal implements the executor's UI against stdout.
type Terminal struct {
	out    io.Writer
	styles Styles
}

func NewTerminal() *Terminal {
	return &Terminal{out: os.Stdout, styles: DefaultStyles()}
}

func (t *Terminal) width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w > maxWidth {
		return maxWidth
	}
	return w
}

// Markdown renders a flushed block of assistant text.
func (t *Terminal) Markdown(text string) {
	rendered := RenderMarkdown(text, t.width())
	if rendered != "" {
		fmt.Fprint(t.out, rendered)
	}
}

// ToolStart prints the one-line summary for a tool that began executing.
func (t *Terminal) ToolStart(name, info string) {
	line := t.styles.ToolName.Render("• " + name)
	if info != "" {
		line += " " + t.styles.ToolInfo.Render(info)
	}
	fmt.Fprintln(t.out, line)
}

// ToolEnd surfaces tool failures. Successful tool output is consumed by the
// model, never shown. A non-nil diff (file operation whose change the
// approval prompt never displayed, e.g. under auto-approve) is rendered
// here instead.
func (t *Terminal) ToolEnd(name, output string, success bool, diff *agent.FileDiff) {
	if diff != nil {
		if panel := RenderDiff(diff.Path, diff.Old, diff.New); panel != "" {
			fmt.Fprint(t.out, panel)
		}
	}
	if success && output == "" {
		return
	}
	label := "failed"
	if success {
		label = "error"
	}
	fmt.Fprintln(t.out, t.styles.ErrorLabel.Render("  "+name+" "+label+":"))
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fmt.Fprintln(t.out, t.styles.ErrorText.Render("  "+line))
	}
}

// Notify prints a dim one-line notification.
func (t *Terminal) Notify(text string) {
	fmt.Fprintln(t.out, t.styles.Dim.Render(text))
}

// Error prints a short category-labeled error message.
func (t *Terminal) Error(category llm.ErrorCategory, message string) {
	label := errorLabel(category)
	fmt.Fprintln(t.out, t.styles.ErrorLabel.Render(label+": ")+t.styles.ErrorText.Render(message))
}

func errorLabel(category llm.ErrorCategory) string {
	switch category {
	case llm.ErrAuth:
		return "Auth error"
	case llm.ErrRateLimit:
		return "Rate limited"
	case llm.ErrTimeout:
		return "Timeout"
	case llm.ErrConnection:
		return "Connection error"
	default:
		return "Error"
	}
}

// PromptApproval shows one pending action and collects the decision. File
// operations get a diff panel above the prompt so the user sees exactly what
// would change.
func (t *Terminal) PromptApproval(action llm.ActionRequest) (agent.ApprovalResult, error) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, t.styles.Approval.Render("Approval required"))
	for _, line := range strings.Split(strings.TrimRight(action.Description, "\n"), "\n") {
		fmt.Fprintln(t.out, "  "+line)
	}
	if panel := fileOpDiff(action); panel != "" {
		fmt.Fprintln(t.out)
		fmt.Fprint(t.out, panel)
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Allow this action?").
				Options(
					huh.NewOption("Yes", string(agent.ApprovalApprove)),
					huh.NewOption("No", string(agent.ApprovalReject)),
					huh.NewOption("Yes, and auto-approve for this session", string(agent.ApprovalAutoApproveAll)),
				).
				Value(&choice),
		),
	).WithShowHelp(false).WithShowErrors(false)

	if err := form.Run(); err != nil {
		return agent.ApprovalReject, err
	}
	return agent.ApprovalResult(choice), nil
}

// fileOpDiff builds the diff panel for write_file and edit_file approvals
// from the same pre-execution snapshot the executor records for
// auto-approved operations.
func fileOpDiff(action llm.ActionRequest) string {
	d := agent.FileOpChange(action)
	if d == nil {
		return ""
	}
	return RenderDiff(d.Path, d.Old, d.New)
}

// Splash prints the startup banner.
func (t *Terminal) Splash(version, agentName string, services []string) {
	fmt.Fprintln(t.out, t.styles.Banner.Render("SDRbot")+t.styles.Dim.Render(" v"+version))
	line := fmt.Sprintf("agent: %s", agentName)
	if len(services) > 0 {
		line += fmt.Sprintf("  services: %s", strings.Join(services, ", "))
	}
	fmt.Fprintln(t.out, t.styles.Dim.Render(line))
	fmt.Fprintln(t.out, t.styles.Dim.Render("/help for commands, Ctrl+C to interrupt a turn."))
	fmt.Fprintln(t.out)
}

// Println writes a plain line. Used by slash-command handlers.
func (t *Terminal) Println(text string) {
	fmt.Fprintln(t.out, text)
}
