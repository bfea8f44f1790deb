package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/session"
)

const (
	// minMessagesForCompaction: histories at or below this length are not
	// worth summarizing.
	minMessagesForCompaction = 6

	// maxMessagesInSummaryPrompt caps how much history the summarization
	// call sees.
	maxMessagesInSummaryPrompt = 50

	// maxContentPerMessage truncates each message's content in the
	// summarization prompt.
	maxContentPerMessage = 500
)

const summarizationPrompt = `Summarize the conversation below for a fresh session of the same assistant.
Preserve, in order of importance:
- decisions made and their reasons
- facts discovered (record IDs, emails, query results, file paths)
- the current task state and any remaining steps
- errors encountered and how they were resolved

Be specific. Omit pleasantries and formatting.

Conversation:
%s`

// Completer issues one non-streaming model call. *llm.Engine satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Compactor prevents unbounded context growth. When the tracked context
// exceeds the threshold, it summarizes the persisted history with a side
// model call, replaces the conversation store wholesale, and folds the
// summary into the current user input.
type Compactor struct {
	completer Completer
	store     session.Store
	tracker   *TokenTracker
	model     string
	threshold int
}

func NewCompactor(completer Completer, store session.Store, tracker *TokenTracker, model string, threshold int) *Compactor {
	return &Compactor{
		completer: completer,
		store:     store,
		tracker:   tracker,
		model:     model,
		threshold: threshold,
	}
}

// Threshold returns the configured trigger point, for /tokens display.
func (c *Compactor) Threshold() int {
	return c.threshold
}

// MaybeCompact is evaluated once per user turn, before streaming starts.
// It returns the input to send: either the original text untouched, or the
// text prefixed with a summary of the discarded history. The literal user
// input is always preserved.
func (c *Compactor) MaybeCompact(ctx context.Context, userInput string) (string, bool, error) {
	if c.tracker.CurrentContext() < c.threshold {
		return userInput, false, nil
	}

	msgs, err := c.store.Messages(ctx)
	if err != nil {
		return userInput, false, fmt.Errorf("read history for compaction: %w", err)
	}
	if len(msgs) <= minMessagesForCompaction {
		return userInput, false, nil
	}

	summary := c.summarize(ctx, msgs)

	if err := c.store.Replace(ctx, nil); err != nil {
		return userInput, false, fmt.Errorf("reset conversation store: %w", err)
	}
	c.tracker.Reset()

	combined := fmt.Sprintf("[Context from previous conversation]\n%s\n\n%s", summary, userInput)
	return combined, true, nil
}

// summarize issues the side model call. Any failure degrades to a
// placeholder string rather than aborting the turn.
func (c *Compactor) summarize(ctx context.Context, msgs []llm.Message) string {
	history := formatHistory(msgs)
	req := llm.Request{
		Model:    c.model,
		Messages: []llm.Message{llm.UserText(fmt.Sprintf(summarizationPrompt, history))},
	}
	summary, err := c.completer.Complete(ctx, req)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err == nil {
			err = fmt.Errorf("empty summary")
		}
		return fmt.Sprintf("[Summary generation failed: %v]", err)
	}
	return strings.TrimSpace(summary)
}

// formatHistory renders up to the last maxMessagesInSummaryPrompt messages
// as "role: content" lines, truncating long content.
func formatHistory(msgs []llm.Message) string {
	if len(msgs) > maxMessagesInSummaryPrompt {
		msgs = msgs[len(msgs)-maxMessagesInSummaryPrompt:]
	}
	var b strings.Builder
	for _, msg := range msgs {
		content := msg.Text()
		if content == "" {
			content = describeNonText(msg)
		}
		if len(content) > maxContentPerMessage {
			content = content[:maxContentPerMessage] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, content)
	}
	return b.String()
}

func describeNonText(msg llm.Message) string {
	var names []string
	for _, p := range msg.Parts {
		switch {
		case p.Type == llm.PartToolCall && p.ToolCall != nil:
			names = append(names, p.ToolCall.Name)
		case p.Type == llm.PartToolResult && p.ToolResult != nil:
			return p.ToolResult.Content
		}
	}
	if len(names) > 0 {
		return "[tool calls: " + strings.Join(names, ", ") + "]"
	}
	return ""
}
