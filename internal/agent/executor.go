package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/session"
)

// ApprovalResult is the answer from the approval prompt for one action.
type ApprovalResult string

const (
	ApprovalApprove        ApprovalResult = "approve"
	ApprovalReject         ApprovalResult = "reject"
	ApprovalAutoApproveAll ApprovalResult = "auto_approve_all"
)

// rejectionMessage travels back in the decision so the engine can tell the
// difference between a reject and a malformed response.
const rejectionMessage = "User rejected the command"

// Persisted when a streaming turn is cut short, so the next turn has context
// that the prior one did not complete. The interrupt note is used when the
// user pressed Ctrl+C; the cancel note for host-level cancellation.
const (
	interruptedNote = "[User interrupted the previous request with Ctrl+C]"
	cancelledNote   = "[The previous request was cancelled by the system]"
)

// ErrUserInterrupt marks a context cancellation as an explicit user
// interrupt (Ctrl+C). The CLI cancels the turn context with this cause so
// the persisted note distinguishes it from host-level cancellation.
var ErrUserInterrupt = errors.New("user interrupt")

// UI abstracts the terminal rendering the executor drives. Implemented by
// internal/ui; tests substitute a recorder.
type UI interface {
	// Markdown renders a flushed block of assistant text.
	Markdown(text string)
	// ToolStart shows the one-line summary for a tool that began executing.
	ToolStart(name, info string)
	// ToolEnd shows a tool's completion. Output is only displayed for
	// failures; diff is non-nil for file operations whose change was not
	// already shown during the approval prompt.
	ToolEnd(name, output string, success bool, diff *FileDiff)
	// Notify renders a dim one-line notification.
	Notify(text string)
	// Error renders a short category-labeled error message.
	Error(category llm.ErrorCategory, message string)
	// PromptApproval asks the user to decide one pending action.
	PromptApproval(action llm.ActionRequest) (ApprovalResult, error)
}

// Executor drives one agent turn at a time: compaction check, streaming,
// flush-point text rendering, the approval gate, and token accounting. It and
// the Compactor are the only writers of the session store.
type Executor struct {
	engine    *llm.Engine
	store     session.Store
	tracker   *TokenTracker
	compactor *Compactor
	ui        UI
	fileOps   *FileOpTracker

	model        string
	maxTurns     int
	systemPrompt func() string

	autoApprove bool
}

type ExecutorOptions struct {
	Model        string
	MaxTurns     int
	AutoApprove  bool
	SystemPrompt func() string
}

func NewExecutor(engine *llm.Engine, store session.Store, tracker *TokenTracker, compactor *Compactor, ui UI, opts ExecutorOptions) *Executor {
	e := &Executor{
		engine:       engine,
		store:        store,
		tracker:      tracker,
		compactor:    compactor,
		ui:           ui,
		fileOps:      NewFileOpTracker(),
		model:        opts.Model,
		maxTurns:     opts.MaxTurns,
		systemPrompt: opts.SystemPrompt,
		autoApprove:  opts.AutoApprove,
	}

	// Persist each completed engine turn incrementally. A rejected batch
	// never reaches this callback, so the partial turn is simply dropped.
	engine.SetTurnCompletedCallback(func(ctx context.Context, turnIndex int, messages []llm.Message, metrics llm.TurnMetrics) error {
		return store.Append(ctx, messages...)
	})
	return e
}

// AutoApprove reports whether session-level auto-approval is active.
func (e *Executor) AutoApprove() bool {
	return e.autoApprove
}

// SetAutoApprove toggles session-level auto-approval (the --auto-approve
// flag sets it before the first turn).
func (e *Executor) SetAutoApprove(v bool) {
	e.autoApprove = v
}

// Clear starts a fresh conversation thread and zeroes the token counters.
func (e *Executor) Clear(ctx context.Context) error {
	if err := e.store.NewThread(ctx); err != nil {
		return err
	}
	e.tracker.Reset()
	return nil
}

// RunTurn sends one user message and consumes the agent's event stream until
// the turn completes, is rejected, errors, or is cancelled.
func (e *Executor) RunTurn(ctx context.Context, userInput string) error {
	input, compacted, err := e.compactor.MaybeCompact(ctx, userInput)
	if err != nil {
		e.ui.Notify(fmt.Sprintf("Compaction skipped: %v", err))
		input = userInput
	} else if compacted {
		e.ui.Notify("Context compacted; continuing with a summarized history.")
	}

	if err := e.store.Append(ctx, llm.UserText(input)); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	history, err := e.store.Messages(ctx)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if e.systemPrompt != nil {
		if prompt := e.systemPrompt(); prompt != "" {
			messages = append(messages, llm.SystemText(prompt))
		}
	}
	messages = append(messages, history...)

	req := llm.Request{
		Model:    e.model,
		Messages: messages,
		Tools:    e.engine.Tools().AllSpecs(),
		MaxTurns: e.maxTurns,
	}

	stream, err := e.engine.Stream(ctx, req)
	if err != nil {
		e.renderError(err)
		return nil
	}
	defer stream.Close()

	var pending strings.Builder
	var usage TurnUsage
	flush := func() {
		if pending.Len() > 0 {
			e.ui.Markdown(pending.String())
			pending.Reset()
		}
	}

	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			e.tracker.Record(usage.Input, usage.Output)
			return e.handleStreamError(ctx, err)
		}

		switch event.Type {
		case llm.EventTextDelta:
			pending.WriteString(event.Text)

		case llm.EventReasoningDelta:
			// A reasoning block starting is a flush point; the reasoning
			// itself is not rendered.
			flush()

		case llm.EventToolCall:
			flush()

		case llm.EventToolExecStart:
			e.ui.ToolStart(event.ToolName, event.ToolInfo)

		case llm.EventToolExecEnd:
			e.renderToolEnd(event)

		case llm.EventInterrupt:
			flush()
			e.handleInterrupts(event)

		case llm.EventUsage:
			in, out := llm.ExtractUsage(event.Use, event.RawUsage)
			usage.Observe(in, out)

		case llm.EventRetry:
			e.ui.Notify(fmt.Sprintf("Retrying (%d/%d) in %.0fs...",
				event.RetryAttempt, event.RetryMaxAttempts, event.RetryWaitSecs))

		case llm.EventError:
			if event.Err != nil {
				flush()
				e.tracker.Record(usage.Input, usage.Output)
				return e.handleStreamError(ctx, event.Err)
			}
		}
	}

	flush()
	e.tracker.Record(usage.Input, usage.Output)
	return nil
}

// renderToolEnd applies the silent-result policy: tool output is only shown
// when the tool failed (output is error-prefixed); everything else is
// consumed by the model and surfaced through its next response. File
// operations that were auto-approved carry their snapshot diff here, now
// that the change is known to have landed.
func (e *Executor) renderToolEnd(event llm.Event) {
	diff := e.fileOps.TakePending(event.ToolCallID)
	if !event.ToolSuccess {
		diff = nil
	}
	output := ""
	if !event.ToolSuccess || strings.HasPrefix(event.ToolOutput, "Error") {
		output = event.ToolOutput
	}
	e.ui.ToolEnd(event.ToolName, output, event.ToolSuccess, diff)
}

// handleInterrupts collects one decision per action request, in order, for
// every pending interrupt in the batch, then resumes the engine with the
// full decision map. Decisions are always collected for the whole batch even
// after a rejection.
func (e *Executor) handleInterrupts(event llm.Event) {
	responses := make(map[string]llm.InterruptResponse, len(event.Interrupts))

	for _, interrupt := range event.Interrupts {
		decisions := make([]llm.Decision, 0, len(interrupt.ActionRequests))
		for _, action := range interrupt.ActionRequests {
			decisions = append(decisions, e.decideAction(action))
		}
		responses[interrupt.ID] = llm.InterruptResponse{Decisions: decisions}
	}

	if event.Resume != nil {
		event.Resume <- responses
	}
}

func (e *Executor) decideAction(action llm.ActionRequest) llm.Decision {
	if e.autoApprove {
		e.ui.Notify("Auto-approved: " + action.Description)
		// No prompt means no diff was shown; snapshot the change now so
		// it can be rendered once the tool finishes.
		e.fileOps.RecordPending(action.Call.ID, FileOpChange(action))
		return llm.Decision{Type: llm.DecisionApprove}
	}

	result, err := e.ui.PromptApproval(action)
	if err != nil {
		return llm.Decision{Type: llm.DecisionReject, Message: rejectionMessage}
	}
	switch result {
	case ApprovalAutoApproveAll:
		e.autoApprove = true
		e.ui.Notify("Auto-approve enabled for the rest of this session.")
		return llm.Decision{Type: llm.DecisionApprove}
	case ApprovalApprove:
		return llm.Decision{Type: llm.DecisionApprove}
	default:
		return llm.Decision{Type: llm.DecisionReject, Message: rejectionMessage}
	}
}

// handleStreamError maps terminal stream errors to their user-visible
// outcomes. Rejection and cancellation are normal negative outcomes, not
// failures; the turn simply ends.
func (e *Executor) handleStreamError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, llm.ErrRejected):
		e.ui.Notify("Command rejected.")
		return nil

	case errors.Is(err, llm.ErrInterruptAbandoned):
		return nil

	case errors.Is(err, context.Canceled):
		note := cancelledNote
		label := "Cancelled."
		if errors.Is(context.Cause(ctx), ErrUserInterrupt) {
			note = interruptedNote
			label = "Interrupted by user."
		}
		// Persist against a background context: the turn's context is
		// already cancelled.
		_ = e.store.Append(context.Background(), llm.SystemText(note))
		e.ui.Notify(label)
		return nil

	default:
		e.renderError(err)
		return nil
	}
}

func (e *Executor) renderError(err error) {
	category := llm.ClassifyError(err)
	switch category {
	case llm.ErrAuth:
		e.ui.Error(category, "Authentication failed (401). Check the API key in .env or run /setup.")
	case llm.ErrRateLimit:
		e.ui.Error(category, "Rate limited (429). Wait a moment and try again.")
	case llm.ErrTimeout:
		e.ui.Error(category, "Request timed out.")
	case llm.ErrConnection:
		e.ui.Error(category, "Connection error. Check your network and try again.")
	default:
		msg := err.Error()
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		e.ui.Error(category, msg)
	}
}
