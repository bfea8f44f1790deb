package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/agent"
	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/update"
)

func runInteractive(ctx context.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if !flagNoSplash {
		s.terminal.Splash(Version, s.agent.Name(), s.enabledServices())
		if s.sandbox.Name() != "local" {
			s.terminal.Notify(fmt.Sprintf("Sandbox: %s %s", s.sandbox.Name(), s.sandbox.ID()))
		}
		if latest, releaseURL, ok := update.CheckForUpdate(ctx, Version); ok {
			s.terminal.Notify(fmt.Sprintf("A newer SDRbot release (%s) is available: %s", latest, releaseURL))
		}
	}

	// SIGINT cancels the in-flight turn rather than killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		// Raw shell bypass is deliberately not supported: every command
		// goes through the shell tool and its approval gate.
		if strings.HasPrefix(input, "!") {
			s.terminal.Notify("Raw ! commands are disabled. Ask the agent instead; shell commands go through the approval prompt.")
			continue
		}

		if strings.HasPrefix(input, "/") {
			if exit := s.handleCommand(ctx, input); exit {
				return nil
			}
			continue
		}

		s.runTurn(ctx, sigCh, input)
	}
}

// runTurn executes one agent turn, cancellable by Ctrl+C. The signal cancels
// with a distinct cause so the persisted note says the user interrupted,
// not that the host shut the turn down.
func (s *Session) runTurn(parent context.Context, sigCh <-chan os.Signal, input string) {
	turnCtx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel(agent.ErrUserInterrupt)
		case <-done:
		}
	}()

	err := s.executor.RunTurn(turnCtx, input)
	close(done)
	if err != nil {
		s.terminal.Error(llm.ClassifyError(err), err.Error())
	}

	if s.tracing {
		s.terminal.Notify(fmt.Sprintf("turn: ~%d output tokens, context ~%d tokens",
			s.tracker.LastOutput(), s.tracker.CurrentContext()))
	}
}
