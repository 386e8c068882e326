// Package repl implements the interactive terminal front-end: a readline
// shell over the Command Registry, with tab completion over the current
// verb set and persistent history.
//
// Grounded on the teacher's internal/agent/repl.go: readline.Config setup
// (HistoryFile, AutoComplete, InterruptPrompt/EOFPrompt), the
// Ctrl-C/Ctrl-D handling in its Run loop, and its pattern of rebuilding
// the completer when the underlying command set changes.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"mcphost/internal/command"
	"mcphost/pkg/logging"
)

const historyFileName = ".mcphost_history"

// REPL drives an interactive session over a command.Registry.
type REPL struct {
	registry *command.Registry
	state    any
	rl       *readline.Instance
	logCh    <-chan logging.LogEntry
}

// New creates a REPL over registry. state is passed through to every
// builtin/plugin verb invocation (see command.Registry.Resolve).
func New(registry *command.Registry, state any) *REPL {
	return &REPL{registry: registry, state: state}
}

// WithLogChannel makes the REPL drain ch in the background and render each
// entry above the prompt instead of letting it race direct terminal writes.
// ch is normally the channel returned by logging.InitForTUI.
func (r *REPL) WithLogChannel(ch <-chan logging.LogEntry) *REPL {
	r.logCh = ch
	return r
}

// Run starts the read-eval-print loop until ctx is cancelled, the user
// types `exit`/`quit`, or presses Ctrl-D.
func (r *REPL) Run(ctx context.Context) error {
	historyFile := filepath.Join(os.TempDir(), historyFileName)
	config := &readline.Config{
		Prompt:          "mcphost> ",
		HistoryFile:     historyFile,
		AutoComplete:    r.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("creating readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	if r.logCh != nil {
		go r.drainLogs(ctx)
	}

	fmt.Println("mcphost interactive shell. Type 'help' for available commands.")
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
			continue
		} else if err == io.EOF {
			fmt.Println("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		result, err := r.registry.Resolve(ctx, input, r.state)
		if err != nil {
			if err.Error() == "exit" {
				fmt.Println("Goodbye!")
				return nil
			}
			fmt.Printf("Error: %v\n", err)
		} else if result.Output != "" {
			fmt.Println(result.Output)
		}

		rl.Config.AutoComplete = r.completer()
		fmt.Println()
	}
}

// drainLogs renders background log entries (plugin init, proxy reconnects,
// telemetry fallbacks, ...) above the prompt without corrupting whatever the
// user is mid-typing, mirroring the teacher's notification-listener pattern
// of clearing the line, writing, then refreshing readline.
func (r *REPL) drainLogs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-r.logCh:
			if !ok {
				return
			}
			r.rl.Stdout().Write([]byte("\r\033[K"))
			if entry.Err != nil {
				fmt.Fprintf(r.rl.Stdout(), "[%s] %s: %s: %v\n", entry.Level, entry.Subsystem, entry.Message, entry.Err)
			} else {
				fmt.Fprintf(r.rl.Stdout(), "[%s] %s: %s\n", entry.Level, entry.Subsystem, entry.Message)
			}
			r.rl.Refresh()
		}
	}
}

// completer builds a flat prefix completer over the registry's current
// verb set, rebuilt on every loop iteration since plugins can add or drop
// verbs at runtime.
func (r *REPL) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.registry.Verbs()))
	for _, v := range r.registry.Verbs() {
		items = append(items, readline.PcItem(v))
	}
	return readline.NewPrefixCompleter(items...)
}
