// Package approval is the human-in-the-loop gate of a generate run: one
// raw keypress from the terminal decides what happens to the current page.
package approval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

type Action int

const (
	Continue Action = iota
	Skip
	Reload
	Quit
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Skip:
		return "skip"
	case Reload:
		return "reload"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

const ctrlC = 0x03

// ActionForKey maps a keypress to an action. Unrecognized keys continue.
func ActionForKey(b byte) Action {
	switch b {
	case 's', 'S':
		return Skip
	case 'r', 'R':
		return Reload
	case 'q', 'Q', ctrlC:
		return Quit
	default:
		return Continue
	}
}

// KeyReader yields one keypress.
type KeyReader interface {
	ReadKey(ctx context.Context) (byte, error)
}

// Prompter asks the operator what to do with a page.
type Prompter struct {
	keys KeyReader
	out  io.Writer
}

func NewPrompter(keys KeyReader, out io.Writer) *Prompter {
	return &Prompter{keys: keys, out: out}
}

// Prompt prints the review legend for url and blocks for a key. There is no
// timeout. A cancelled context or a closed stdin both mean Quit.
func (p *Prompter) Prompt(ctx context.Context, url string) (Action, error) {
	fmt.Fprintf(p.out, "\nReview page:\n  %s\n[Enter]=continue, [s]=skip, [r]=reload, [q]=quit: ", url)

	key, err := p.keys.ReadKey(ctx)
	fmt.Fprintln(p.out)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		slog.Warn("Stdin closed during approval, quitting")
		return Quit, nil
	case ctx.Err() != nil:
		return Quit, nil
	default:
		return Quit, fmt.Errorf("failed to read key: %w", err)
	}

	action := ActionForKey(key)
	slog.Debug("Approval key", "url", url, "action", action.String())
	return action, nil
}

// TerminalKeys reads single bytes from a file, in raw mode when it is a
// terminal so no Enter is needed.
type TerminalKeys struct {
	in *os.File
}

func NewTerminalKeys(in *os.File) *TerminalKeys {
	return &TerminalKeys{in: in}
}

type readResult struct {
	b   byte
	err error
}

func (t *TerminalKeys) ReadKey(ctx context.Context) (byte, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return 0, fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() {
			if err := term.Restore(fd, state); err != nil {
				slog.Warn("Failed to restore terminal", "error", err)
			}
		}()
	}

	// The read cannot be interrupted, so cancellation abandons it.
	ch := make(chan readResult, 1)
	go func() {
		buf := make([]byte, 1)
		n, err := t.in.Read(buf)
		if n == 1 {
			ch <- readResult{b: buf[0]}
			return
		}
		if err == nil {
			err = io.EOF
		}
		ch <- readResult{err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		return r.b, r.err
	}
}
