// Package replio implements the interactive line editing and colorized
// diagnostics cmd/vy's REPL uses. It knows nothing about the language
// itself — it only reads lines and prints results/errors — so the VM and
// compiler stay the external collaborators spec section 1 describes them
// as.
package replio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// historyFileName is kept in the user's home directory across sessions,
// the same convenience the teacher's bare bufio REPL didn't offer.
const historyFileName = ".vy_history"

// Session drives one REPL's line reading, prompting, and colorized
// output. A zero Session is not usable; construct one with New.
type Session struct {
	line         *liner.State
	interactive  bool
	historyPath  string
	errColor     *color.Color
	resultColor  *color.Color
	promptColor  *color.Color
}

// New builds a Session reading from stdin and writing to stdout.
// Interactive mode (history, colorized prompts) is enabled only when
// stdout is a real terminal, per SPEC_FULL.md §4.6 — a piped or
// redirected stdout (e.g. under a test harness, or `vy < script.vy`)
// falls back to plain line reading and uncolored output.
func New() *Session {
	interactive := isatty.IsTerminal(os.Stdout.Fd())
	s := &Session{
		interactive: interactive,
		errColor:    color.New(color.FgRed, color.Bold),
		resultColor: color.New(color.FgGreen),
		promptColor: color.New(color.FgCyan),
	}
	color.NoColor = !interactive

	if interactive {
		s.line = liner.NewLiner()
		s.line.SetCtrlCAborts(true)
		if home, err := os.UserHomeDir(); err == nil {
			s.historyPath = home + string(os.PathSeparator) + historyFileName
			if f, err := os.Open(s.historyPath); err == nil {
				s.line.ReadHistory(f)
				f.Close()
			}
		}
	}
	return s
}

// Close flushes history to disk and releases the terminal, restoring it
// to cooked mode. Safe to call on a non-interactive Session.
func (s *Session) Close() {
	if s.line == nil {
		return
	}
	if s.historyPath != "" {
		if f, err := os.Create(s.historyPath); err == nil {
			s.line.WriteHistory(f)
			f.Close()
		}
	}
	s.line.Close()
}

// ReadLine prompts with prompt and returns one line of input, stripped of
// its trailing newline. io.EOF is returned on Ctrl-D / end of input.
func (s *Session) ReadLine(prompt string) (string, error) {
	if s.line != nil {
		text, err := s.line.Prompt(s.promptColor.Sprint(prompt))
		if err != nil {
			if err == liner.ErrPromptAborted {
				return "", io.EOF
			}
			return "", err
		}
		s.line.AppendHistory(text)
		return text, nil
	}
	fmt.Print(prompt)
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return b.String(), nil
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			if b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
	}
}

// PrintResult renders a successfully evaluated result line in the REPL's
// "ok" color.
func (s *Session) PrintResult(text string) {
	s.resultColor.Println(text)
}

// PrintError renders a compile or runtime error in the REPL's error
// color, to stderr.
func (s *Session) PrintError(err error) {
	fmt.Fprintln(os.Stderr, s.errColor.Sprint(err.Error()))
}
