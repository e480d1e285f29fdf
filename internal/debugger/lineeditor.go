package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// ErrInterrupt is returned by GetLine when the user presses Ctrl-C at the prompt.
var ErrInterrupt = errors.New("interrupt")

const historySize = 500

// LineEditor reads command lines. GetLine returns io.EOF at end of input.
type LineEditor interface {
	GetLine(prompt string) (string, error)
	Close() error
}

// NewLineEditor returns a readline editor with history when stdin is a
// terminal, and a plain line reader otherwise. An empty historyFile
// disables persistent history.
func NewLineEditor(historyFile string) LineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return NewScannerEditor(os.Stdin, os.Stdout)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return NewScannerEditor(os.Stdin, os.Stdout)
	}
	return &readlineEditor{rl: rl}
}

type readlineEditor struct {
	rl *readline.Instance
}

func (e *readlineEditor) GetLine(prompt string) (string, error) {
	e.rl.SetPrompt(prompt)
	line, err := e.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	if err != nil {
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		e.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (e *readlineEditor) Close() error {
	return e.rl.Close()
}

// ScannerEditor reads lines from any reader, printing the prompt to out.
type ScannerEditor struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerEditor creates a line editor over r.
func NewScannerEditor(r io.Reader, out io.Writer) *ScannerEditor {
	return &ScannerEditor{scanner: bufio.NewScanner(r), out: out}
}

func (e *ScannerEditor) GetLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)
	if !e.scanner.Scan() {
		if err := e.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return e.scanner.Text(), nil
}

func (e *ScannerEditor) Close() error {
	return nil
}
