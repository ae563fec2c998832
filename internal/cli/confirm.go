package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned by Confirm when there is no terminal to ask on.
var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal (use --yes)")

// Prompter asks yes/no questions.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	// IsTerminal reports whether In is interactive. Defaults to checking os.Stdin.
	IsTerminal func() bool
}

// NewPrompter prompts on the process' stdin and stdout.
func NewPrompter() *Prompter {
	return &Prompter{
		In:  os.Stdin,
		Out: os.Stdout,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Confirm asks question and returns true only for an explicit yes.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.IsTerminal != nil && !p.IsTerminal() {
		return false, ErrNotInteractive
	}

	fmt.Fprintf(p.Out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
