package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"restitch/pkg/apply"
)

// terminalConfirmer prompts on the controlling terminal for each proposed
// edit. Anything other than y/yes declines.
type terminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalConfirmer() *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (t *terminalConfirmer) Confirm(ctx context.Context, p apply.Proposal) (bool, error) {
	fmt.Fprintf(t.out, "\n%s  %s\n", p.Site, p.Request.Matcher)
	fmt.Fprintln(t.out, p.Preview)
	fmt.Fprint(t.out, "apply? [y/N] ")

	answer, err := t.in.ReadString('\n')
	if err != nil && answer == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

var _ apply.Confirmer = (*terminalConfirmer)(nil)
