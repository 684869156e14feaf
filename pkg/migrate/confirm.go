package migrate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Confirmer asks the operator whether to go ahead
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// PromptConfirmer reads a single line answer; only y or Y accepts
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p *PromptConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprint(p.Out, prompt)
	answer, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "read confirmation")
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y", nil
}

// ConfirmFunc adapts a function to a Confirmer
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// AlwaysConfirm accepts without asking, for --yes
var AlwaysConfirm = ConfirmFunc(func(string) (bool, error) { return true, nil })
