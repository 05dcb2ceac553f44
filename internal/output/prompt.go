package output

import (
	"context"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Confirm asks a yes/no question. Non-interactive sessions get def without prompting.
func Confirm(title string, def bool) (bool, error) {
	if !IsInteractive() {
		return def, nil
	}
	ok := def
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Spin runs action while showing a spinner with title. Without a terminal the
// title is printed once and action runs plainly.
func Spin(ctx context.Context, title string, action func(context.Context) error) error {
	if !IsInteractive() {
		Subtle("%s", title)
		return action(ctx)
	}

	var actionErr error
	err := spinner.New().
		Title(title).
		Context(ctx).
		Action(func() { actionErr = action(ctx) }).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
