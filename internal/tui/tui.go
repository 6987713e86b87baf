package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Run opens the layout browser over src until the user quits.
func Run(src Source) error {
	if !Interactive() {
		return fmt.Errorf("layout browser requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	m, err := newModel(src)
	if err != nil {
		return err
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("layout browser: %w", err)
	}
	return nil
}

// Size returns the terminal's size, or 80x24 when stdout is not a terminal.
func Size() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}
