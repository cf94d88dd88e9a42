// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, chat styling) for atlas CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	// PromptStyle renders the "you>" prompt in the interactive chat loop.
	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	// ReasoningStyle dims the assistant's reasoning trace so it reads as
	// an aside next to the answer.
	ReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	// AnswerStyle renders the assistant's answer text.
	AnswerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// ErrorStyle renders user-facing error lines.
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// StatusStyle renders connection status changes (reconnecting etc).
	StatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// DimStyle renders secondary text such as hints and counts.
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// KeyStyle renders field labels in command output.
	KeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// NameStyle renders primary names (sessions, models, cities).
	NameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	// ValueStyle renders configuration values.
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// spinnerFrames matches bubbletea's spinner.Dot pattern.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	// Run spinner animation in background
	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
