// Package ui provides progress display while repositories are counted.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

// IsTTY returns true if stderr is a terminal.
func IsTTY() bool {
	return term.IsTerminal(os.Stderr.Fd())
}

// --- Plain text fallback ---

// PlainProgress prints progress messages to a callback function.
// Used when stderr is not a TTY (e.g., piped output).
type PlainProgress struct {
	label string
	print func(string)
}

// NewPlainProgress creates a PlainProgress for the named provider.
func NewPlainProgress(label string, print func(string)) *PlainProgress {
	return &PlainProgress{label: label, print: print}
}

// Update prints a progress message for a counted repository.
func (p *PlainProgress) Update(completed, total int, repoName string) {
	p.print(fmt.Sprintf("[%s %d/%d] Counted %s", p.label, completed, total, repoName))
}

// Done prints a completion message.
func (p *PlainProgress) Done(total int) {
	p.print(fmt.Sprintf("Done! Counted %d %s repositories.", total, p.label))
}

// --- TUI progress ---

// ProgressMsg is sent to the bubbletea program when a repository is counted.
type ProgressMsg struct {
	Completed int
	Total     int
	RepoName  string
}

// DoneMsg is sent to the bubbletea program when every repository is counted.
type DoneMsg struct {
	Total int
}

type model struct {
	label     string
	interrupt func()
	progress  progress.Model
	completed int
	total     int
	repoName  string
	done      bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewTUIModel creates a new bubbletea model for the progress TUI.
// interrupt may be nil.
func NewTUIModel(label string, interrupt func()) model {
	return model{
		label:     label,
		interrupt: interrupt,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// the raw terminal swallows SIGINT, so cancel the run here
			if m.interrupt != nil {
				m.interrupt()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 10
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
	case ProgressMsg:
		m.completed = msg.Completed
		m.total = msg.Total
		m.repoName = msg.RepoName
		if m.total == 0 {
			return m, nil
		}
		pct := float64(m.completed) / float64(m.total)
		return m, m.progress.SetPercent(pct)
	case DoneMsg:
		m.done = true
		m.total = msg.Total
		return m, tea.Quit
	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return fmt.Sprintf("\n  %s\n\n",
			titleStyle.Render(fmt.Sprintf("Done! Counted %d %s repositories.", m.total, m.label)))
	}

	pad := strings.Repeat(" ", 2)
	counter := infoStyle.Render(fmt.Sprintf("%d/%d", m.completed, m.total))
	desc := m.repoName
	if desc == "" {
		desc = "Listing repositories..."
	}

	return "\n" +
		pad + titleStyle.Render("Counting "+m.label+" repositories") + "\n" +
		pad + m.progress.View() + "  " + counter + "\n" +
		pad + infoStyle.Render(desc) + "\n\n"
}

// TUIProgress forwards counter progress to a running bubbletea program.
type TUIProgress struct {
	program *tea.Program
	exited  chan struct{}
}

// RunTUI starts a progress program for the named provider in the
// background. The program outputs to stderr so JSON output on stdout
// stays clean. interrupt is called when the user presses ctrl+c.
func RunTUI(label string, interrupt func()) *TUIProgress {
	p := tea.NewProgram(NewTUIModel(label, interrupt), tea.WithOutput(os.Stderr))
	t := &TUIProgress{program: p, exited: make(chan struct{})}
	go func() {
		defer close(t.exited)
		p.Run()
	}()
	return t
}

// Update reports a counted repository.
func (t *TUIProgress) Update(completed, total int, repoName string) {
	t.program.Send(ProgressMsg{Completed: completed, Total: total, RepoName: repoName})
}

// Done finishes the program and waits for it to restore the terminal.
func (t *TUIProgress) Done(total int) {
	t.program.Send(DoneMsg{Total: total})
	<-t.exited
}
