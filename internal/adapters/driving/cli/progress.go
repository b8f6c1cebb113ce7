package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

// newProgressReporter returns a terminal progress bar when stderr is a
// TTY, and a plain logging reporter when output is piped or captured.
func newProgressReporter() driven.ProgressReporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return &termProgress{}
	}
	return &logProgress{}
}

// logProgress reports stage boundaries through the logger; per-step noise
// only shows up in verbose mode.
type logProgress struct {
	stage string
	total int
	done  int
}

func (l *logProgress) StartStage(stage string, total int) {
	l.stage, l.total, l.done = stage, total, 0
	logger.Info("%s: starting, %d steps", stage, total)
}

func (l *logProgress) Advance(n int, note string) {
	l.done += n
	logger.Debug("%s: %d/%d %s", l.stage, l.done, l.total, note)
}

func (l *logProgress) FinishStage() {
	logger.Info("%s: finished %d/%d", l.stage, l.done, l.total)
}

// termProgress renders one bubbletea progress bar per stage on stderr.
type termProgress struct {
	prog     *tea.Program
	finished chan struct{}
}

func (t *termProgress) StartStage(stage string, total int) {
	model := newStageModel(stage, total)
	t.prog = tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithInput(nil))
	t.finished = make(chan struct{})
	go func() {
		defer close(t.finished)
		if _, err := t.prog.Run(); err != nil {
			logger.Warn("progress display stopped: %v", err)
		}
	}()
}

func (t *termProgress) Advance(n int, note string) {
	if t.prog != nil {
		t.prog.Send(advanceMsg{n: n, note: note})
	}
}

func (t *termProgress) FinishStage() {
	if t.prog == nil {
		return
	}
	t.prog.Quit()
	<-t.finished
	t.prog = nil
}

type advanceMsg struct {
	n    int
	note string
}

var stageStyle = lipgloss.NewStyle().Bold(true)

// stageModel is the bubbletea model behind one progress bar.
type stageModel struct {
	bar   progress.Model
	stage string
	total int
	done  int
	note  string
}

func newStageModel(stage string, total int) stageModel {
	return stageModel{
		bar:   progress.New(progress.WithDefaultGradient()),
		stage: stage,
		total: total,
	}
}

func (m stageModel) Init() tea.Cmd {
	return nil
}

func (m stageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case advanceMsg:
		m.done += msg.n
		m.note = msg.note
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.done) / float64(m.total))
		}
		return m, nil
	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		m.bar = updated.(progress.Model)
		return m, cmd
	case tea.WindowSizeMsg:
		width := msg.Width - len(m.stage) - 20
		if width < 10 {
			width = 10
		}
		m.bar.Width = width
		return m, nil
	}
	return m, nil
}

func (m stageModel) View() string {
	counter := ""
	if m.total > 0 {
		counter = fmt.Sprintf(" %d/%d", m.done, m.total)
	}
	return fmt.Sprintf("%s %s%s %s\n", stageStyle.Render(m.stage), m.bar.View(), counter, m.note)
}
