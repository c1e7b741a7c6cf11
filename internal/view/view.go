// Package view renders a live terminal picture of a running simulation.
package view

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/azargarov/foldersim"
)

// QueueRows is how many waiting clients the view lists.
const QueueRows = 10

const barWidth = 30

// Frame is one picture of the simulation.
type Frame struct {
	State   string
	RunID   string
	Folders []foldersim.FolderState
	Queue   []foldersim.ClientState
	Metrics foldersim.MetricsSnapshot
}

// FrameOf captures the simulation's current frame.
func FrameOf(s *foldersim.Simulation) Frame {
	return Frame{
		State:   s.State().String(),
		RunID:   s.RunID(),
		Folders: s.Folders(),
		Queue:   s.Queue().Snapshot(),
		Metrics: s.Metrics(),
	}
}

type tickMsg struct{}
type stopMsg struct{}

type model struct {
	frameFn   func() Frame
	frame     Frame
	interrupt func()
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.interrupt != nil {
				m.interrupt()
			}
			return m, tea.Quit
		}
	case tickMsg:
		m.frame = m.frameFn()
		return m, nil
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	return Render(m.frame)
}

// Run draws the simulation to w until ctx ends or the returned stop func
// is called. interrupt runs when the user presses ctrl+c or q.
func Run(ctx context.Context, w io.Writer, s *foldersim.Simulation, refresh time.Duration, interrupt func()) func() {
	frameFn := func() Frame { return FrameOf(s) }
	m := model{frameFn: frameFn, frame: frameFn(), interrupt: interrupt}
	program := tea.NewProgram(m, tea.WithOutput(w), tea.WithAltScreen())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = program.Run()
	}()

	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	ticker := time.NewTicker(refresh)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				program.Send(stopMsg{})
				return
			case <-stop:
				return
			case <-ticker.C:
				program.Send(tickMsg{})
			}
		}
	}()
	return func() {
		close(stop)
		ticker.Stop()
		program.Send(tickMsg{})
		program.Send(stopMsg{})
		<-done
	}
}

// Render lays a frame out as text.
func Render(f Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "foldersim  state=%s", f.State)
	if f.RunID != "" {
		fmt.Fprintf(&b, "  run=%s", shortID(f.RunID))
	}
	b.WriteString("\n\n")

	busy := 0
	for _, fs := range f.Folders {
		if fs.Busy() {
			busy++
		}
	}
	fmt.Fprintf(&b, "folders %d/%d busy\n", busy, len(f.Folders))
	for _, fs := range f.Folders {
		if !fs.Busy() {
			fmt.Fprintf(&b, "  [%d] idle\n", fs.Index)
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s %3d%% %s\n", fs.Index, bar(fs.Unit.Progress), fs.Unit.Progress, fs.Unit.Name)
	}

	fmt.Fprintf(&b, "\nqueue %d waiting\n", len(f.Queue))
	for i, c := range f.Queue {
		if i == QueueRows {
			fmt.Fprintf(&b, "  ... %d more\n", len(f.Queue)-QueueRows)
			break
		}
		fmt.Fprintf(&b, "  client-%-4d prio=%8.3f file=%4d MB left=%d\n", c.ID, c.Priority, c.CurrentFile(), len(c.Files))
	}

	m := f.Metrics
	fmt.Fprintf(&b, "\nenqueued=%d dispatched=%d requeued=%d retired=%d dropped=%d\n",
		m.Enqueued, m.Dispatched, m.Requeued, m.Retired, m.DroppedEvents)
	b.WriteString("\nq / ctrl+c to quit\n")
	return b.String()
}

func bar(progress int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > foldersim.FullProgress {
		progress = foldersim.FullProgress
	}
	filled := progress * barWidth / foldersim.FullProgress
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
