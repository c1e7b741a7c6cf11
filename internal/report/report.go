// Package report records client turnaround times and charts them.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/azargarov/foldersim"
)

// ErrNotEnoughData is returned by WriteChart before two clients retired.
var ErrNotEnoughData = errors.New("report: need at least two retired clients")

// Turnaround is the life of one retired client.
type Turnaround struct {
	ClientID uint64        `json:"client_id"`
	Files    int           `json:"files"`
	TotalMB  int           `json:"total_mb"`
	Enqueued time.Time     `json:"enqueued"`
	Retired  time.Time     `json:"retired"`
	Elapsed  time.Duration `json:"elapsed"`
}

type pending struct {
	at      time.Time
	files   int
	totalMB int
}

// Recorder is a foldersim.Observer that pairs each client's first
// enqueue with its retirement.
type Recorder struct {
	mu      sync.Mutex
	open    map[uint64]pending
	retired []Turnaround
}

func NewRecorder() *Recorder {
	return &Recorder{open: make(map[uint64]pending)}
}

func (r *Recorder) OnEvent(e foldersim.Event) {
	if e.Client == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case foldersim.EventClientEnqueued:
		if _, ok := r.open[e.Client.ID]; ok {
			return
		}
		total := 0
		for _, f := range e.Client.Files {
			total += f
		}
		r.open[e.Client.ID] = pending{at: e.Time, files: len(e.Client.Files), totalMB: total}
	case foldersim.EventClientRetired:
		p, ok := r.open[e.Client.ID]
		if !ok {
			return
		}
		delete(r.open, e.Client.ID)
		r.retired = append(r.retired, Turnaround{
			ClientID: e.Client.ID,
			Files:    p.files,
			TotalMB:  p.totalMB,
			Enqueued: p.at,
			Retired:  e.Time,
			Elapsed:  e.Time.Sub(p.at),
		})
	}
}

// Turnarounds returns retired clients ordered by retirement time.
func (r *Recorder) Turnarounds() []Turnaround {
	r.mu.Lock()
	out := make([]Turnaround, len(r.retired))
	copy(out, r.retired)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Retired.Before(out[j].Retired) })
	return out
}

// Pending is the number of clients seen but not yet retired.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// Summary aggregates turnaround times.
type Summary struct {
	Count int
	Mean  time.Duration
	Max   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("retired=%d mean=%s max=%s", s.Count, s.Mean, s.Max)
}

// Summarize computes the mean and max turnaround.
func Summarize(ts []Turnaround) Summary {
	var s Summary
	var total time.Duration
	for _, t := range ts {
		total += t.Elapsed
		if t.Elapsed > s.Max {
			s.Max = t.Elapsed
		}
	}
	s.Count = len(ts)
	if s.Count > 0 {
		s.Mean = total / time.Duration(s.Count)
	}
	return s
}

// WriteChart renders turnaround (seconds) against total client size (MB)
// as a PNG.
func WriteChart(w io.Writer, ts []Turnaround) error {
	if len(ts) < 2 {
		return ErrNotEnoughData
	}
	sorted := make([]Turnaround, len(ts))
	copy(sorted, ts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalMB < sorted[j].TotalMB })

	x := make([]float64, len(sorted))
	y := make([]float64, len(sorted))
	for i, t := range sorted {
		x[i] = float64(t.TotalMB)
		y[i] = t.Elapsed.Seconds()
	}

	series := chart.ContinuousSeries{
		Name:    "turnaround",
		XValues: x,
		YValues: y,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    3,
		},
	}

	graph := chart.Chart{
		Title: "Client turnaround",
		XAxis: chart.XAxis{
			Name: "client size (MB)",
		},
		YAxis: chart.YAxis{
			Name: "turnaround (s)",
		},
		Series: []chart.Series{series},
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("report: render chart: %w", err)
	}
	return nil
}
