package foldersim

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// FullProgress marks a file as done.
	FullProgress = 100

	// progressBudget is the numerator of the per-tick increment:
	// a file of size S advances by max(1, progressBudget/S) per tick.
	progressBudget = 500
)

var (
	// ErrNoFiles is returned when a client is created without files.
	ErrNoFiles = errors.New("foldersim: client has no files")

	// ErrInvalidFileSize is returned for a non-positive file size.
	ErrInvalidFileSize = errors.New("foldersim: file size must be a positive integer")
)

// IDGen hands out client ids. Ids start at 1 and grow monotonically.
// It is safe for concurrent use.
type IDGen struct {
	last atomic.Uint64
}

// Next returns a fresh id.
func (g *IDGen) Next() uint64 { return g.last.Add(1) }

// ValidateFiles checks producer input before a client is built.
func ValidateFiles(files []int) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	for i, size := range files {
		if size <= 0 {
			return fmt.Errorf("file %d has size %d: %w", i, size, ErrInvalidFileSize)
		}
	}
	return nil
}

// Client is a simulated work request with one or more files processed
// front to back.
//
// A Client is owned either by the RankedQueue or by exactly one folder.
// Its fields are mutated only by the current owner, and by the queue's
// rescoring (priority only) while the client is queued. Code outside the
// owner must read ClientState snapshots instead.
type Client struct {
	id       uint64
	arrival  time.Time
	files    []int
	progress int
	priority float64

	// completed counts finished files, used for FileUnit names.
	completed int
}

// NewClient builds a client. The file slice is copied.
func NewClient(id uint64, files []int, now time.Time) (*Client, error) {
	if err := ValidateFiles(files); err != nil {
		return nil, err
	}
	fs := make([]int, len(files))
	copy(fs, files)
	return &Client{id: id, arrival: now, files: fs}, nil
}

func (c *Client) ID() uint64             { return c.id }
func (c *Client) ArrivalTime() time.Time { return c.arrival }
func (c *Client) Progress() int          { return c.progress }
func (c *Client) Priority() float64      { return c.priority }

// Files returns a copy of the remaining file sizes.
func (c *Client) Files() []int {
	out := make([]int, len(c.files))
	copy(out, c.files)
	return out
}

// CurrentFile returns the size of the file at the front, or 0 for a
// terminal client.
func (c *Client) CurrentFile() int {
	if len(c.files) == 0 {
		return 0
	}
	return c.files[0]
}

// Terminal reports whether the client has nothing left to process.
func (c *Client) Terminal() bool { return len(c.files) == 0 }

// eligible reports whether the client may be dispatched.
func (c *Client) eligible() bool {
	return len(c.files) > 0 && c.progress < FullProgress
}

// tickIncrement returns the progress gained per tick for the current file.
func (c *Client) tickIncrement() int {
	size := c.CurrentFile()
	if size < 1 {
		size = 1
	}
	return max(1, progressBudget/size)
}

// advance applies one tick and reports whether the current file is done.
func (c *Client) advance() bool {
	c.progress = min(FullProgress, c.progress+c.tickIncrement())
	return c.progress >= FullProgress
}

// completeFront drops the finished front file. If files remain, progress
// resets and the client re-enters aging from now. It reports whether any
// files remain.
func (c *Client) completeFront(now time.Time) bool {
	if len(c.files) > 0 {
		c.files = c.files[1:]
		c.completed++
	}
	if len(c.files) == 0 {
		return false
	}
	c.progress = 0
	c.arrival = now
	return true
}

// State returns a value snapshot of the client.
func (c *Client) State() ClientState {
	return ClientState{
		ID:          c.id,
		ArrivalTime: c.arrival,
		Files:       c.Files(),
		Progress:    c.progress,
		Priority:    c.priority,
	}
}

// ClientState is an immutable copy of a client, safe to hand to observers.
type ClientState struct {
	ID          uint64    `json:"id"`
	ArrivalTime time.Time `json:"arrival_time"`
	Files       []int     `json:"files"`
	Progress    int       `json:"progress"`
	Priority    float64   `json:"priority"`
}

// CurrentFile returns the size of the file at the front.
func (s ClientState) CurrentFile() int {
	if len(s.Files) == 0 {
		return 0
	}
	return s.Files[0]
}

// FileUnit is the folder-side record of one in-flight file.
type FileUnit struct {
	Name     string `json:"name"`
	SizeMB   int    `json:"size_mb"`
	Progress int    `json:"progress"`
}

func newFileUnit(c *Client) *FileUnit {
	return &FileUnit{
		Name:     fmt.Sprintf("client-%d/%d (%d MB)", c.id, c.completed+1, c.CurrentFile()),
		SizeMB:   c.CurrentFile(),
		Progress: c.progress,
	}
}
