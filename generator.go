package foldersim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

const (
	DefaultMinFileSize = 10
	DefaultMaxFileSize = 500
	DefaultMaxFiles    = 1
	DefaultArrival     = time.Second
)

// Producer is the entrypoint a generator feeds.
type Producer interface {
	Submit(files ...int) (uint64, error)
}

// GeneratorOptions bound the synthetic clients.
type GeneratorOptions struct {
	// MinFileSize and MaxFileSize bound each file, in MB, inclusive.
	MinFileSize int
	MaxFileSize int

	// MaxFiles is the largest number of files per client.
	MaxFiles int

	// Interval is the time between arrivals in Run.
	Interval time.Duration

	// Seed makes the sequence reproducible. Zero uses the clock.
	Seed int64

	LogContext context.Context
}

func (o *GeneratorOptions) FillDefaults() {
	if o.MinFileSize <= 0 {
		o.MinFileSize = DefaultMinFileSize
	}
	if o.MaxFileSize < o.MinFileSize {
		o.MaxFileSize = max(DefaultMaxFileSize, o.MinFileSize)
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.Interval <= 0 {
		o.Interval = DefaultArrival
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.LogContext == nil {
		o.LogContext = context.Background()
	}
}

// Generator produces random clients.
type Generator struct {
	p    Producer
	opts GeneratorOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator feeding p.
func NewGenerator(p Producer, opts GeneratorOptions) *Generator {
	opts.FillDefaults()
	return &Generator{
		p:    p,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Files draws the file list of one synthetic client.
func (g *Generator) Files() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 1 + g.rng.Intn(g.opts.MaxFiles)
	span := g.opts.MaxFileSize - g.opts.MinFileSize + 1
	files := make([]int, n)
	for i := range files {
		files[i] = g.opts.MinFileSize + g.rng.Intn(span)
	}
	return files
}

// Emit submits one random client.
func (g *Generator) Emit() (uint64, error) {
	return g.p.Submit(g.Files()...)
}

// Run submits a client every Interval until ctx is done.
func (g *Generator) Run(ctx context.Context) {
	logger := lg.FromContext(g.opts.LogContext)
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := g.Emit(); err != nil {
			logger.Warn("generator submit failed", lg.Any("error", err))
		}
	}
}
