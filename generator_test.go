package foldersim

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

type captureProducer struct {
	mu    sync.Mutex
	calls [][]int
}

func (p *captureProducer) Submit(files ...int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, files)
	return uint64(len(p.calls)), nil
}

func (p *captureProducer) n() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestGeneratorBounds(t *testing.T) {
	g := NewGenerator(&captureProducer{}, GeneratorOptions{MinFileSize: 10, MaxFileSize: 20, MaxFiles: 3, Seed: 42})
	for range 500 {
		files := g.Files()
		if len(files) < 1 || len(files) > 3 {
			t.Fatalf("file count %d out of [1,3]", len(files))
		}
		for _, f := range files {
			if f < 10 || f > 20 {
				t.Fatalf("size %d out of [10,20]", f)
			}
		}
		if err := ValidateFiles(files); err != nil {
			t.Fatalf("generator produced invalid input: %v", err)
		}
	}
}

func TestGeneratorDefaults(t *testing.T) {
	var o GeneratorOptions
	o.FillDefaults()
	if o.MinFileSize != 10 || o.MaxFileSize != 500 || o.MaxFiles != 1 {
		t.Fatalf("defaults = %+v", o)
	}
}

func TestGeneratorSeedIsReproducible(t *testing.T) {
	a := NewGenerator(&captureProducer{}, GeneratorOptions{MaxFiles: 4, Seed: 7})
	b := NewGenerator(&captureProducer{}, GeneratorOptions{MaxFiles: 4, Seed: 7})
	for range 20 {
		if fa, fb := a.Files(), b.Files(); !slices.Equal(fa, fb) {
			t.Fatalf("same seed diverged: %v vs %v", fa, fb)
		}
	}
}

func TestGeneratorRunFeedsSimulation(t *testing.T) {
	s, _ := newTestSim(t, newTestOptions(2))
	g := NewGenerator(s, GeneratorOptions{MinFileSize: 250, MaxFileSize: 500, Interval: 2 * time.Millisecond, Seed: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()

	waitUntil(t, 2*time.Second, func() bool { return s.Metrics().Enqueued >= 3 })
	cancel()
	<-done
}

func TestGeneratorEmit(t *testing.T) {
	p := &captureProducer{}
	g := NewGenerator(p, GeneratorOptions{Seed: 3})
	if _, err := g.Emit(); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if p.n() != 1 {
		t.Fatalf("submits = %d; want 1", p.n())
	}
}
