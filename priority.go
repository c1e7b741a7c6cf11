package foldersim

import (
	"math"
	"time"
)

// PriorityEpsilon is the smallest priority movement reported to observers.
const PriorityEpsilon = 0.01

// Calculator ranks a client against the current contention level.
//
// Implementations must be pure: RankedQueue calls Score while holding its
// lock.
type Calculator interface {
	Score(c *Client, queueLength int, now time.Time) float64
}

// CalculatorFunc adapts a plain function to Calculator.
type CalculatorFunc func(c *Client, queueLength int, now time.Time) float64

func (f CalculatorFunc) Score(c *Client, queueLength int, now time.Time) float64 {
	return f(c, queueLength, now)
}

// LogAging is the default ranking policy.
//
// The score is log_q(wait) + q/size where q is the queue length (floored at
// 1), wait is the time since arrival in seconds (floored at 1) and size is
// the front file in MB (floored at 1). With q == 1 the log part is 0.
// Waiting raises the score, small files raise it, and both terms grow with
// contention.
type LogAging struct{}

func (LogAging) Score(c *Client, queueLength int, now time.Time) float64 {
	return Score(queueLength, now.Sub(c.arrival), c.CurrentFile())
}

// Score evaluates the LogAging formula from raw inputs.
func Score(queueLength int, wait time.Duration, fileSize int) float64 {
	q := float64(max(queueLength, 1))
	waitSec := math.Max(wait.Seconds(), 1)
	size := float64(max(fileSize, 1))

	var logPart float64
	if q > 1 {
		logPart = math.Log(waitSec) / math.Log(q)
	}
	return logPart + q/size
}

// priorityMoved reports whether a change is large enough to notify.
func priorityMoved(before, after float64) bool {
	return math.Abs(after-before) > PriorityEpsilon
}
