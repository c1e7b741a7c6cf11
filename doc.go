// Package foldersim simulates a bounded-concurrency file-processing
// pipeline.
//
// Clients arrive with one or more files. They wait in a ranked queue and
// are served by a fixed number of folders, each processing one client's
// front file at a time.
//
// Architecture overview
//
// The simulation is composed of four loosely coupled layers:
//
//   1. Ranking (RankedQueue, Calculator)
//      Pending clients live in an indexed max-heap ordered by priority,
//      then arrival time, then id. A Calculator scores a client from the
//      queue length and the time it has been waiting.
//
//   2. Execution (folders)
//      Each folder holds one slot permit while it pops a client and ticks
//      its front file to completion. A client with more files is scored
//      again and requeued; a client with none left is retired.
//
//   3. Aging (refresher)
//      A periodic loop re-scores every queued client so long waits raise
//      priority and no client starves.
//
//   4. Lifecycle and events (Simulation)
//      Start, Stop and Enqueue drive the run. Every change to a client or
//      folder is emitted as an Event to registered observers through a
//      bounded, non-blocking bus.
//
// Ownership
//
// A client is owned either by the queue or by exactly one folder.
// PopHighest moves it out of the queue; Enqueue moves it back. The owner
// is the only writer of the client's fields, except that the queue
// rewrites priority of queued clients under its own lock. Observers only
// ever receive ClientState copies.
//
// Scoring
//
// The default LogAging policy scores a client as
//
//	log_q(wait) + q/size
//
// where q is the queue length, wait the seconds since arrival and size
// the front file in MB, each floored at 1. With q == 1 the log part is 0.
//
// Cancellation
//
// Stop cancels a shared context. Folders notice it at the next tick or
// idle wake-up and exit; a client interrupted mid-file keeps its
// progress and resumes on the next Start.
package foldersim
