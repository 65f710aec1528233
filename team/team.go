// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package team runs parallel-for loops on a team of worker threads, the way
// parallel numeric code splits its kernels across its worker threads.
//
// The workers occupy their cores for the lifetime of the team, waiting for
// chunks of work on a condition variable. The caller of a parallel-for joins
// in draining the chunks, so a team without any workers still gets all work
// done.
package team

import (
	"errors"

	"github.com/eapache/queue"

	"github.com/thediveo/corepool/spinsync"
	"github.com/thediveo/corepool/threads"
)

// Team is a set of worker threads executing chunks of parallel-for loops.
type Team struct {
	lib     *threads.Library
	mu      *spinsync.Mutex
	work    *spinsync.Cond // chunks queued or stopping
	done    *spinsync.Cond // pending dropped to zero
	chunks  *queue.Queue
	pending int // queued plus currently executing chunks
	stop    bool
	workers []threads.Thread
}

type chunk struct {
	fn     func(lo, hi int)
	lo, hi int
}

// New returns a Team with up to n worker threads. If the library runs out of
// cores, the team makes do with fewer workers, down to none at all.
func New(lib *threads.Library, n int) (*Team, error) {
	if n < 0 {
		return nil, errors.New("team: negative number of workers")
	}
	t := &Team{
		lib:    lib,
		mu:     lib.MutexInit(),
		work:   lib.CondInit(),
		done:   lib.CondInit(),
		chunks: queue.New(),
	}
	for range n {
		w, err := lib.Create(t.worker, nil)
		if err != nil {
			break
		}
		t.workers = append(t.workers, w)
	}
	return t, nil
}

// Workers returns the number of worker threads, not counting the caller
// of a parallel-for.
func (t *Team) Workers() int {
	return len(t.workers)
}

func (t *Team) worker(any) {
	t.mu.Lock()
	for {
		for t.chunks.Length() == 0 && !t.stop {
			t.work.Wait(t.mu)
		}
		if t.chunks.Length() == 0 {
			t.mu.Unlock()
			return
		}
		t.runOne()
	}
}

// runOne dequeues and executes a single chunk, with the team lock being
// released while the chunk executes. The caller must hold the team lock and
// there must be a queued chunk.
func (t *Team) runOne() {
	c := t.chunks.Remove().(chunk)
	t.mu.Unlock()
	c.fn(c.lo, c.hi)
	t.mu.Lock()
	t.pending--
	if t.pending == 0 {
		t.done.Broadcast()
	}
}

// ParallelFor calls fn for consecutive, non-overlapping [lo, hi) chunks of at
// most grain iterations that together cover [0, n), and returns after all
// chunks have been executed. A grain of zero or less picks a grain giving each
// thread a few chunks.
func (t *Team) ParallelFor(n, grain int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if grain <= 0 {
		grain = max(1, n/(4*(len(t.workers)+1)))
	}
	t.mu.Lock()
	for lo := 0; lo < n; lo += grain {
		t.chunks.Add(chunk{fn: fn, lo: lo, hi: min(lo+grain, n)})
		t.pending++
	}
	t.work.Broadcast()
	for t.chunks.Length() > 0 {
		t.runOne()
	}
	for t.pending > 0 {
		t.done.Wait(t.mu)
	}
	t.mu.Unlock()
}

// Close stops all workers after they've finished their current chunks, and
// returns their cores.
func (t *Team) Close() {
	t.mu.Lock()
	t.stop = true
	t.work.Broadcast()
	t.mu.Unlock()
	for _, w := range t.workers {
		_ = t.lib.Join(w)
	}
	t.workers = nil
}
