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

package spinsync

import (
	"sync/atomic"

	"github.com/thediveo/corepool/relax"
)

// Cond is a condition variable consisting of a waiter count and a generation
// counter. Waiters spin until the generation moves on; Cond doesn't remember
// which Mutex it is used with.
//
// There is no way to wake exactly one waiter: every wake-up releases all
// current waiters. The zero value is a Cond without waiters, using
// [relax.Default].
type Cond struct {
	waiters    atomic.Int32
	generation atomic.Uint32
	relax      relax.Policy
}

// NewCond returns a new Cond that uses the specified relax policy while
// waiting; nil selects [relax.Default].
func NewCond(policy relax.Policy) *Cond {
	return &Cond{relax: policy}
}

// Wait atomically registers the caller as a waiter and unlocks m, then spins
// until woken, and finally locks m again before returning. The caller must
// hold m.
func (c *Cond) Wait(m *Mutex) {
	c.waiters.Add(1)
	gen := c.generation.Load()
	m.Unlock()
	p := relax.Or(c.relax)
	for c.generation.Load() == gen {
		p.Relax()
	}
	c.waiters.Add(-1)
	m.Lock()
}

// Signal wakes all current waiters, exactly like [Cond.Broadcast].
func (c *Cond) Signal() {
	c.wake()
}

// Broadcast wakes all current waiters. Without any waiters it doesn't do
// anything, so future waiters won't see a past wake-up.
func (c *Cond) Broadcast() {
	c.wake()
}

func (c *Cond) wake() {
	if c.waiters.Load() == 0 {
		return
	}
	c.generation.Add(1)
}

// Waiters returns the number of go routines currently waiting.
func (c *Cond) Waiters() int {
	return int(c.waiters.Load())
}

// Generation returns the current wake-up generation.
func (c *Cond) Generation() uint32 {
	return c.generation.Load()
}

// Destroy checks that there are no waiters anymore; it returns [ErrBusy]
// otherwise.
func (c *Cond) Destroy() error {
	if c.Waiters() != 0 {
		return ErrBusy
	}
	return nil
}
