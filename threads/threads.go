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

// Package threads maps a pthread-like threading API onto a core pool: each
// thread occupies a core of its own for its whole lifetime, and mutexes and
// condition variables spin instead of blocking.
//
// This is the surface parallel numeric code expects from its platform when it
// creates worker threads, joins them, and coordinates them using mutexes and
// condition variables.
//
// Unlike pthread_join, [Library.Join] not only waits for the thread to
// return, but also frees the thread's core in the pool. Callers must not free
// a joined thread's core themselves: the core is no longer busy, so freeing it
// again panics with a [corepool.ProtocolViolation].
package threads

import (
	"errors"
	"fmt"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/relax"
	"github.com/thediveo/corepool/spinsync"
)

// ErrAgain is returned by [Library.Create] when there's no free core left for
// another thread, akin to EAGAIN.
var ErrAgain = errors.New("threads: no core available for another thread")

// Thread identifies a thread created by a [Library]; it is the number of the
// core the thread runs on.
type Thread uint

// Library creates threads on the cores of a pool, and synchronization
// primitives spinning with the library's relax policy.
type Library struct {
	pool  *corepool.Pool
	relax relax.Policy
}

// New returns a Library creating its threads on the cores of the specified
// pool, with mutexes and condition variables using the specified relax policy;
// nil selects [relax.Default].
func New(pool *corepool.Pool, policy relax.Policy) *Library {
	return &Library{pool: pool, relax: relax.Or(policy)}
}

// Create starts fn(arg) on a core of its own. If no core is free, Create
// returns an error wrapping both [ErrAgain] and
// [corepool.ErrResourceExhausted].
func (l *Library) Create(fn func(arg any), arg any) (Thread, error) {
	cpu, err := l.pool.Submit(corepool.Bind(fn, arg))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAgain, err)
	}
	return Thread(cpu), nil
}

// Join waits for the thread to return from its function and then hands its
// core back to the pool. Joining a thread twice is a protocol violation of
// the underlying pool, and thus panics.
func (l *Library) Join(t Thread) error {
	l.pool.Join(uint(t))
	l.pool.Free(uint(t))
	return nil
}

// Yield is a no-op, as there is nothing else that could run on a thread's core.
func (l *Library) Yield() {}

// MutexInit returns a new unlocked mutex.
func (l *Library) MutexInit() *spinsync.Mutex {
	return spinsync.NewMutex(l.relax)
}

// MutexLock locks m, spinning as long as necessary.
func (l *Library) MutexLock(m *spinsync.Mutex) error {
	m.Lock()
	return nil
}

// MutexUnlock unlocks m.
func (l *Library) MutexUnlock(m *spinsync.Mutex) error {
	m.Unlock()
	return nil
}

// MutexDestroy returns [spinsync.ErrBusy] if m is still locked.
func (l *Library) MutexDestroy(m *spinsync.Mutex) error {
	return m.Destroy()
}

// CondInit returns a new condition variable.
func (l *Library) CondInit() *spinsync.Cond {
	return spinsync.NewCond(l.relax)
}

// CondWait unlocks m, waits for c to be signalled, and relocks m. Any signal
// wakes all waiters, so callers must re-check their predicate.
func (l *Library) CondWait(c *spinsync.Cond, m *spinsync.Mutex) error {
	c.Wait(m)
	return nil
}

// CondSignal wakes all current waiters of c.
func (l *Library) CondSignal(c *spinsync.Cond) error {
	c.Signal()
	return nil
}

// CondBroadcast wakes all current waiters of c.
func (l *Library) CondBroadcast(c *spinsync.Cond) error {
	c.Broadcast()
	return nil
}

// CondDestroy returns [spinsync.ErrBusy] if c still has waiters.
func (l *Library) CondDestroy(c *spinsync.Cond) error {
	return c.Destroy()
}
