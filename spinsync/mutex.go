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
	"sync"
	"sync/atomic"

	"github.com/thediveo/corepool/relax"
)

const (
	unlocked uint32 = iota
	locked
)

// Mutex is a spinlock. There is no owner tracking, no recursion, and no
// fairness. The zero value is an unlocked Mutex using [relax.Default].
type Mutex struct {
	state atomic.Uint32
	relax relax.Policy
}

var _ sync.Locker = (*Mutex)(nil)

// NewMutex returns a new unlocked Mutex that uses the specified relax policy
// while spinning; nil selects [relax.Default].
func NewMutex(policy relax.Policy) *Mutex {
	return &Mutex{relax: policy}
}

// Lock spins until it acquires the lock.
func (m *Mutex) Lock() {
	for !m.state.CompareAndSwap(unlocked, locked) {
		p := relax.Or(m.relax)
		for m.state.Load() != unlocked {
			p.Relax()
		}
	}
}

// TryLock acquires the lock if it is currently unlocked and reports whether it
// did so.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(unlocked, locked)
}

// Unlock releases the lock. Unlocking an unlocked Mutex is a fatal error.
func (m *Mutex) Unlock() {
	if !m.state.CompareAndSwap(locked, unlocked) {
		panic("spinsync: unlock of unlocked mutex")
	}
}

// Locked reports whether the Mutex is currently locked.
func (m *Mutex) Locked() bool {
	return m.state.Load() == locked
}

// Destroy checks that the Mutex isn't locked anymore; it returns [ErrBusy]
// otherwise. There's nothing to release.
func (m *Mutex) Destroy() error {
	if m.Locked() {
		return ErrBusy
	}
	return nil
}
