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

package cpuset

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Atomic is a fixed-size CPU bit vector that can be read and modified
// concurrently without any lock. Each bit is changed with a single atomic
// read-modify-write of its word; Go's atomics are sequentially consistent, so
// a store by one goroutine synchronizes with any later load observing it.
type Atomic struct {
	_     cpu.CacheLinePad
	words []atomic.Uint64
	_     cpu.CacheLinePad
}

// NewAtomic returns an empty atomic CPU bit vector for the CPUs 0 up to
// (excluding) size.
func NewAtomic(size uint) *Atomic {
	return &Atomic{
		words: make([]atomic.Uint64, (size+bitsperword-1)/bitsperword),
	}
}

// Size returns the number of CPUs this vector can hold.
func (a *Atomic) Size() uint {
	return uint(len(a.words)) * bitsperword
}

// Set sets the bit for the specified CPU. It panics if cpu is out of range.
func (a *Atomic) Set(cpu uint) {
	a.words[setBitIndex(cpu)].Or(setBitMask(cpu))
}

// Clear clears the bit for the specified CPU. It panics if cpu is out of range.
func (a *Atomic) Clear(cpu uint) {
	a.words[setBitIndex(cpu)].And(^setBitMask(cpu))
}

// IsSet reports whether the bit for the specified CPU is set. CPUs out of range
// are never set.
func (a *Atomic) IsSet(cpu uint) bool {
	if cpu >= a.Size() {
		return false
	}
	return a.words[setBitIndex(cpu)].Load()&setBitMask(cpu) != 0
}

// Snapshot returns a Set copy of this vector. As each word is read
// individually, the snapshot is only consistent per word.
func (a *Atomic) Snapshot() Set {
	s := make(Set, len(a.words))
	for idx := range a.words {
		s[idx] = a.words[idx].Load()
	}
	return s
}
