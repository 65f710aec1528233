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
	"fmt"
	"math/bits"
	"slices"
	"unsafe"
)

// Set is a CPU bit string, with CPU #0 in the least significant bit of the
// first word. The same layout is used by the Linux kernel for CPU affinity
// masks, see [sched_getaffinity(2)].
//
// A nil or empty Set is a valid, empty CPU set.
//
// [sched_getaffinity(2)]: https://man7.org/linux/man-pages/man2/sched_getaffinity.2.html
type Set []uint64

var wordbytesize = uint64(unsafe.Sizeof(Set{0}[0]))
var bitsperword = uint(wordbytesize * 8)

func setBitIndex(cpu uint) int {
	return int(cpu / bitsperword)
}

func setBitMask(cpu uint) uint64 {
	return uint64(1) << (cpu % bitsperword)
}

// New returns an empty Set with enough room to hold the CPUs 0 up to
// (excluding) size without needing to grow.
func New(size uint) Set {
	return make(Set, (size+bitsperword-1)/bitsperword)
}

// IsSet reports whether cpu is in this CPU set.
func (s Set) IsSet(cpu uint) bool {
	if cpu >= uint(len(s))*bitsperword {
		return false
	}
	return s[setBitIndex(cpu)]&setBitMask(cpu) != 0
}

// Add adds the specified CPU, returning an updated Set. This updated Set may
// or may not be the original Set.
func (s Set) Add(cpu uint) Set {
	return s.AddRange(cpu, cpu)
}

// AddRange adds the CPUs from the specified range, returning an updated Set.
// This updated Set may or may not be the original Set. AddRange panics if from
// is larger than to.
func (s Set) AddRange(from, to uint) Set {
	if from > to {
		panic(fmt.Sprintf("invalid range %d-%d", from, to))
	}
	if need := setBitIndex(to) + 1; need > len(s) {
		s = append(s, make(Set, need-len(s))...)
	}
	for cpu := from; cpu <= to; cpu++ {
		s[setBitIndex(cpu)] |= setBitMask(cpu)
	}
	return s
}

// Remove removes the specified CPU in place. Removing a CPU that isn't in the
// set is a no-op.
func (s Set) Remove(cpu uint) {
	if cpu >= uint(len(s))*bitsperword {
		return
	}
	s[setBitIndex(cpu)] &^= setBitMask(cpu)
}

// First returns the lowest-numbered CPU in this set, and true. If the set is
// empty, it returns false.
func (s Set) First() (uint, bool) {
	for idx, word := range s {
		if word != 0 {
			return uint(idx)*bitsperword + uint(bits.TrailingZeros64(word)), true
		}
	}
	return 0, false
}

// Single returns the only CPU in this set, and true. Otherwise, if the set is
// empty or contains more than a single CPU, it returns false.
func (s Set) Single() (uint, bool) {
	if s.Count() != 1 {
		return 0, false
	}
	return s.First()
}

// Count returns the number of CPUs in this set.
func (s Set) Count() int {
	n := 0
	for _, word := range s {
		n += bits.OnesCount64(word)
	}
	return n
}

// Clone returns an independent copy of this set.
func (s Set) Clone() Set {
	return slices.Clone(s)
}

// IsOverlapping returns true if this set and another set have at least one CPU
// in common.
func (s Set) IsOverlapping(another Set) bool {
	for idx := range min(len(s), len(another)) {
		if s[idx]&another[idx] != 0 {
			return true
		}
	}
	return false
}

// Overlap returns a new set with only the CPUs both in this set and another set.
func (s Set) Overlap(another Set) Set {
	overlap := make(Set, min(len(s), len(another)))
	for idx := range overlap {
		overlap[idx] = s[idx] & another[idx]
	}
	return overlap
}

// String returns the CPUs in this set in textual list format. In list format,
// individual CPU ranges “x-y” are separated by “,”, and single CPU ranges
// collapsed into “x”.
func (s Set) String() string {
	return s.List().String()
}

// List returns the list of CPU ranges corresponding with this CPU Set.
//
// Instead of testing CPU by CPU, List skips over runs of zeros and ones using
// the trailing zeros count of the (possibly inverted) current word.
func (s Set) List() List {
	cpulist := List{}
	setlen := uint(len(s)) * bitsperword
	cpu := uint(0)
	for cpu < setlen {
		// skip the run of unset CPUs.
		word := s[setBitIndex(cpu)] >> (cpu % bitsperword)
		if word == 0 {
			cpu = (cpu/bitsperword + 1) * bitsperword
			continue
		}
		cpu += uint(bits.TrailingZeros64(word))
		from := cpu
		// find the end of the run of set CPUs, which might span several
		// words.
		for cpu < setlen {
			word = ^s[setBitIndex(cpu)] >> (cpu % bitsperword)
			if word == 0 {
				cpu = (cpu/bitsperword + 1) * bitsperword
				continue
			}
			cpu += uint(bits.TrailingZeros64(word))
			break
		}
		cpulist = append(cpulist, [2]uint{from, cpu - 1})
	}
	return cpulist
}
