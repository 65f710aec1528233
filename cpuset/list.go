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
	"errors"
	"strconv"
	"strings"

	"github.com/thediveo/faf"
)

// List is a list of CPU [from...to] ranges. CPU numbers are starting from zero.
type List [][2]uint

// String returns the CPU list in textual format, with the individual ranges
// “x-y” separated by “,” and single CPU ranges collapsed into “x” (instead of
// “x-x”).
func (l List) String() string {
	var b strings.Builder
	for idx, cpurange := range l {
		if idx > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(cpurange[0]), 10))
		if cpurange[0] != cpurange[1] {
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(uint64(cpurange[1]), 10))
		}
	}
	return b.String()
}

// NewList returns a new CPU List for the given textual list format, such as
// “0-3,8”. If the text is malformed then an error is returned instead.
func NewList(b []byte) (List, error) {
	bs := faf.NewBytestring(b)
	l := List{}
	for !bs.EOL() {
		from, ok := bs.Uint64()
		if !ok {
			return nil, errors.New("expected unsigned integer number")
		}
		to := from
		if bs.EOL() {
			return append(l, [2]uint{uint(from), uint(to)}), nil
		}
		ch, _ := bs.Next()
		if ch == '-' {
			if to, ok = bs.Uint64(); !ok {
				return nil, errors.New("expected unsigned integer number")
			}
			if to < from {
				return nil, errors.New("invalid descending range")
			}
			l = append(l, [2]uint{uint(from), uint(to)})
			if bs.EOL() {
				return l, nil
			}
			if ch, _ = bs.Next(); ch != ',' {
				return nil, errors.New("expected ','")
			}
			continue
		}
		if ch != ',' {
			return nil, errors.New("expected '-' or ','")
		}
		l = append(l, [2]uint{uint(from), uint(to)})
	}
	return l, nil
}

// Set returns the CPU Set corresponding with this list. The list doesn't need
// to be in canonical form: its ranges may come in any order and may overlap.
func (l List) Set() Set {
	if len(l) == 0 {
		return Set{}
	}
	highest := uint(0)
	for _, r := range l {
		highest = max(highest, r[1])
	}
	s := New(highest + 1)
	for _, r := range l {
		s = s.AddRange(r[0], r[1])
	}
	return s
}

// Count returns the number of CPUs in this list, assuming canonical form
// without overlapping ranges.
func (l List) Count() int {
	n := 0
	for _, r := range l {
		n += int(r[1]-r[0]) + 1
	}
	return n
}

// Remove the lowest CPU from the specified List, returning the CPU number
// together with a new List of remaining CPUs. Remove panics when the List is
// empty.
func (l List) Remove() (cpu uint, remaining List) {
	if len(l) == 0 {
		panic("cannot remove from empty List")
	}
	lowest := l[0]
	if lowest[0] < lowest[1] {
		return lowest[0], append(List{{lowest[0] + 1, lowest[1]}}, l[1:]...)
	}
	return lowest[0], append(List{}, l[1:]...)
}

// MarshalText returns the textual list format.
func (l List) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses the textual list format.
func (l *List) UnmarshalText(text []byte) error {
	nl, err := NewList(text)
	if err != nil {
		return err
	}
	*l = nl
	return nil
}
