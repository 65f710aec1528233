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

// Package relax provides the backoff policies used by spin loops while they
// wait for shared memory to change.
//
// There is no scheduler below the spin loops: a spinning core keeps burning
// its cycles until the condition it polls for becomes true. A [Policy] only
// decides what a spin loop does between two polls, it never changes what the
// loop is waiting for.
package relax

import (
	"fmt"
	"runtime"
	"strings"
)

// Policy is a backoff strategy executed once per spin loop iteration.
type Policy interface {
	Relax()
}

// PolicyFunc adapts an ordinary function to a Policy.
type PolicyFunc func()

// Relax calls f().
func (f PolicyFunc) Relax() { f() }

type pause struct{}

func (pause) Relax()         { cpuRelax() }
func (pause) String() string { return "pause" }

type yield struct{}

func (yield) Relax()         { runtime.Gosched() }
func (yield) String() string { return "yield" }

type spin struct{}

func (spin) Relax()         {}
func (spin) String() string { return "spin" }

var (
	// Pause emits the processor's spin-wait hint (PAUSE on amd64, YIELD on
	// arm64) and does nothing on other architectures.
	Pause Policy = pause{}
	// Yield cooperatively hands the processor to other go routines. Use it
	// where more spinning go routines than OS threads might exist, such as in
	// tests.
	Yield Policy = yield{}
	// Spin polls without any backoff at all.
	Spin Policy = spin{}
)

// Default is the Policy used by spin loops that haven't been given any.
var Default = Pause

// Or returns p, unless it is nil in which case it returns Default.
func Or(p Policy) Policy {
	if p == nil {
		return Default
	}
	return p
}

// Parse returns the Policy for the name “pause”, “yield”, or “spin”.
func Parse(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pause":
		return Pause, nil
	case "yield":
		return Yield, nil
	case "spin":
		return Spin, nil
	}
	return nil, fmt.Errorf("unknown relax policy %q", name)
}
