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

package corepool

import "fmt"

// Trampoline is the interrupt handler of the pool, to be called by the core
// self on each interrupt it receives. Interrupts on cores not owned by this
// pool, as well as interrupts without a dispatched task, are left alone, as
// they're meant for other consumers sharing the same interrupt vector.
//
// Otherwise, Trampoline takes the dispatched task and runs it, marking the
// core as running until the task returns. After the task has returned, the
// core stays busy until it gets freed using [Pool.Free].
func (p *Pool) Trampoline(self uint) {
	p.mu.Lock()
	if !p.owned.IsSet(self) {
		p.mu.Unlock()
		return
	}
	task := p.slots[self].task
	p.slots[self].task = nil
	p.mu.Unlock()
	if task == nil {
		return
	}

	// set running before clearing pending, so that joiners never see a gap.
	p.running.Set(self)
	p.pending.Clear(self)
	p.log.V(1).Info("running task", "cpu", self)
	p.run(self, task)
	p.running.Clear(self)
	p.log.V(1).Info("task returned", "cpu", self)
}

// run runs the task on behalf of the core self. A panicking task takes down
// the whole program, the same as an unhandled fault inside an interrupt
// handler would halt the machine; it gets logged on its way out.
func (p *Pool) run(self uint, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(fmt.Errorf("task panicked: %v", r), "fatal task failure", "cpu", self)
			panic(r)
		}
	}()
	task.Run()
}
