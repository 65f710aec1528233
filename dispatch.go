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

// Interrupter delivers an inter-processor interrupt to the specified CPU. It
// must not block, and must not wait for the interrupt to be handled.
type Interrupter interface {
	Interrupt(cpu uint)
}

// InterrupterFunc adapts an ordinary function to an Interrupter.
type InterrupterFunc func(cpu uint)

// Interrupt calls f(cpu).
func (f InterrupterFunc) Interrupt(cpu uint) { f(cpu) }

// Submit allocates a free CPU, assigns it the task and interrupts it so that
// it runs the task. It returns the CPU number as the handle to [Pool.Join] and
// [Pool.Free] the CPU later. If there's no free CPU, Submit returns
// [ErrResourceExhausted] without any side effects.
//
// Submit doesn't wait for the task to start, let alone to finish.
func (p *Pool) Submit(task Task) (uint, error) {
	if task == nil {
		panic("corepool: nil Task")
	}
	p.mu.Lock()
	cpu, ok := p.allocate()
	if !ok {
		p.mu.Unlock()
		return 0, ErrResourceExhausted
	}
	p.slots[cpu].task = task
	p.pending.Set(cpu)
	p.mu.Unlock()

	p.log.V(1).Info("dispatching task", "cpu", cpu)
	p.ipi.Interrupt(cpu)
	return cpu, nil
}

// Go submits fn as a task; see [Pool.Submit].
func (p *Pool) Go(fn func()) (uint, error) {
	return p.Submit(TaskFunc(fn))
}
