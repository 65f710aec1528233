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

// Join spins until the task dispatched to the specified CPU has returned.
// Everything the task wrote before returning is visible to the caller after
// Join returns.
//
// The CPU must have been returned by [Pool.Submit] before; joining any other
// CPU number returns immediately or spins forever, depending on whatever else
// the CPU gets used for. Join doesn't free the CPU.
func (p *Pool) Join(cpu uint) {
	for p.pending.IsSet(cpu) || p.running.IsSet(cpu) {
		p.relax.Relax()
	}
}

// Running reports whether the specified CPU is currently running a task. It
// never takes the pool lock.
func (p *Pool) Running(cpu uint) bool {
	return p.running.IsSet(cpu)
}
