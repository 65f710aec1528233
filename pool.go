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

import (
	"github.com/go-logr/logr"

	"github.com/thediveo/corepool/cpuset"
	"github.com/thediveo/corepool/relax"
	"github.com/thediveo/corepool/spinsync"
)

// MaxCPUs is the number of CPU slots of a Pool; CPU numbers must be lower.
const MaxCPUs = 256

// Pool is a registry of cores with a dispatcher and completion tracking. All
// slot and free-set mutations are serialized by a single spinlock, which is
// never held while a task runs. The pending and running bit vectors are
// polled without taking that lock.
type Pool struct {
	mu    *spinsync.Mutex
	owned cpuset.Set
	free  cpuset.Set
	slots [MaxCPUs]slot

	pending *cpuset.Atomic // dispatched, but task not yet picked up
	running *cpuset.Atomic // task picked up and not returned yet

	ipi   Interrupter
	relax relax.Policy
	log   logr.Logger
}

type slot struct {
	task Task
}

// Option configures a Pool when creating it using [New].
type Option func(*Pool)

// WithLogger sets the logger the pool logs to; without it, the pool stays
// silent. Dispatch traces are logged at V(1).
func WithLogger(log logr.Logger) Option {
	return func(p *Pool) {
		p.log = log
	}
}

// WithRelax sets the relax policy used while spinning on the pool lock and in
// [Pool.Join].
func WithRelax(policy relax.Policy) Option {
	return func(p *Pool) {
		p.relax = policy
	}
}

// New returns a new Pool without any cores, sending its dispatch interrupts
// via ipi.
func New(ipi Interrupter, opts ...Option) *Pool {
	if ipi == nil {
		panic("corepool: nil Interrupter")
	}
	p := &Pool{
		owned:   cpuset.New(MaxCPUs),
		free:    cpuset.New(MaxCPUs),
		pending: cpuset.NewAtomic(MaxCPUs),
		running: cpuset.NewAtomic(MaxCPUs),
		ipi:     ipi,
		relax:   relax.Default,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.relax = relax.Or(p.relax)
	p.mu = spinsync.NewMutex(p.relax)
	return p
}

// violation logs and then panics with a *ProtocolViolation. The caller must
// not hold the pool lock.
func (p *Pool) violation(cpu uint, reason string) {
	v := &ProtocolViolation{CPU: cpu, Reason: reason}
	p.log.Error(ErrProtocolViolation, reason, "cpu", cpu)
	panic(v)
}

// Add registers the specified CPU as owned by this pool and free. Add is
// meant to be called once per core during bring-up; adding a CPU twice or a
// CPU number of [MaxCPUs] or above is a protocol violation.
func (p *Pool) Add(cpu uint) {
	if cpu >= MaxCPUs {
		p.violation(cpu, "CPU number out of range")
	}
	p.mu.Lock()
	if p.owned.IsSet(cpu) {
		p.mu.Unlock()
		p.violation(cpu, "CPU already added")
	}
	p.slots[cpu].task = nil
	p.owned = p.owned.Add(cpu)
	p.free = p.free.Add(cpu)
	p.mu.Unlock()
	p.log.V(1).Info("added CPU", "cpu", cpu)
}

// Allocate marks the lowest-numbered free CPU as busy and returns it, together
// with true. If all owned CPUs are busy, it returns false. Allocate never
// waits for a CPU to become free.
func (p *Pool) Allocate() (uint, bool) {
	p.mu.Lock()
	cpu, ok := p.allocate()
	p.mu.Unlock()
	if ok {
		p.log.V(1).Info("allocated CPU", "cpu", cpu)
	}
	return cpu, ok
}

// allocate does the first-fit search for a free CPU; the caller must hold the
// pool lock.
func (p *Pool) allocate() (uint, bool) {
	cpu, ok := p.free.First()
	if !ok {
		return 0, false
	}
	p.free.Remove(cpu)
	return cpu, true
}

// Free returns the specified busy CPU to the pool, forgetting any task it
// hasn't picked up yet. Freeing a CPU not owned by the pool or not busy is a
// protocol violation.
//
// Free doesn't stop a task that is still running on the CPU: there is no way
// to cancel a task.
func (p *Pool) Free(cpu uint) {
	p.mu.Lock()
	switch {
	case !p.owned.IsSet(cpu):
		p.mu.Unlock()
		p.violation(cpu, "freeing CPU not owned by pool")
	case p.free.IsSet(cpu):
		p.mu.Unlock()
		p.violation(cpu, "freeing CPU that is already free")
	}
	p.slots[cpu].task = nil
	p.pending.Clear(cpu)
	p.free = p.free.Add(cpu)
	p.mu.Unlock()
	p.log.V(1).Info("freed CPU", "cpu", cpu)
}

// Owned reports whether the specified CPU belongs to this pool.
func (p *Pool) Owned(cpu uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owned.IsSet(cpu)
}

// Stats is a point-in-time view of a Pool's CPUs.
type Stats struct {
	Owned   cpuset.List `json:"owned"`
	Free    cpuset.List `json:"free"`
	Busy    cpuset.List `json:"busy"`
	Running cpuset.List `json:"running"`
}

// Stats returns the owned, free, busy and running CPUs of this pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	owned := p.owned.Clone()
	free := p.free.Clone()
	p.mu.Unlock()
	busy := owned.Clone()
	for idx := range busy {
		busy[idx] &^= free[idx]
	}
	return Stats{
		Owned:   owned.List(),
		Free:    free.List(),
		Busy:    busy.List(),
		Running: p.running.Snapshot().List(),
	}
}
