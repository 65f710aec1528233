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

// Package machine emulates a set of processor cores with interrupt lines on a
// hosted operating system.
//
// Each core is a go routine locked to its own OS thread, which can optionally
// be pinned to the CPU with the same number. A core spends its life either
// waiting for an interrupt or running the chain of interrupt handlers; the
// handlers run on the core itself and may well never return, occupying the
// core for good.
package machine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/cpuset"
)

// Handler is an interrupt consumer; it is called on the interrupted core with
// the core's own CPU number.
type Handler func(self uint)

// Machine is a set of emulated cores.
type Machine struct {
	cpus     cpuset.List
	cores    map[uint]*core
	handlers []Handler
	pin      bool
	log      logr.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

type core struct {
	id       uint
	irq      chan struct{} // pending interrupt, coalescing
	features []string
}

// Option configures a Machine when creating it using [New].
type Option func(*Machine)

// WithPinning pins each core's OS thread to the CPU with the core's number.
func WithPinning(pin bool) Option {
	return func(m *Machine) {
		m.pin = pin
	}
}

// WithLogger sets the logger for core bring-up and interrupt delivery
// problems.
func WithLogger(log logr.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// New returns a new Machine with a core for each of the specified CPUs. The
// cores don't run until [Machine.Start] is called.
func New(cpus cpuset.List, opts ...Option) (*Machine, error) {
	set := cpus.Set()
	if set.Count() == 0 {
		return nil, errors.New("machine: no cores")
	}
	list := set.List()
	if last := list[len(list)-1][1]; last >= corepool.MaxCPUs {
		return nil, fmt.Errorf("machine: CPU %d exceeds maximum %d", last, corepool.MaxCPUs-1)
	}
	m := &Machine{
		cpus:  list,
		cores: map[uint]*core{},
		log:   logr.Discard(),
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pin {
		if err := m.checkPinnable(set); err != nil {
			return nil, err
		}
	}
	for _, r := range m.cpus {
		for id := r[0]; id <= r[1]; id++ {
			m.cores[id] = &core{id: id, irq: make(chan struct{}, 1)}
		}
	}
	return m, nil
}

// checkPinnable fails when none of the cores can be pinned as this process
// isn't allowed to run on any of their CPUs. Cores on CPUs outside the
// process affinities are only logged, as they will still work unpinned.
func (m *Machine) checkPinnable(cores cpuset.Set) error {
	allowed, err := cpuset.Affinity(os.Getpid())
	if err != nil {
		if errors.Is(err, cpuset.ErrNotSupported) {
			m.log.Info("cannot pin cores on this platform")
			return nil
		}
		return fmt.Errorf("machine: cannot determine CPU affinities: %w", err)
	}
	if !cores.IsOverlapping(allowed) {
		return fmt.Errorf("machine: cannot pin any of the cores %s, allowed CPUs are %s",
			cores, allowed)
	}
	pinnable := cores.Overlap(allowed)
	if pinnable.Count() < cores.Count() {
		unpinnable := cores.Clone()
		for idx := range pinnable {
			unpinnable[idx] &^= pinnable[idx]
		}
		m.log.Info("cores will run unpinned", "cpus", unpinnable.List(), "allowed", allowed.List())
	}
	return nil
}

// CPUs returns the CPU numbers of the cores of this Machine.
func (m *Machine) CPUs() cpuset.List {
	return m.cpus
}

// Handle appends an interrupt handler to the chain of handlers called on each
// interrupt. Handlers can only be added before the Machine starts.
func (m *Machine) Handle(h Handler) {
	if m.started.Load() {
		panic("machine: adding interrupt handler after start")
	}
	m.handlers = append(m.handlers, h)
}

// Start brings up all cores, running bringup on each core itself, and then
// lets the cores wait for interrupts. Start returns after all cores have
// finished their bring-up.
func (m *Machine) Start(bringup func(self uint)) {
	if !m.started.CompareAndSwap(false, true) {
		panic("machine: already started")
	}
	var up sync.WaitGroup
	for _, c := range m.cores {
		up.Add(1)
		m.wg.Add(1)
		go m.run(c, bringup, &up)
	}
	up.Wait()
}

func (m *Machine) run(c *core, bringup func(uint), up *sync.WaitGroup) {
	defer m.wg.Done()
	// The thread stays locked: if it has been pinned, it is tainted and gets
	// thrown away when the core stops.
	runtime.LockOSThread()
	if m.pin {
		if err := cpuset.Pin(c.id); err != nil {
			m.log.Error(err, "cannot pin core", "cpu", c.id)
		}
	}
	c.features = vectorFeatures()
	m.log.V(1).Info("core up", "cpu", c.id, "vector", c.features)
	if bringup != nil {
		bringup(c.id)
	}
	up.Done()

	for {
		select {
		case <-m.stop:
			return
		case <-c.irq:
			for _, h := range m.handlers {
				h(c.id)
			}
		}
	}
}

// Interrupt delivers an interrupt to the core with the specified CPU number,
// without blocking. An interrupt arriving while another one is still pending
// merges with the pending one. Interrupts to unknown CPUs are dropped.
func (m *Machine) Interrupt(cpu uint) {
	c, ok := m.cores[cpu]
	if !ok {
		m.log.Info("dropping interrupt to unknown CPU", "cpu", cpu)
		return
	}
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

// Features returns the vector unit features detected during bring-up of the
// specified core, or nil if the core isn't up.
func (m *Machine) Features(cpu uint) []string {
	c, ok := m.cores[cpu]
	if !ok {
		return nil
	}
	return c.features
}

// Shutdown stops all cores once they've finished their current interrupt
// handling and waits for them to stop, or until the context is done. A core
// busy with a handler that never returns never stops.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	stopped := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
