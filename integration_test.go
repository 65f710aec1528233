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

package corepool_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/cpuset"
	"github.com/thediveo/corepool/machine"
	"github.com/thediveo/corepool/relax"
)

var _ = Describe("pool on an emulated machine", func() {

	var m *machine.Machine
	var p *corepool.Pool
	var others atomic.Int32

	BeforeEach(func() {
		m = Successful(machine.New(cpuset.List{{0, 3}}, machine.WithLogger(GinkgoLogr)))
		p = corepool.New(m, corepool.WithRelax(relax.Yield), corepool.WithLogger(GinkgoLogr))
		others.Store(0)
		m.Handle(p.Trampoline)
		m.Handle(func(uint) { others.Add(1) })
		m.Start(p.Add)
		DeferCleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(m.Shutdown(ctx)).To(Succeed())
		})
	})

	It("registers all cores during bring-up", func() {
		Expect(p.Stats().Owned).To(Equal(cpuset.List{{0, 3}}))
		Expect(p.Stats().Free).To(Equal(cpuset.List{{0, 3}}))
	})

	It("runs tasks on their own cores and joins them", func() {
		var results [4]uint
		var cpus []uint
		for idx := range 4 {
			cpu := Successful(p.Submit(corepool.Bind(func(i int) {
				results[i] = uint(i * i)
			}, idx)))
			cpus = append(cpus, cpu)
		}
		Expect(cpus).To(ConsistOf(uint(0), uint(1), uint(2), uint(3)))
		Expect(p.Go(func() {})).Error().To(MatchError(corepool.ErrResourceExhausted))

		for _, cpu := range cpus {
			p.Join(cpu)
		}
		Expect(results).To(Equal([4]uint{0, 1, 4, 9}))
		Expect(p.Stats().Busy).To(Equal(cpuset.List{{0, 3}}))

		for _, cpu := range cpus {
			p.Free(cpu)
		}
		Expect(p.Stats().Free).To(Equal(cpuset.List{{0, 3}}))
	})

	It("shares the interrupt vector with other consumers", func() {
		cpu := Successful(p.Go(func() {}))
		p.Join(cpu)
		Eventually(others.Load).Should(Equal(int32(1)))
		p.Free(cpu)
	})

	It("reuses a freed core", func() {
		var count atomic.Int32
		for range 20 {
			cpu := Successful(p.Go(func() { count.Add(1) }))
			p.Join(cpu)
			Expect(cpu).To(BeZero())
			p.Free(cpu)
		}
		Expect(count.Load()).To(Equal(int32(20)))
	})

})
