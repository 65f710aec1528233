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

package threads

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/cpuset"
	"github.com/thediveo/corepool/machine"
	"github.com/thediveo/corepool/relax"
	"github.com/thediveo/corepool/spinsync"
)

// newLibrary returns a Library on a pool of freshly started emulated cores,
// together with that pool.
func newLibrary(cpus cpuset.List) (*Library, *corepool.Pool) {
	GinkgoHelper()
	m := Successful(machine.New(cpus))
	pool := corepool.New(m, corepool.WithRelax(relax.Yield), corepool.WithLogger(GinkgoLogr))
	m.Handle(pool.Trampoline)
	m.Start(pool.Add)
	DeferCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(m.Shutdown(ctx)).To(Succeed())
	})
	return New(pool, relax.Yield), pool
}

var _ = Describe("threads", func() {

	It("creates and joins threads, returning their cores", func() {
		lib, _ := newLibrary(cpuset.List{{0, 1}})
		var out [2]int
		t1 := Successful(lib.Create(func(arg any) { out[0] = arg.(int) }, 11))
		t2 := Successful(lib.Create(func(arg any) { out[1] = arg.(int) }, 22))
		Expect(lib.Create(func(any) {}, nil)).Error().To(SatisfyAll(
			MatchError(ErrAgain),
			MatchError(corepool.ErrResourceExhausted)))

		Expect(lib.Join(t1)).To(Succeed())
		Expect(lib.Join(t2)).To(Succeed())
		Expect(out).To(Equal([2]int{11, 22}))

		t3 := Successful(lib.Create(func(any) {}, nil))
		Expect(lib.Join(t3)).To(Succeed())
		Expect(func() { _ = lib.Join(t3) }).To(PanicWith(MatchError(corepool.ErrProtocolViolation)))
		lib.Yield()
	})

	It("frees the core of a joined thread", func() {
		lib, pool := newLibrary(cpuset.List{{2, 2}})
		t := Successful(lib.Create(func(any) {}, nil))
		Expect(pool.Stats().Busy).To(Equal(cpuset.List{{2, 2}}))
		Expect(lib.Join(t)).To(Succeed())
		Expect(pool.Stats().Free).To(Equal(cpuset.List{{2, 2}}))
		Expect(func() { pool.Free(uint(t)) }).To(PanicWith(MatchError(corepool.ErrProtocolViolation)))
	})

	It("hands over work between threads using mutex and condition variable", func() {
		lib, _ := newLibrary(cpuset.List{{0, 0}})
		mu := lib.MutexInit()
		cond := lib.CondInit()
		var (
			request  int
			response int
			haveReq  bool
			haveResp bool
		)

		worker := Successful(lib.Create(func(any) {
			defer GinkgoRecover()
			Expect(lib.MutexLock(mu)).To(Succeed())
			for !haveReq {
				Expect(lib.CondWait(cond, mu)).To(Succeed())
			}
			response = request * 2
			haveResp = true
			Expect(lib.CondBroadcast(cond)).To(Succeed())
			Expect(lib.MutexUnlock(mu)).To(Succeed())
		}, nil))

		Expect(lib.MutexLock(mu)).To(Succeed())
		request = 21
		haveReq = true
		Expect(lib.CondSignal(cond)).To(Succeed())
		for !haveResp {
			Expect(lib.CondWait(cond, mu)).To(Succeed())
		}
		Expect(response).To(Equal(42))
		Expect(lib.MutexDestroy(mu)).To(MatchError(spinsync.ErrBusy))
		Expect(lib.MutexUnlock(mu)).To(Succeed())

		Expect(lib.Join(worker)).To(Succeed())
		Expect(lib.MutexDestroy(mu)).To(Succeed())
		Expect(lib.CondDestroy(cond)).To(Succeed())
	})

})
