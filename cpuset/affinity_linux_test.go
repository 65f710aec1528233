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

//go:build linux

package cpuset

import (
	"bytes"
	"os"
	"syscall"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("cpu affinities", func() {

	It("gets this process's CPU affinity list, consistent with /proc/self/status data", func() {
		Expect(wordbytesize).To(Equal(uint64(64 /* bits in uint64 */ / 8 /* bits/byte*/)))
		cpulist := Successful(Affinity(os.Getpid())).List()
		Expect(cpulist).NotTo(BeEmpty())
		Expect(setsize.Load()).NotTo(BeZero())

		var prefix = []byte("Cpus_allowed_list:\t")
		var allowedList List
		for _, line := range bytes.Split(Successful(os.ReadFile("/proc/self/status")), []byte("\n")) {
			if !bytes.HasPrefix(line, prefix) {
				continue
			}
			allowedList = Successful(NewList(line[len(prefix):]))
		}
		Expect(cpulist).To(Equal(allowedList))
	})

	It("pins the calling thread to a single CPU", func() {
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			// never unlocked: the tainted thread gets thrown away when this
			// go routine terminates.
			affs := Successful(Affinity(0))
			oneonly, _ := affs.List().Remove()
			Expect(Pin(oneonly)).To(Succeed())
			Expect(Successful(Affinity(0)).List()).To(Equal(List{{oneonly, oneonly}}))
		}()
		Eventually(done).Should(BeClosed())
	})

	It("cannot set empty affinities", func() {
		Expect(SetAffinity(0, Set{})).To(MatchError(syscall.EINVAL))
		Expect(SetAffinity(0, Set{0, 0})).To(MatchError(syscall.EINVAL))
	})

})
