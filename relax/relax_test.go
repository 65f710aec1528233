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

package relax_test

import (
	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"

	"github.com/thediveo/corepool/relax"
)

var _ = Describe("relax policies", func() {

	DescribeTable("parsing policy names",
		func(name string, expected relax.Policy) {
			Expect(Successful(relax.Parse(name))).To(Equal(expected))
		},
		Entry(nil, "", relax.Pause),
		Entry(nil, "pause", relax.Pause),
		Entry(nil, " Yield ", relax.Yield),
		Entry(nil, "spin", relax.Spin),
	)

	It("rejects unknown policy names", func() {
		Expect(relax.Parse("nap")).Error().To(MatchError(ContainSubstring(`"nap"`)))
	})

	It("relaxes without falling over", func() {
		for _, p := range []relax.Policy{relax.Pause, relax.Yield, relax.Spin} {
			Expect(p.Relax).NotTo(Panic())
		}
	})

	It("falls back to the default policy", func() {
		Expect(relax.Or(nil)).To(BeIdenticalTo(relax.Default))
		Expect(relax.Or(relax.Yield)).To(BeIdenticalTo(relax.Yield))
	})

	It("adapts functions", func() {
		count := 0
		relax.Or(relax.PolicyFunc(func() { count++ })).Relax()
		Expect(count).To(Equal(1))
	})

})
