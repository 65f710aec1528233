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

package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"

	"github.com/thediveo/corepool/config"
	"github.com/thediveo/corepool/cpuset"
	"github.com/thediveo/corepool/relax"
)

var _ = Describe("configuration", func() {

	It("has sane defaults", func() {
		c := config.Default()
		Expect(c.Validate()).To(Succeed())
		Expect(Successful(c.CPUList())).To(Equal(cpuset.List{{0, 3}}))
		Expect(Successful(c.Relax())).To(Equal(relax.Pause))
	})

	It("accepts an empty document", func() {
		Expect(config.Parse(nil)).To(Equal(config.Default()))
	})

	It("parses YAML, keeping defaults for missing fields", func() {
		c := Successful(config.Parse([]byte(`
cpus: 8,2-3
relax: yield
pin: true
verbosity: 1
`)))
		Expect(Successful(c.CPUList())).To(Equal(cpuset.List{{2, 3}, {8, 8}}))
		Expect(Successful(c.Relax())).To(Equal(relax.Yield))
		Expect(c.Pin).To(BeTrue())
		Expect(c.Verbosity).To(Equal(1))
		Expect(c.Length).To(Equal(config.Default().Length))
	})

	It("loads from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "corepool.yaml")
		Expect(os.WriteFile(path, []byte("cpus: 0-1\nworkers: 1\n"), 0o644)).To(Succeed())
		c := Successful(config.Load(path))
		Expect(c.CPUs).To(Equal("0-1"))
		Expect(c.Workers).To(Equal(1))

		Expect(config.Load(filepath.Join(GinkgoT().TempDir(), "nada.yaml"))).Error().To(
			MatchError(os.ErrNotExist))
	})

	DescribeTable("rejecting invalid configurations",
		func(doc string, msg string) {
			Expect(config.Parse([]byte(doc))).Error().To(MatchError(ContainSubstring(msg)))
		},
		Entry(nil, "cpus: x", "expected unsigned integer number"),
		Entry(nil, "cpus: ''", "no CPUs"),
		Entry(nil, "cpus: 0-256", "exceeds maximum 255"),
		Entry(nil, "relax: nap", "unknown relax policy"),
		Entry(nil, "workers: -1", "negative workers"),
		Entry(nil, "length: 0", "vector length"),
		Entry(nil, "bogus: 1", "malformed configuration"),
		Entry(nil, "cpus: [1", "malformed configuration"),
	)

})
