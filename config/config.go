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

// Package config loads the configuration of a core pool deployment from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/cpuset"
	"github.com/thediveo/corepool/relax"
)

// Config describes which cores to pool and how to drive them.
type Config struct {
	// CPUs to emulate cores for, in CPU list format such as "0-3,8".
	CPUs string `yaml:"cpus"`
	// Relax policy name for spin loops: "pause", "yield", or "spin".
	RelaxPolicy string `yaml:"relax"`
	// Pin each core to the CPU with the same number.
	Pin bool `yaml:"pin"`
	// Workers of the parallel-for team; zero means one per core.
	Workers int `yaml:"workers"`
	// Verbosity of logging; 1 and above traces dispatching.
	Verbosity int `yaml:"verbosity"`
	// Length of the vectors of the dot product demo.
	Length int `yaml:"length"`
}

// Default returns the default configuration: four cores, pause hints, no
// pinning.
func Default() Config {
	return Config{
		CPUs:        "0-3",
		RelaxPolicy: "pause",
		Length:      1 << 20,
	}
}

// Load reads the configuration from the YAML file at path; fields missing
// from the file keep their default values.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read configuration: %w", err)
	}
	return Parse(b)
}

// Parse decodes the configuration from YAML, rejecting unknown fields, and
// then validates it.
func Parse(b []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("malformed configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	cpus, err := c.CPUList()
	if err != nil {
		return err
	}
	if cpus.Count() == 0 {
		return errors.New("invalid configuration: no CPUs")
	}
	if last := cpus[len(cpus)-1][1]; last >= corepool.MaxCPUs {
		return fmt.Errorf("invalid configuration: CPU %d exceeds maximum %d",
			last, corepool.MaxCPUs-1)
	}
	if _, err := c.Relax(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid configuration: negative workers %d", c.Workers)
	}
	if c.Length <= 0 {
		return fmt.Errorf("invalid configuration: vector length %d", c.Length)
	}
	return nil
}

// CPUList returns the configured CPUs in canonical form.
func (c *Config) CPUList() (cpuset.List, error) {
	l, err := cpuset.NewList([]byte(c.CPUs))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: cpus %q: %w", c.CPUs, err)
	}
	return l.Set().List(), nil
}

// Relax returns the configured relax policy.
func (c *Config) Relax() (relax.Policy, error) {
	p, err := relax.Parse(c.RelaxPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return p, nil
}
