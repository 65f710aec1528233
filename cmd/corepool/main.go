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

// corepool brings up a pool of emulated cores, runs a parallel dot product on
// a team of worker threads dispatched to these cores, and reports the pool's
// state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/klauspost/cpuid/v2"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/thediveo/corepool"
	"github.com/thediveo/corepool/config"
	"github.com/thediveo/corepool/machine"
	"github.com/thediveo/corepool/team"
	"github.com/thediveo/corepool/threads"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "corepool: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("corepool", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	cpus := fs.String("cpus", "", "CPU list of cores to pool, such as 0-3 (overrides configuration)")
	relaxName := fs.String("relax", "", "relax policy for spinning: pause, yield, spin (overrides configuration)")
	pin := fs.Bool("pin", false, "pin cores to their CPUs")
	workers := fs.Int("workers", -1, "number of team workers, 0 for one per core (overrides configuration)")
	verbosity := fs.Int("v", -1, "log verbosity (overrides configuration)")
	asJSON := fs.Bool("json", false, "report pool state as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if *cpus != "" {
		cfg.CPUs = *cpus
	}
	if *relaxName != "" {
		cfg.RelaxPolicy = *relaxName
	}
	if *pin {
		cfg.Pin = true
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if *verbosity >= 0 {
		cfg.Verbosity = *verbosity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: cfg.Verbosity})

	cpuList, _ := cfg.CPUList()
	policy, _ := cfg.Relax()

	// every core permanently occupies an OS thread that is spinning more
	// often than not, so leave room for the caller on top.
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.V(1).Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		log.Error(err, "cannot adjust GOMAXPROCS to CPU quota")
	}
	defer undo()
	if need := cpuList.Count() + 1; runtime.GOMAXPROCS(0) < need {
		runtime.GOMAXPROCS(need)
	}
	log.Info("host",
		"brand", cpuid.CPU.BrandName,
		"physicalCores", cpuid.CPU.PhysicalCores,
		"logicalCores", cpuid.CPU.LogicalCores,
		"gomaxprocs", runtime.GOMAXPROCS(0))

	m, err := machine.New(cpuList, machine.WithPinning(cfg.Pin), machine.WithLogger(log.WithName("machine")))
	if err != nil {
		return err
	}
	pool := corepool.New(m, corepool.WithRelax(policy), corepool.WithLogger(log.WithName("pool")))
	m.Handle(pool.Trampoline)
	m.Start(pool.Add)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			log.Error(err, "cores did not stop")
		}
	}()
	if owned := pool.Stats().Owned; len(owned) > 0 {
		cpu, _ := owned.Remove()
		log.Info("core features", "cpu", cpu, "vector", m.Features(cpu))
	}

	n := cfg.Workers
	if n == 0 {
		n = cpuList.Count()
	}
	t, err := team.New(threads.New(pool, policy), n)
	if err != nil {
		return err
	}
	log.Info("team up", "workers", t.Workers())
	busy := pool.Stats()

	start := time.Now()
	dot, err := dotProduct(t, cfg.Length)
	elapsed := time.Since(start)
	t.Close()
	if err != nil {
		return err
	}
	log.Info("dot product", "length", cfg.Length, "result", dot, "elapsed", elapsed)

	return report(log, busy, pool.Stats(), *asJSON)
}

// dotProduct computes the dot product of two vectors of length n, where
// a[i]=1 and b[i]=i, and checks the result against the closed form.
func dotProduct(t *team.Team, n int) (float64, error) {
	a := make([]float64, n)
	b := make([]float64, n)
	t.ParallelFor(n, 0, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a[i] = 1
			b[i] = float64(i)
		}
	})
	const grain = 4096
	partials := make([]float64, (n+grain-1)/grain)
	t.ParallelFor(n, grain, func(lo, hi int) {
		var sum float64
		for i := lo; i < hi; i++ {
			sum += a[i] * b[i]
		}
		partials[lo/grain] = sum
	})
	var dot float64
	for _, p := range partials {
		dot += p
	}
	if want := float64(n) * float64(n-1) / 2; dot != want {
		return dot, fmt.Errorf("dot product mismatch, got %g, want %g", dot, want)
	}
	return dot, nil
}

type poolReport struct {
	WhileRunning corepool.Stats `json:"whileRunning"`
	AfterClose   corepool.Stats `json:"afterClose"`
}

func report(log logr.Logger, busy, idle corepool.Stats, asJSON bool) error {
	if !asJSON {
		log.Info("pool while team running", "owned", busy.Owned, "busy", busy.Busy, "running", busy.Running)
		log.Info("pool after team closed", "owned", idle.Owned, "free", idle.Free)
		return nil
	}
	b, err := sonnet.Marshal(poolReport{WhileRunning: busy, AfterClose: idle})
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
