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
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// setsize reflects the dynamically determined size of CPU sets on this system
// (size in uint64 words). This is usually smaller than the fixed-sized
// [unix.CPUSet] that Go's [unix.SchedGetaffinity] uses.
var setsize atomic.Uint64

func init() {
	setsize.Store(1)
}

// Affinity returns the affinity CPU Set of the task (thread or process) with
// the passed TID. If tid is zero, then the affinity of the calling thread is
// returned; make sure to have the OS-level thread locked to the calling go
// routine in this case.
//
// We don't use [unix.SchedGetaffinity] as it is tied to the fixed size
// [unix.CPUSet]; instead, the size needed is found out dynamically and cached.
func Affinity(tid int) (Set, error) {
	setlenStart := setsize.Load()
	setlen := setlenStart
	for {
		set := make(Set, setlen)
		// SYS_SCHED_GETAFFINITY never blocks, so RawSyscall it is.
		_, _, e := unix.RawSyscall(unix.SYS_SCHED_GETAFFINITY,
			uintptr(tid), uintptr(setlen*wordbytesize), uintptr(unsafe.Pointer(&set[0])))
		if e == unix.EINVAL {
			setlen *= 2
			continue
		}
		if e != 0 {
			return nil, e
		}
		// Publish the larger size, unless another go routine already
		// published an even larger one.
		for setlenStart < setlen && !setsize.CompareAndSwap(setlenStart, setlen) {
			setlenStart = setsize.Load()
		}
		return set, nil
	}
}

// SetAffinity restricts the task (thread or process) with the passed TID to
// the specified CPUs; a tid of zero refers to the calling thread. Trailing
// all-zero words of cpus aren't passed to the kernel. It is an error trying to
// set no affinities at all.
func SetAffinity(tid int, cpus Set) error {
	words := len(cpus)
	for words > 0 && cpus[words-1] == 0 {
		words--
	}
	if words == 0 {
		return os.NewSyscallError("sched_setaffinity", syscall.EINVAL)
	}
	_, _, e := unix.RawSyscall(unix.SYS_SCHED_SETAFFINITY,
		uintptr(tid), uintptr(uint64(words)*wordbytesize), uintptr(unsafe.Pointer(&cpus[0])))
	if e != 0 {
		return os.NewSyscallError("sched_setaffinity", e)
	}
	return nil
}

// Pin locks the calling go routine to its current OS thread and then restricts
// this thread to run only on the specified CPU. The go routine stays locked
// even if pinning fails, as the caller wants a dedicated thread either way.
func Pin(cpu uint) error {
	runtime.LockOSThread()
	if err := SetAffinity(0, Set{}.Add(cpu)); err != nil {
		return err
	}
	affs, err := Affinity(0)
	if err != nil {
		return err
	}
	if pinned, ok := affs.Single(); !ok || pinned != cpu {
		return fmt.Errorf("cannot pin to CPU %d, running on CPUs %s", cpu, affs)
	}
	return nil
}
