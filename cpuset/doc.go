/*
Package cpuset supports working with CPU lists and sets, both plain and
lock-free atomic ones, as well as pinning OS threads to specific CPUs.

Logically, [List] and [Set] are equivalent, as they both represent sets of one
or more logical CPUs. Each logical CPU is identified by their 0-based CPU
number. The difference between List and Set lies in their internal
representations, mirroring different representation forms in the Linux syscalls
and procfs pseudo files.

  - [List] internally stores CPU numbers as ranges, such as 1-4, 8-15.
  - [Set] internally stores CPU numbers as bits in a bytestream, such as (hex)
    ff1e.
  - [Atomic] is a fixed-size bit vector where individual CPU bits can be set,
    cleared and polled concurrently without any lock.

[List.Set] converts a List into its corresponding Set. In the opposite
direction, [Set.List] converts a Set into its equivalent List. [Set.First]
implements a first-fit search for the lowest-numbered CPU in a Set.
*/
package cpuset

import "errors"

// ErrNotSupported is returned by the CPU affinity operations on platforms
// without a notion of per-thread CPU affinity.
var ErrNotSupported = errors.New("CPU affinity not supported on this platform")
