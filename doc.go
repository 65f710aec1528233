/*
Package corepool turns a fixed set of processor cores into an allocatable
resource pool and dispatches work to allocated cores by interrupting them.

A [Pool] tracks which cores it owns and which of them are free or busy. Cores
register themselves with [Pool.Add] during bring-up. [Pool.Submit] allocates
the lowest-numbered free core, hands it a [Task] and sends it an interrupt,
without waiting for the task to start or finish. On the interrupted core,
[Pool.Trampoline] picks up the task and runs it, publishing the core as running
for the duration of the task in a lock-free bit vector. [Pool.Join] spins until
a dispatched core isn't running its task anymore.

There is no scheduler involved anywhere: a core runs exactly one task until
that task returns on its own, and all waiting is done by spinning. A core whose
task returned stays busy until someone explicitly calls [Pool.Free] for it.

Cores, their interrupt lines, and their notion of identity are provided by the
surrounding system through the [Interrupter] interface and by calling
[Pool.Trampoline] from each core's interrupt handling path; see package
machine for a hosted rendition where go routines locked to OS threads act as
cores.
*/
package corepool
