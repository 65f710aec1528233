/*
Package spinsync provides a mutex and a condition variable that never block in
the operating system: waiting is always done by spinning on shared memory,
using an injectable [relax.Policy] between polls.

These primitives are meant for code running on cores without any scheduler
beneath it, where there is nothing else to switch to while waiting. They are
drop-in replacements for the mutex and condition variable surface expected by
parallel numeric code.

[Cond] only supports waking all waiters: [Cond.Signal] and [Cond.Broadcast]
have the very same effect. Callers must always re-check their predicate after
[Cond.Wait] returns.
*/
package spinsync

import "errors"

// ErrBusy is returned when destroying a locked mutex or a condition variable
// with waiters.
var ErrBusy = errors.New("spinsync: resource busy")
