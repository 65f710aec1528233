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

package corepool

import (
	"errors"
	"fmt"
)

// ErrResourceExhausted is returned by [Pool.Submit] when there is no free core
// left. This is not a failure of the pool: callers are expected to retry later,
// reduce their parallelism, or fail their own request.
var ErrResourceExhausted = errors.New("corepool: no free core")

// ErrProtocolViolation is wrapped by all [ProtocolViolation] panic values.
var ErrProtocolViolation = errors.New("corepool: protocol violation")

// ProtocolViolation describes a misuse of the pool, such as freeing a core
// that isn't busy. The pool's metadata cannot be trusted anymore after such a
// misuse, so protocol violations panic with a *ProtocolViolation value instead
// of returning an error.
type ProtocolViolation struct {
	CPU    uint
	Reason string
}

// Error returns a description of the violation.
func (v *ProtocolViolation) Error() string {
	return fmt.Sprintf("%s: CPU %d: %s", ErrProtocolViolation, v.CPU, v.Reason)
}

// Unwrap returns [ErrProtocolViolation].
func (v *ProtocolViolation) Unwrap() error {
	return ErrProtocolViolation
}
