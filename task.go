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

// Task is a single unit of work handed to a core. A task is run at most once;
// in its typical use it never returns, hosting an event loop on its core.
type Task interface {
	Run()
}

// TaskFunc adapts an ordinary function to a Task.
type TaskFunc func()

// Run calls f().
func (f TaskFunc) Run() { f() }

type boundTask[T any] struct {
	fn  func(T)
	arg T
}

func (t boundTask[T]) Run() { t.fn(t.arg) }

// Bind returns a Task that calls fn with arg, keeping the entry point and its
// payload together.
func Bind[T any](fn func(T), arg T) Task {
	return boundTask[T]{fn: fn, arg: arg}
}
