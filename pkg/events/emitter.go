// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package events

import (
	"sort"
	"sync"
)

// Handler receives an emitted event. The kind is passed explicitly so
// that wildcard handlers can tell events apart.
type Handler func(kind Kind, data any)

type subscription struct {
	fn   Handler
	once bool
}

// Emitter is a synchronous publish/subscribe hub keyed by event Kind.
// Handlers registered under Wildcard receive all kinds.
// All methods are safe for concurrent use.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind]map[int]subscription
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[Kind]map[int]subscription)}
}

// On registers fn for kind and returns an id for Off.
func (e *Emitter) On(kind Kind, fn Handler) int {
	return e.add(kind, fn, false)
}

// Once registers fn for kind. The handler is removed after its first delivery.
func (e *Emitter) Once(kind Kind, fn Handler) int {
	return e.add(kind, fn, true)
}

func (e *Emitter) add(kind Kind, fn Handler, once bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[kind] == nil {
		e.subs[kind] = make(map[int]subscription)
	}
	e.subs[kind][id] = subscription{fn: fn, once: once}
	return id
}

// Off removes the handler registered under kind with the given id.
// Unknown ids are ignored.
func (e *Emitter) Off(kind Kind, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs[kind], id)
}

// Emit delivers data to all handlers for kind and to wildcard handlers,
// in registration order. Delivery is synchronous on the caller's goroutine.
func (e *Emitter) Emit(kind Kind, data any) {
	e.mu.Lock()
	handlers := e.collect(kind)
	if kind != Wildcard {
		handlers = append(handlers, e.collect(Wildcard)...)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(kind, data)
	}
}

// collect gathers handlers for one key in registration order and
// removes the once-registrations. Must be called with mu held.
func (e *Emitter) collect(kind Kind) []Handler {
	m := e.subs[kind]
	if len(m) == 0 {
		return nil
	}
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		s := m[id]
		handlers = append(handlers, s.fn)
		if s.once {
			delete(m, id)
		}
	}
	return handlers
}

// Clear removes all registered handlers.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = make(map[Kind]map[int]subscription)
}
