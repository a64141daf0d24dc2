/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// This file implements the slot table that keeps loop handles alive.
//
// # The Problem
//
// A handle must outlive every reference the application holds to it: a
// timer created inside a callback and immediately forgotten still has to
// fire, and a connection accepted by a listener has no owner at all until
// its own close completes. In Go, an object nobody points at is garbage.
//
// # The Solution: the loop owns its handles
//
// Every handle is inserted into a Table owned by its loop when it is
// created. The table entry is the handle's self-reference:
//
//	┌──────────────┐  Insert on create   ┌───────────────────┐
//	│ handle value │ ──────────────────▶ │ Table[ID]handle   │
//	└──────────────┘                     │ (owned by Loop)   │
//	       ▲                             └─────────┬─────────┘
//	       │  Remove in close completion           │
//	       └───────────────────────────────────────┘
//
// The entry is removed only by the handle's close completion, which is the
// single path to destruction. IDs come from a monotonic counter so a stale
// ID can never address a newer handle.
//
// # Thread Safety
//
// A Table is touched only by the goroutine running its loop. There is no
// locking.

package cev

import "slices"

// ID identifies one slot of a Table. The zero ID is never issued.
type ID uint64

// Table maps IDs to values of type T.
type Table[T any] struct {
	next  ID
	slots map[ID]T
}

// Insert stores v and returns its new ID.
func (t *Table[T]) Insert(v T) ID {
	if t.slots == nil {
		t.slots = make(map[ID]T)
	}
	t.next++
	t.slots[t.next] = v
	return t.next
}

// Get returns the value stored under id.
func (t *Table[T]) Get(id ID) (T, bool) {
	v, ok := t.slots[id]
	return v, ok
}

// Remove deletes id and reports whether it was present.
func (t *Table[T]) Remove(id ID) bool {
	if _, ok := t.slots[id]; !ok {
		return false
	}
	delete(t.slots, id)
	return true
}

// Len returns the number of live slots.
func (t *Table[T]) Len() int { return len(t.slots) }

// Each calls fn for every slot in insertion order until fn returns false.
// Slots inserted or removed by fn during the walk do not affect the set of
// IDs visited, but removed ones are skipped.
func (t *Table[T]) Each(fn func(ID, T) bool) {
	ids := make([]ID, 0, len(t.slots))
	for id := range t.slots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		v, ok := t.slots[id]
		if !ok {
			continue
		}
		if !fn(id, v) {
			return
		}
	}
}
