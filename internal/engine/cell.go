package engine

import "fmt"

// Cell is a write-once producer value passed between steps in a plan: a
// step declares a single produced value that later steps in the same
// plan read, and a step may only read a cell an earlier step in its
// plan declared. This is a step-local output value with an explicit
// dependency edge, rather than a shared-mutable-heap slot arena.
type Cell[T any] struct {
	value    T
	resolved bool
}

// NewCell returns an empty Cell awaiting resolution by a step.
func NewCell[T any]() *Cell[T] { return &Cell[T]{} }

// ResolvedCell returns a Cell that is already resolved to v, for values
// established before any plan exists (the engine's pre-plan discovery of
// an existing upstream PR).
func ResolvedCell[T any](v T) *Cell[T] { return &Cell[T]{value: v, resolved: true} }

// Resolve sets the cell's value. Resolving an already-resolved cell is a
// programming error: it means two steps in one plan claimed the same
// producer slot.
func (c *Cell[T]) Resolve(v T) {
	if c.resolved {
		panic(fmt.Sprintf("engine: cell already resolved to %v, cannot resolve to %v", c.value, v))
	}
	c.value = v
	c.resolved = true
}

// Get reads the cell's value. Reading an unresolved cell is a
// programming error: a step only ever reads a cell an earlier step in
// its plan declared, so by the time a reading step runs, a well-formed
// plan has already resolved it.
func (c *Cell[T]) Get() T {
	if !c.resolved {
		panic("engine: read of unresolved cell")
	}
	return c.value
}

// Resolved reports whether the cell has been set.
func (c *Cell[T]) Resolved() bool { return c.resolved }
