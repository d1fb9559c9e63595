package ecs

import (
	"iter"
	"slices"
)

// Hierarchy stores directed parent→child adjacency. An entity has at most one
// parent; children keep insertion order. The structure is pure bookkeeping:
// cascade-destroy policy is layered on top by the Manager.
type Hierarchy struct {
	parents  map[EntityID]EntityID
	children map[EntityID][]EntityID
}

func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		parents:  make(map[EntityID]EntityID),
		children: make(map[EntityID][]EntityID),
	}
}

// SetParent attaches child under parent, detaching from any previous parent
// first. Self-parenting and assignments that would make parent a descendant
// of child are rejected.
func (h *Hierarchy) SetParent(child, parent EntityID) error {
	if child == parent {
		return ErrSelfParent
	}
	// Walk ancestors of the prospective parent; hitting child means a cycle.
	for cur, ok := parent, true; ok; cur, ok = h.Parent(cur) {
		if cur == child {
			return ErrHierarchyCycle
		}
	}
	h.detach(child)
	h.parents[child] = parent
	h.children[parent] = append(h.children[parent], child)
	return nil
}

// ClearParent detaches child from its parent, if it has one.
func (h *Hierarchy) ClearParent(child EntityID) {
	h.detach(child)
}

func (h *Hierarchy) detach(child EntityID) {
	prev, ok := h.parents[child]
	if !ok {
		return
	}
	delete(h.parents, child)
	kids := h.children[prev]
	if i := slices.Index(kids, child); i >= 0 {
		kids = slices.Delete(kids, i, i+1)
	}
	if len(kids) == 0 {
		delete(h.children, prev)
	} else {
		h.children[prev] = kids
	}
}

// Parent returns the entity's parent, if any.
func (h *Hierarchy) Parent(id EntityID) (EntityID, bool) {
	p, ok := h.parents[id]
	return p, ok
}

// Children returns the entity's direct children in insertion order. The
// returned slice is a copy.
func (h *Hierarchy) Children(id EntityID) []EntityID {
	return slices.Clone(h.children[id])
}

// Remove drops the entity's hierarchy links. It returns the prior parent (if
// any) and the direct children that are now orphaned. Descendants are not
// destroyed here.
func (h *Hierarchy) Remove(id EntityID) (parent EntityID, hadParent bool, orphans []EntityID) {
	parent, hadParent = h.parents[id]
	h.detach(id)
	orphans = h.children[id]
	delete(h.children, id)
	for _, c := range orphans {
		delete(h.parents, c)
	}
	return parent, hadParent, orphans
}

// Descendants returns every transitive child of id, depth-first.
func (h *Hierarchy) Descendants(id EntityID) []EntityID {
	var out []EntityID
	var walk func(EntityID)
	walk = func(cur EntityID) {
		for _, c := range h.children[cur] {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// Roots returns entities that have children but no parent. An entity with
// neither parent nor children is not a root by this definition: only trees
// count.
func (h *Hierarchy) Roots() []EntityID {
	var out []EntityID
	for id := range h.children {
		if _, ok := h.parents[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// ForEach visits entities breadth-first starting from the given roots (all
// roots when none are given), guaranteeing a parent is visited before any of
// its children. Returning false from fn stops the walk.
func (h *Hierarchy) ForEach(fn func(EntityID) bool, roots ...EntityID) {
	for id := range h.seq(roots) {
		if !fn(id) {
			return
		}
	}
}

// All is the lazy counterpart of ForEach: a breadth-first sequence over the
// hierarchy that the caller may stop early by breaking out of the range.
func (h *Hierarchy) All(roots ...EntityID) iter.Seq[EntityID] {
	return h.seq(roots)
}

func (h *Hierarchy) seq(roots []EntityID) iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		queue := roots
		if len(queue) == 0 {
			queue = h.Roots()
		} else {
			queue = slices.Clone(queue)
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !yield(cur) {
				return
			}
			queue = append(queue, h.children[cur]...)
		}
	}
}
