// Package tree provides an intrusive N-ary tree stored in a list.List.
//
// A node's children form a list chain that starts at its first child; siblings
// are linked through the list successor. Traversal is depth-first pre-order and
// bounded by MaxDepth.
package tree

import (
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
	"github.com/wippyai/rowarena/list"
)

// Sentinel marks a missing child or sibling.
const Sentinel = list.Sentinel

// MaxDepth bounds traversal depth. Nodes deeper than MaxDepth-1 are never visited.
const MaxDepth = 128

type branch[T any] struct {
	child uint32
	val   T
}

// Tree stores nodes of T.
type Tree[T any] struct {
	l   *list.List[branch[T]]
	log *zap.Logger
}

// New creates a tree with room for capHint nodes.
func New[T any](capHint int, opts ...rowarena.Option) (*Tree[T], error) {
	cfg := rowarena.Apply(opts...)
	l, err := list.New[branch[T]](capHint, opts...)
	if err != nil {
		return nil, err
	}
	return &Tree[T]{l: l, log: cfg.Logger}, nil
}

func (t *Tree[T]) branch(id uint32) (*branch[T], error) {
	b, err := t.l.Get(id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Tree[T]) init(id uint32, b *branch[T], err error) (uint32, *T, error) {
	if err != nil {
		return Sentinel, nil, err
	}
	b.child = Sentinel
	return id, &b.val, nil
}

// Add creates a detached node with no children.
func (t *Tree[T]) Add() (uint32, *T, error) {
	return t.init(t.l.Add())
}

// AddValue creates a detached node holding v.
func (t *Tree[T]) AddValue(v T) (uint32, error) {
	id, p, err := t.Add()
	if err != nil {
		return Sentinel, err
	}
	*p = v
	return id, nil
}

// AddChild creates a node at the end of parent's children.
func (t *Tree[T]) AddChild(parent uint32) (uint32, *T, error) {
	pb, err := t.branch(parent)
	if err != nil {
		return Sentinel, nil, err
	}
	if pb.child != Sentinel {
		return t.AddNext(pb.child)
	}
	id, p, err := t.Add()
	if err != nil {
		return Sentinel, nil, err
	}
	// Add may have moved the parent.
	pb, _ = t.branch(parent)
	pb.child = id
	return id, p, nil
}

// AddNext creates a node at the end of the sibling chain that contains id.
func (t *Tree[T]) AddNext(id uint32) (uint32, *T, error) {
	return t.init(t.l.AddNext(id))
}

// Remove unlinks id from its parent and siblings. Its own children stay
// attached to it. O(n).
func (t *Tree[T]) Remove(id uint32) error {
	next, err := t.l.Next(id)
	if err != nil {
		return err
	}
	for i := 0; i < t.l.Len(); i++ {
		b, _ := t.l.Get(uint32(i))
		if b.child == id {
			b.child = next
		}
	}
	_, err = t.l.Remove(id)
	return err
}

// Get returns a pointer to the value of id. The pointer is invalidated by the next growth.
func (t *Tree[T]) Get(id uint32) (*T, error) {
	b, err := t.branch(id)
	if err != nil {
		return nil, err
	}
	return &b.val, nil
}

// FirstChild returns the first child of id, or Sentinel.
func (t *Tree[T]) FirstChild(id uint32) (uint32, error) {
	b, err := t.branch(id)
	if err != nil {
		return Sentinel, err
	}
	return b.child, nil
}

// Next returns the next sibling of id, or Sentinel.
func (t *Tree[T]) Next(id uint32) (uint32, error) {
	return t.l.Next(id)
}

// Children iterates over the direct children of id in order.
func (t *Tree[T]) Children(id uint32) iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		first, err := t.FirstChild(id)
		if err != nil || first == Sentinel {
			return
		}
		for cid, b := range t.l.All(first) {
			if !yield(cid, &b.val) {
				return
			}
		}
	}
}

// Last records, per depth, whether the node on the current path at that depth
// is the last of its siblings.
type Last [MaxDepth / 64]uint64

// IsLast reports whether the ancestor at depth has no following sibling.
func (m Last) IsLast(depth int) bool {
	return m[depth/64]&(1<<(depth%64)) != 0
}

func (m Last) with(depth int, last bool) Last {
	if last {
		m[depth/64] |= 1 << (depth % 64)
	} else {
		m[depth/64] &^= 1 << (depth % 64)
	}
	return m
}

// VisitFunc receives each node in pre-order. Returning false stops the walk.
type VisitFunc[T any] func(id uint32, v *T, depth int, last Last) bool

// Walk visits root and its descendants in pre-order, recursively. The root
// counts as a last sibling. A path deeper than MaxDepth stops the walk with an
// overflow error; nodes visited before it remain valid.
func (t *Tree[T]) Walk(root uint32, fn VisitFunc[T]) error {
	if _, err := t.branch(root); err != nil {
		return err
	}
	_, err := t.walk(root, 0, Last{}.with(0, true), fn)
	return err
}

func (t *Tree[T]) walk(id uint32, depth int, last Last, fn VisitFunc[T]) (bool, error) {
	b, _ := t.branch(id)
	if !fn(id, &b.val, depth, last) {
		return false, nil
	}
	child := b.child
	if child == Sentinel {
		return true, nil
	}
	if depth+1 >= MaxDepth {
		return false, diag.Report(t.log, errors.Overflow(errors.PhaseTree, "depth", MaxDepth))
	}
	for child != Sentinel {
		next, err := t.l.Next(child)
		if err != nil {
			return false, err
		}
		cont, err := t.walk(child, depth+1, last.with(depth+1, next == Sentinel), fn)
		if !cont || err != nil {
			return false, err
		}
		child = next
	}
	return true, nil
}

// Iter walks a subtree in pre-order with an explicit stack of at most MaxDepth entries.
type Iter[T any] struct {
	t       *Tree[T]
	stack   [MaxDepth]uint32
	depth   int
	started bool
	done    bool
	err     error
}

// Iter returns an iterator over root and its descendants.
func (t *Tree[T]) Iter(root uint32) *Iter[T] {
	it := &Iter[T]{t: t}
	it.stack[0] = root
	if _, err := t.branch(root); err != nil {
		it.done, it.err = true, err
	}
	return it
}

// Next advances to the next node. It returns false when the subtree is
// exhausted or the depth bound was hit; check Err to tell them apart.
func (it *Iter[T]) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return true
	}

	cur := it.stack[it.depth]
	if child, _ := it.t.FirstChild(cur); child != Sentinel {
		if it.depth+1 >= MaxDepth {
			it.done = true
			it.err = diag.Report(it.t.log, errors.Overflow(errors.PhaseTree, "depth", MaxDepth))
			return false
		}
		it.depth++
		it.stack[it.depth] = child
		return true
	}

	for it.depth > 0 {
		if next, _ := it.t.l.Next(it.stack[it.depth]); next != Sentinel {
			it.stack[it.depth] = next
			return true
		}
		it.depth--
	}
	it.done = true
	return false
}

// Node returns the current node id.
func (it *Iter[T]) Node() uint32 { return it.stack[it.depth] }

// Depth returns the depth of the current node below the root.
func (it *Iter[T]) Depth() int { return it.depth }

// Value returns a pointer to the current node's value.
func (it *Iter[T]) Value() *T {
	v, _ := it.t.Get(it.Node())
	return v
}

// Err returns the error that ended iteration, if any.
func (it *Iter[T]) Err() error { return it.err }

// All iterates over root and its descendants in pre-order.
// Iteration ends early, after logging, when a path exceeds MaxDepth.
func (t *Tree[T]) All(root uint32) iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		it := t.Iter(root)
		for it.Next() {
			if !yield(it.Node(), it.Value()) {
				return
			}
		}
	}
}

// Print renders the subtree at root, one node per line, with box-drawing connectors.
func (t *Tree[T]) Print(w io.Writer, root uint32, label func(v *T) string) error {
	var werr error
	err := t.Walk(root, func(_ uint32, v *T, depth int, last Last) bool {
		for d := 1; d < depth; d++ {
			if last.IsLast(d) {
				_, werr = io.WriteString(w, "  ")
			} else {
				_, werr = io.WriteString(w, "│ ")
			}
			if werr != nil {
				return false
			}
		}
		if depth > 0 {
			conn := "├─"
			if last.IsLast(depth) {
				conn = "└─"
			}
			if _, werr = io.WriteString(w, conn); werr != nil {
				return false
			}
		}
		_, werr = io.WriteString(w, label(v)+"\n")
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	return err
}

// Len returns the number of nodes.
func (t *Tree[T]) Len() int { return t.l.Len() }

// Free releases every node.
func (t *Tree[T]) Free() { t.l.Free() }
