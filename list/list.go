// Package list provides an intrusive singly-linked list stored in an arr.Arr.
//
// Nodes are addressed by their index in the backing array. Every node carries
// the index of its successor; Sentinel marks the end of a chain. Many chains
// may share one List. Removing a node unlinks it from whatever chain holds it
// but does not free its slot.
package list

import (
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// Sentinel is the successor of the last node in a chain.
const Sentinel = ^uint32(0)

type node[T any] struct {
	next uint32
	val  T
}

// List stores chains of T.
type List[T any] struct {
	nodes *arr.Arr[node[T]]
	log   *zap.Logger
}

// New creates a list with room for capHint nodes.
func New[T any](capHint int, opts ...rowarena.Option) (*List[T], error) {
	cfg := rowarena.Apply(opts...)
	nodes, err := arr.New[node[T]](capHint, opts...)
	if err != nil {
		return nil, err
	}
	return &List[T]{nodes: nodes, log: cfg.Logger}, nil
}

func (l *List[T]) node(id uint32) (*node[T], error) {
	if id == Sentinel || int(id) >= l.nodes.Len() {
		return nil, diag.Report(l.log, errors.OutOfBounds(errors.PhaseList, nil, int(int32(id)), l.nodes.Len()))
	}
	n, _ := l.nodes.Get(int(id))
	return n, nil
}

// Add creates a detached node and returns its id and a pointer to its value.
// The pointer is invalidated by the next growth.
func (l *List[T]) Add() (uint32, *T, error) {
	i, n, err := l.nodes.Add()
	if err != nil {
		return Sentinel, nil, err
	}
	n.next = Sentinel
	return uint32(i), &n.val, nil
}

// AddValue creates a detached node holding v.
func (l *List[T]) AddValue(v T) (uint32, error) {
	id, p, err := l.Add()
	if err != nil {
		return Sentinel, err
	}
	*p = v
	return id, nil
}

// Tail returns the last node of the chain that starts at id. O(n).
func (l *List[T]) Tail(id uint32) (uint32, error) {
	n, err := l.node(id)
	if err != nil {
		return Sentinel, err
	}
	for hops := 0; n.next != Sentinel; hops++ {
		if hops >= l.nodes.Len() {
			return Sentinel, diag.Report(l.log, errors.Overflow(errors.PhaseList, "chain length", l.nodes.Len()))
		}
		id = n.next
		if n, err = l.node(id); err != nil {
			return Sentinel, err
		}
	}
	return id, nil
}

// AddNext creates a node and links it after the tail of the chain that
// contains id, not directly after id.
func (l *List[T]) AddNext(id uint32) (uint32, *T, error) {
	tail, err := l.Tail(id)
	if err != nil {
		return Sentinel, nil, err
	}
	nid, _, err := l.Add()
	if err != nil {
		return Sentinel, nil, err
	}
	t, _ := l.node(tail)
	t.next = nid
	n, _ := l.node(nid)
	return nid, &n.val, nil
}

// SetNext links the existing node target after the tail of the chain that contains id.
func (l *List[T]) SetNext(id, target uint32) error {
	if _, err := l.node(target); err != nil {
		return err
	}
	tail, err := l.Tail(id)
	if err != nil {
		return err
	}
	if tail == target {
		return diag.Report(l.log, errors.InvalidInput(errors.PhaseList, "node linked to itself"))
	}
	t, _ := l.node(tail)
	t.next = target
	return nil
}

// Remove unlinks id from any chain, joining its predecessor to its successor,
// and returns the former successor. The node is left detached. O(n).
func (l *List[T]) Remove(id uint32) (uint32, error) {
	n, err := l.node(id)
	if err != nil {
		return Sentinel, err
	}
	next := n.next
	for _, p := range l.nodes.All() {
		if p.next == id {
			p.next = next
		}
	}
	n.next = Sentinel
	return next, nil
}

// Next returns the successor of id, or Sentinel at the end of a chain.
func (l *List[T]) Next(id uint32) (uint32, error) {
	n, err := l.node(id)
	if err != nil {
		return Sentinel, err
	}
	return n.next, nil
}

// GetAt returns the node index hops along the chain from start.
func (l *List[T]) GetAt(start uint32, index int) (uint32, error) {
	id := start
	for i := 0; i < index; i++ {
		n, err := l.node(id)
		if err != nil {
			return Sentinel, err
		}
		if n.next == Sentinel {
			return Sentinel, diag.Report(l.log, errors.OutOfBounds(errors.PhaseList, nil, index, i+1))
		}
		id = n.next
	}
	if _, err := l.node(id); err != nil {
		return Sentinel, err
	}
	return id, nil
}

// Get returns a pointer to the value of id. The pointer is invalidated by the next growth.
func (l *List[T]) Get(id uint32) (*T, error) {
	n, err := l.node(id)
	if err != nil {
		return nil, err
	}
	return &n.val, nil
}

// All iterates over the chain that starts at start. Iteration stops at the
// end of the chain or, for a cyclic chain, after every node was visited once.
// The loop body must not add nodes.
func (l *List[T]) All(start uint32) iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		id := start
		for hops := 0; id != Sentinel && int(id) < l.nodes.Len(); hops++ {
			if hops >= l.nodes.Len() {
				diag.Report(l.log, errors.Overflow(errors.PhaseList, "chain length", l.nodes.Len()))
				return
			}
			n, _ := l.nodes.Get(int(id))
			if !yield(id, &n.val) {
				return
			}
			id = n.next
		}
	}
}

// Len returns the number of nodes across all chains.
func (l *List[T]) Len() int { return l.nodes.Len() }

// Free releases every node.
func (l *List[T]) Free() { l.nodes.Free() }
