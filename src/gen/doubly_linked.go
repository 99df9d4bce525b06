package gen

type NodeDL[T any] struct {
	prev  *NodeDL[T]
	next  *NodeDL[T]
	value *T
}

// DoublyLinkedList implements a doubly linked list
// that is not concurrent safe.
type DoublyLinkedList[T any] struct {
	first       *NodeDL[T]
	last        *NodeDL[T]
	allocator   Allocator[T]
	deallocator Deallocator[T]
}

// Next returns the next element of the list.  This is probably only
// needed by people doing specialized traversals that are too complex
// for Traverse and TraverseBackwards.  Returns nil for the last node
// in the list.
func (g *NodeDL[T]) Next() *NodeDL[T] {
	return g.next
}

// Prev returns the previous element of the list.  This is probably only
// needed by people doing specialized traversals that are too complex
// for Traverse and TraverseBackwards.  Returns nil for the first node
// in the list.
func (g *NodeDL[T]) Prev() *NodeDL[T] {
	return g.prev
}

// Value returns the element's value. This is used by traversal
// functions and others because they are given a NodeDL not just a T.
func (g *NodeDL[T]) Value() *T {
	return g.value
}

// NewDoublyLinkedList returns an empty doubly linked list.
// Note: It returns a value, not a pointer but the methods have
// pointer receivers.
func NewDoublyLinkedList[T any]() DoublyLinkedList[T] {
	return DoublyLinkedList[T]{first: nil, last: nil, allocator: nil}
}

// Allocator and Deallocator let a caller control where nodes come from,
// for lists whose nodes must live in pre-reserved storage.
type Allocator[T any] func() (*NodeDL[T], *T)
type Deallocator[T any] func(*NodeDL[T], *T)

// NewDoublyLinkedListWithAllocator returns an empty doubly linked list.
// The allocator provided will be used to create nodes in the lists of this
// type.  Note: It returns a value, not a pointer but the methods have
// pointer receivers.
func NewDoublyLinkedListWithAllocator[T any](alloc Allocator[T],
	dealloc Deallocator[T]) DoublyLinkedList[T] {
	return DoublyLinkedList[T]{first: nil, last: nil,
		allocator: alloc, deallocator: dealloc}
}

// Empty returns true if the list is empty.
func (g *DoublyLinkedList[T]) Empty() bool {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated checking for Empty")
		}
		return true
	}
	return false
}

// Length returns the number of elements in the list.  This
// requires walking the list.
func (g *DoublyLinkedList[T]) Length() int {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated in Length")
		}
		return 0
	}
	l := 0
	if err := g.Traverse(func(_ *T) error { l++; return nil }); err != nil {
		panic("unable to compute size due to error in traversal:" + err.Error())
	}
	return l
}

// First returns the first node in the list or a nil if the list is empty.
func (g *DoublyLinkedList[T]) First() *NodeDL[T] {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated getting First()")
		}
		return nil
	}
	if g.first.prev != nil {
		panic("invariant of first node violated (First())")
	}
	return g.first
}

// Last returns the last node in the list or a nil if the list is empty.
func (g *DoublyLinkedList[T]) Last() *NodeDL[T] {
	if g.last == nil {
		if g.first != nil {
			panic("invariant violated getting Last()")
		}
		return nil
	}
	if g.last.next != nil {
		panic("invariant of last node violated (Last())")
	}
	return g.last
}

// Push inserts the given value at the front of the list. Traversals
// that start at the front will see the newly created node first.
// Returns a pointer to the value's node.
func (g *DoublyLinkedList[T]) Push(v *T) *NodeDL[T] {
	if g.allocator != nil {
		node, value := g.allocator()
		*value = *v
		g.PushNode(node)
		return node
	}
	n := &NodeDL[T]{prev: nil, next: nil, value: v}
	g.PushNode(n)
	return n
}

// PushNode inserts the given node at the front of the list.
// Traversals that start at the front will see the newly
// pushed node first.  Returns the newly modified list.
func (g *DoublyLinkedList[T]) PushNode(n *NodeDL[T]) *DoublyLinkedList[T] {
	if g.first == nil {
		if g.last != nil {
			panic("invariant of empty list is broken (push)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.first
	if old.prev != nil {
		panic("invariant of first node of list is broken (push)")
	}
	g.first = n
	old.prev = n
	n.next = old
	n.prev = nil
	return g
}

// Append inserts the given value at the end of the list. Traversals that
// start at the front will see the newly created node last.  Returns a
// pointer to the value's node.
func (g *DoublyLinkedList[T]) Append(v *T) *NodeDL[T] {
	if g.allocator != nil {
		node, value := g.allocator()
		*value = *v
		g.AppendNode(node)
		return node
	}
	n := &NodeDL[T]{prev: nil, next: nil, value: v}
	g.AppendNode(n)
	return n
}

// AppendNode inserts the given node at the end of the list.  Traversals
// that start at the front will see the newly pushed node last.
// Returns the newly modified list.  This method does a check to insure
// that Next() and Prev() of the new node are nil. If they are not nil,
// it panics.
func (g *DoublyLinkedList[T]) AppendNode(n *NodeDL[T]) *DoublyLinkedList[T] {
	if g.last == nil {
		if g.first != nil {
			panic("invariant of empty list is broken (AppendNode)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.last
	if old.next != nil {
		panic("invariant of last node of list is broken (AppendNode)")
	}
	if n.Next() != nil || n.Prev() != nil {
		panic("attempt to insert node that is likely a member of " +
			"another list (AppendNode)")
	}
	g.last = n
	old.next = n
	n.prev = old
	n.next = nil
	return g
}

// TraverseNodes walks all the nodes in the list, in order, starting at the
// front.  It is ok to modify elements that are "behind" the current
// node in the iteration.  So modifying current.prev is ok, but modifying
// current.next is not.  If the iteration function returns an error,
// the traversal is halted and that error is returned as the result of
// the TraverseNodes function.
func (g *DoublyLinkedList[T]) TraverseNodes(fn func(v *NodeDL[T]) error) error {
	curr := g.first
	for curr != nil {
		err := fn(curr)
		if err != nil {
			return err
		}
		curr = curr.next
	}
	return nil
}

// Traverse walks all the items in the list, in order, starting at the
// front. This passes the _value_ of each node to the function supplied
// and the nodes in the list cannot be modified during traversal.
// If the iteration function returns an error, the traversal is halted
// and that error is returned as the result of Traverse function.
func (g *DoublyLinkedList[T]) Traverse(fn func(v *T) error) error {
	curr := g.first
	for curr != nil {
		err := fn(curr.value)
		if err != nil {
			return err
		}
		curr = curr.next
	}
	return nil
}

// TraverseNodesBackwards walks all the nodes in the list, in reverse order,
// starting at the last element.  It is ok to modify elements that are
// "in front of" the current node in the iteration.  So modifying
// current.next is ok, but modifying current.prev is not.  If the
// iteration function returns an error, the traversal is halted and
// that error is returned as the result of TraverseNodesBackwards function.
func (g *DoublyLinkedList[T]) TraverseNodesBackwards(fn func(v *NodeDL[T]) error) error {
	curr := g.last
	for curr != nil {
		err := fn(curr)
		if err != nil {
			return err
		}
		curr = curr.prev
	}
	return nil
}

// TraverseBackwards walks all the _values_ in the list, in reverse order,
// starting at the last element.  This function does not allow the caller
// to modify the list as it is traversed.  If the iteration function
// returns an error, the traversal is halted and that error is returned as
// the result of TraverseBackwards function.
func (g *DoublyLinkedList[T]) TraverseBackwards(fn func(v *T) error) error {
	curr := g.last
	for curr != nil {
		err := fn(curr.value)
		if err != nil {
			return err
		}
		curr = curr.prev
	}
	return nil
}

// Nth returns the node that is the Nth element of the list, or nil if there
// are insufficient nodes in the list to reach the Nth.
func (g *DoublyLinkedList[T]) Nth(i int) *NodeDL[T] {
	ct := 0
	current := g.First()
	for ct < g.Length() {
		if ct == i {
			return current
		}
		ct++
		current = current.Next()
	}
	return nil
}

// Remove takes a node out of the list.
func (g *DoublyLinkedList[T]) Remove(n *NodeDL[T]) {
	if n.prev == nil || n.next == nil {
		// only element
		if g.first == n && g.last == n {
			g.first = nil
			g.last = nil
			n.prev = nil
			n.next = nil
			return
		}
		//two edge cases
		if n.prev == nil && g.first == n {
			g.first = n.next
			n.next.prev = nil
			n.prev = nil
			n.next = nil
			return
		}
		if n.next == nil && g.last == n {
			g.last = n.prev
			n.prev.next = nil
			n.prev = nil
			n.next = nil
			return
		}
		panic("invariant of removing first or last element violated")
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
}

// RemoveAndRelease takes a node out of the list and returns it and its value
// to the deallocator.  If there is no deallocator, this is the same as
// Remove().
func (g *DoublyLinkedList[T]) RemoveAndRelease(n *NodeDL[T]) {
	g.Remove(n)
	if g.deallocator != nil {
		g.deallocator(n, n.value)
	}
}

// Pop is a shorthand for Remove(First()) and it returns the removed
// node.
func (g *DoublyLinkedList[T]) Pop() *NodeDL[T] {
	f := g.First()
	g.Remove(f)
	return f
}

// Dequeue is a shorthand for Remove(Last()) and it returns the removed
// node.
func (g *DoublyLinkedList[T]) Dequeue() *NodeDL[T] {
	f := g.Last()
	g.Remove(f)
	return f
}
