package internal

import (
	"math/rand"
	"time"
)

const (
	skipListMaxHeight = 12
	skipListBranching = 4
)

// SkipList keeps values ordered by cmp. The head node holds no value, and a
// nil node stands for the right boundary of the list. SkipList is not safe
// for concurrent use.
type SkipList[T any] struct {
	rnd    *rand.Rand
	cmp    func(a, b T) int
	head   *skipListNode[T]
	height int
	length int
}

type skipListNode[T any] struct {
	next  []*skipListNode[T]
	value T
}

func NewSkipList[T any](cmp func(a, b T) int) *SkipList[T] {
	return &SkipList[T]{
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cmp:    cmp,
		head:   &skipListNode[T]{next: make([]*skipListNode[T], skipListMaxHeight)},
		height: 1,
	}
}

func (s *SkipList[T]) Len() int { return s.length }

// Insert adds value to the list.
// REQUIRES: nothing that compares equal to value is currently in the list.
func (s *SkipList[T]) Insert(value T) {
	prev := make([]*skipListNode[T], skipListMaxHeight)
	s.lastBefore(s.lessThan(value), prev)

	height := s.randomHeight()
	node := &skipListNode[T]{next: make([]*skipListNode[T], height), value: value}
	if height > s.height {
		for i := s.height; i < height; i++ {
			prev[i] = s.head
		}
		s.height = height
	}
	for i := 0; i < height; i++ {
		node.next[i] = prev[i].next[i]
		prev[i].next[i] = node
	}
	s.length++
}

// Delete removes the value comparing equal to value. Returns whether a value
// was removed.
func (s *SkipList[T]) Delete(value T) bool {
	prev := make([]*skipListNode[T], skipListMaxHeight)
	s.lastBefore(s.lessThan(value), prev)
	node := prev[0].next[0]
	if node == nil || s.cmp(node.value, value) != 0 {
		return false
	}
	for i := 0; i < len(node.next); i++ {
		if prev[i].next[i] == node {
			prev[i].next[i] = node.next[i]
		}
	}
	for s.height > 1 && s.head.next[s.height-1] == nil {
		s.height--
	}
	s.length--
	return true
}

// Contains returns true iff a value that compares equal to value is in the
// list.
func (s *SkipList[T]) Contains(value T) bool {
	node := s.lastBefore(s.lessThan(value), nil).next[0]
	return node != nil && s.cmp(node.value, value) == 0
}

func (s *SkipList[T]) lessThan(value T) func(T) bool {
	return func(v T) bool { return s.cmp(v, value) < 0 }
}

// lastBefore returns the last node for which before holds, or the head when
// there is none. before must hold for a prefix of the list. When prev is
// provided, it receives the rightmost node visited on each level.
func (s *SkipList[T]) lastBefore(before func(T) bool, prev []*skipListNode[T]) *skipListNode[T] {
	x := s.head
	level := s.height - 1
	for {
		next := x.next[level]
		if next != nil && before(next.value) {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return x
		}
		level--
	}
}

func (s *SkipList[T]) last() *skipListNode[T] {
	x := s.head
	level := s.height - 1
	for {
		next := x.next[level]
		if next != nil {
			x = next
		} else if level > 0 {
			level--
		} else {
			return x
		}
	}
}

func (s *SkipList[T]) randomHeight() int {
	height := 1
	for height < skipListMaxHeight && s.rnd.Int63()%skipListBranching == 0 {
		height++
	}
	return height
}

// SkipListIterator walks over the contents of a skip list.
type SkipListIterator[T any] struct {
	list *SkipList[T]
	node *skipListNode[T]
}

func (s *SkipList[T]) Iterator() *SkipListIterator[T] {
	return &SkipListIterator[T]{list: s}
}

// Valid returns true iff the iterator is positioned at a value.
func (it *SkipListIterator[T]) Valid() bool { return it.node != nil }

// Value returns the value at the current position.
// REQUIRES: Valid()
func (it *SkipListIterator[T]) Value() T { return it.node.value }

// Next advances to the next position.
// REQUIRES: Valid()
func (it *SkipListIterator[T]) Next() { it.node = it.node.next[0] }

// Prev moves to the previous position. There are no backward links, the list
// is searched for the last node before the current one.
// REQUIRES: Valid()
func (it *SkipListIterator[T]) Prev() {
	it.setOrNil(it.list.lastBefore(it.list.lessThan(it.node.value), nil))
}

// SeekFirstWhere positions the iterator at the first value for which before
// does not hold.
func (it *SkipListIterator[T]) SeekFirstWhere(before func(T) bool) {
	it.node = it.list.lastBefore(before, nil).next[0]
}

// SeekLastWhere positions the iterator at the last value for which holds
// holds. holds must be true for a prefix of the list.
func (it *SkipListIterator[T]) SeekLastWhere(holds func(T) bool) {
	it.setOrNil(it.list.lastBefore(holds, nil))
}

func (it *SkipListIterator[T]) SeekToFirst() { it.node = it.list.head.next[0] }

func (it *SkipListIterator[T]) SeekToLast() { it.setOrNil(it.list.last()) }

func (it *SkipListIterator[T]) setOrNil(node *skipListNode[T]) {
	if node == it.list.head {
		node = nil
	}
	it.node = node
}
