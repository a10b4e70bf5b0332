package cache

import "time"

// nilIndex marks the absence of a neighbour in the recency list.
const nilIndex int32 = -1

// node is one arena slot. Slots are addressed by index so the list never
// holds pointers into itself.
type node struct {
	key       string
	entry     Entry
	expiresAt time.Time
	prev      int32
	next      int32
}

// recency is a doubly-linked list over an arena of nodes.
// head is the most recently used slot, tail the least recently used.
// Released slots are chained through next on the free list.
type recency struct {
	nodes []node
	head  int32
	tail  int32
	free  int32
	len   int
}

func newRecency(capacity int) recency {
	return recency{
		nodes: make([]node, 0, capacity),
		head:  nilIndex,
		tail:  nilIndex,
		free:  nilIndex,
	}
}

// alloc returns an unlinked slot.
func (r *recency) alloc() int32 {
	if r.free != nilIndex {
		i := r.free
		r.free = r.nodes[i].next
		r.nodes[i] = node{prev: nilIndex, next: nilIndex}
		return i
	}
	r.nodes = append(r.nodes, node{prev: nilIndex, next: nilIndex})
	return int32(len(r.nodes) - 1)
}

// release returns an unlinked slot to the free list.
func (r *recency) release(i int32) {
	r.nodes[i] = node{prev: nilIndex, next: r.free}
	r.free = i
}

func (r *recency) unlink(i int32) {
	n := &r.nodes[i]
	if n.prev != nilIndex {
		r.nodes[n.prev].next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nilIndex {
		r.nodes[n.next].prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev, n.next = nilIndex, nilIndex
	r.len--
}

func (r *recency) linkAtHead(i int32) {
	n := &r.nodes[i]
	n.prev = nilIndex
	n.next = r.head
	if r.head != nilIndex {
		r.nodes[r.head].prev = i
	}
	r.head = i
	if r.tail == nilIndex {
		r.tail = i
	}
	r.len++
}

func (r *recency) moveToHead(i int32) {
	if r.head == i {
		return
	}
	r.unlink(i)
	r.linkAtHead(i)
}

// each walks the list from most to least recently used until fn returns false.
func (r *recency) each(fn func(i int32) bool) {
	for i := r.head; i != nilIndex; i = r.nodes[i].next {
		if !fn(i) {
			return
		}
	}
}
