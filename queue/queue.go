// Package queue implements a capacity limited max-priority queue.
//
// The queue does not keep itself sorted when the ranking inputs of the
// contained items change. Callers that mutate those inputs in place call
// Rebuild before relying on the order again, typically once per scheduling
// cycle.
//
// When the queue is full, an inserted item competes with the lowest ranked
// item in the queue, judged by the current ranking inputs even when the
// queue was not rebuilt since they changed. If it outranks it, the lowest
// ranked item is evicted and returned to the caller, otherwise the insert
// is refused.
package queue

import "container/heap"

// Queue is a bounded max-priority queue. It is not safe for concurrent use.
type Queue[T any] struct {
	items    items[T]
	capacity int
}

type items[T any] struct {
	list   []T
	higher func(a, b T) bool
}

func (it *items[T]) Len() int           { return len(it.list) }
func (it *items[T]) Less(i, j int) bool { return it.higher(it.list[i], it.list[j]) }
func (it *items[T]) Swap(i, j int)      { it.list[i], it.list[j] = it.list[j], it.list[i] }
func (it *items[T]) Push(x any)         { it.list = append(it.list, x.(T)) }

func (it *items[T]) Pop() any {
	var zero T
	n := len(it.list) - 1
	x := it.list[n]
	it.list[n] = zero
	it.list = it.list[:n]
	return x
}

// New creates a queue holding at most capacity items. The higher function
// reports whether a outranks b. Negative capacity is treated as zero.
func New[T any](capacity int, higher func(a, b T) bool) *Queue[T] {
	capacity = max(capacity, 0)
	return &Queue[T]{
		items:    items[T]{list: make([]T, 0, capacity), higher: higher},
		capacity: capacity,
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.items.list) }

// Capacity returns the maximum number of queued items.
func (q *Queue[T]) Capacity() int { return q.capacity }

// lowest returns the index of the lowest ranked item. The ranking inputs
// may have changed since the last Rebuild, so the heap order cannot be
// trusted and every item is compared.
func (q *Queue[T]) lowest() int {
	var low int
	for i := 1; i < len(q.items.list); i++ {
		if q.items.higher(q.items.list[low], q.items.list[i]) {
			low = i
		}
	}

	return low
}

// Insert adds item to the queue. When the queue is full, the item replaces
// the lowest ranked item if it strictly outranks it, and the replaced item
// is returned in dropped. When ok is false, the item was not queued.
func (q *Queue[T]) Insert(item T) (dropped []T, ok bool) {
	if q.Len() < q.capacity {
		heap.Push(&q.items, item)
		return nil, true
	}

	if q.Len() == 0 {
		return nil, false
	}

	low := q.lowest()
	if !q.items.higher(item, q.items.list[low]) {
		return nil, false
	}

	dropped = []T{q.items.list[low]}
	q.items.list[low] = item
	heap.Fix(&q.items, low)
	return dropped, true
}

// PopMax removes and returns the highest ranked item. It returns false when
// the queue is empty.
func (q *Queue[T]) PopMax() (T, bool) {
	if q.Len() == 0 {
		var zero T
		return zero, false
	}

	return heap.Pop(&q.items).(T), true
}

// Peek returns the highest ranked item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.Len() == 0 {
		var zero T
		return zero, false
	}

	return q.items.list[0], true
}

// Rebuild restores the heap order after the ranking inputs of the queued
// items were changed.
func (q *Queue[T]) Rebuild() {
	heap.Init(&q.items)
}

// Resize changes the capacity of the queue. When the new capacity is lower
// than the current length, the lowest ranked items are evicted first, and
// returned in the order of eviction. The heap order is rebuilt before
// choosing the items to evict.
func (q *Queue[T]) Resize(capacity int) (dropped []T) {
	q.capacity = max(capacity, 0)
	if q.Len() <= q.capacity {
		return nil
	}

	q.Rebuild()
	for q.Len() > q.capacity {
		dropped = append(dropped, heap.Remove(&q.items, q.lowest()).(T))
	}

	return dropped
}

// Range calls f for each queued item in heap order, until f returns false.
func (q *Queue[T]) Range(f func(T) bool) {
	for _, item := range q.items.list {
		if !f(item) {
			return
		}
	}
}
