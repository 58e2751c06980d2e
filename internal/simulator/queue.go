package simulator

import (
	"container/heap"
	"time"
)

// task is one node waiting for, or holding, a slot.
type task struct {
	id       string
	key      string
	order    int
	duration time.Duration
	// eligibleAt is the time the last dependency finished.
	eligibleAt time.Duration
	end        time.Duration
}

// waitQueue orders tasks by (eligibleAt, order).
type waitQueue []*task

func (q waitQueue) Len() int { return len(q) }
func (q waitQueue) Less(i, j int) bool {
	if q[i].eligibleAt != q[j].eligibleAt {
		return q[i].eligibleAt < q[j].eligibleAt
	}
	return before(q[i], q[j])
}
func (q waitQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *waitQueue) Push(x any)   { *q = append(*q, x.(*task)) }
func (q *waitQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return t
}

// runQueue orders started tasks by (end, order).
type runQueue []*task

func (q runQueue) Len() int { return len(q) }
func (q runQueue) Less(i, j int) bool {
	if q[i].end != q[j].end {
		return q[i].end < q[j].end
	}
	return before(q[i], q[j])
}
func (q runQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *runQueue) Push(x any)   { *q = append(*q, x.(*task)) }
func (q *runQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return t
}

func before(a, b *task) bool {
	if a.order != b.order {
		return a.order < b.order
	}
	return a.id < b.id
}

// pool is the set of slots for one affinity key.
type pool struct {
	key      string
	capacity int
	running  int
	waiting  waitQueue
}

func (p *pool) push(t *task) { heap.Push(&p.waiting, t) }

// take removes the next waiting task if a slot is free.
func (p *pool) take() (*task, bool) {
	if p.running >= p.capacity || p.waiting.Len() == 0 {
		return nil, false
	}
	p.running++
	return heap.Pop(&p.waiting).(*task), true
}
