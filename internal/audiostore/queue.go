package audiostore

import (
	"container/heap"
	"time"
)

// expiryQueue is a min-heap of assets ordered by ExpiresAt.
type expiryQueue []Asset

func (q expiryQueue) Len() int { return len(q) }

func (q expiryQueue) Less(i, j int) bool {
	if q[i].ExpiresAt.Equal(q[j].ExpiresAt) {
		return q[i].ID < q[j].ID
	}
	return q[i].ExpiresAt.Before(q[j].ExpiresAt)
}

func (q expiryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(Asset)) }

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = Asset{}
	*q = old[:n-1]
	return a
}

func (q *expiryQueue) push(a Asset) { heap.Push(q, a) }

// peek returns the earliest deadline.
func (q expiryQueue) peek() (time.Time, bool) {
	if len(q) == 0 {
		return time.Time{}, false
	}
	return q[0].ExpiresAt, true
}

// popDue removes and returns every entry due at or before now.
func (q *expiryQueue) popDue(now time.Time) []Asset {
	var due []Asset
	for q.Len() > 0 && !(*q)[0].ExpiresAt.After(now) {
		due = append(due, heap.Pop(q).(Asset))
	}
	return due
}
