// evs-recorder - accumulate event camera output into fixed length frames
//  Copyright (C) 2025, The OpenEVS Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package chunkqueue

import (
	"sync"

	"github.com/openevs/evs-recorder/event"
)

// Queue is a bounded FIFO of event chunks. It is the single handoff point
// between the driver's ingestion callback and the windowing consumer. When
// the queue is full the producer blocks, which pushes backpressure up to
// the driver instead of silently dropping events or growing without bound.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks []event.Chunk
	limit  int
	closed bool
}

// New returns a queue holding at most capacity chunks.
func New(capacity int) *Queue {
	q := &Queue{limit: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends chunk to the queue, blocking while the queue is full.
// It returns false, discarding the chunk, if the queue has been closed.
func (q *Queue) Enqueue(chunk event.Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.chunks) >= q.limit && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return false
	}
	q.chunks = append(q.chunks, chunk)
	q.cond.Broadcast()
	return true
}

// Dequeue removes and returns the oldest chunk, blocking while the queue is
// empty. After Close, chunks still queued are delivered in order; once the
// queue has drained Dequeue returns nil, false.
func (q *Queue) Dequeue() (event.Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.chunks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	q.cond.Broadcast()
	return chunk, true
}

// Close wakes all blocked producers and consumers. Producers discard their
// chunks; the consumer drains what remains and then stops. Close is
// idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Discard drops all queued chunks without delivering them.
func (q *Queue) Discard() {
	q.mu.Lock()
	q.chunks = nil
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
