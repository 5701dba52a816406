// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
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
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package store

import (
	"sync"

	"github.com/solawi-ev/policy-gateway/internal/log"
)

// DeltaOp is the kind of row-level change carried in a Delta.
type DeltaOp string

const (
	DeltaInsert DeltaOp = "insert"
	DeltaUpdate DeltaOp = "update"
	DeltaDelete DeltaOp = "delete"
)

// Delta is one row-level change, part of the ordered stream an admin
// subscriber sees after its initial snapshot.
type Delta struct {
	Relation string
	Op       DeltaOp
	Row      interface{}
}

// subscriberBacklog bounds how many delta batches (one per Publish call)
// queue up for a slow subscriber
// before it is dropped; the feed favours progress of committing operations
// over slow readers, matching the "at-least-once, subscribers must be
// idempotent" contract.
const subscriberBacklog = 256

// Feed is an in-process broadcast hub for committed store changes. It is the
// concrete form of the admin read-path's subscription feed: every committing
// operation calls Publish inside the same critical section that commits its
// transaction, so deltas from one operation are always delivered atomically
// and in commit order.
type Feed struct {
	mu          sync.Mutex
	subscribers map[int64]chan []Delta
	nextID      int64
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[int64]chan []Delta)}
}

// Subscription is a handle returned by Subscribe. Deltas arrives in
// commit order; C is closed once Unsubscribe is called.
type Subscription struct {
	id   int64
	C    <-chan []Delta
	feed *Feed
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.feed.unsubscribe(s.id)
}

// Subscribe registers a new subscriber and returns its handle. The caller is
// responsible for draining C promptly; a backlogged subscriber is dropped
// rather than allowed to stall committing operations.
func (f *Feed) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++

	c := make(chan []Delta, subscriberBacklog)
	f.subscribers[id] = c

	return &Subscription{id: id, C: c, feed: f}
}

func (f *Feed) unsubscribe(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.subscribers[id]; ok {
		close(c)
		delete(f.subscribers, id)
	}
}

// Publish delivers deltas atomically to every current subscriber, in commit
// order relative to other Publish calls made while holding the caller's
// transaction commit path. Callers must invoke Publish only after Commit
// succeeds.
func (f *Feed) Publish(deltas []Delta) {
	if len(deltas) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, c := range f.subscribers {
		select {
		case c <- deltas:
		default:
			log.Warn().
				Int64("subscriberId", id).
				Msg("admin feed subscriber backlog full, dropping subscriber")

			close(c)
			delete(f.subscribers, id)
		}
	}
}
