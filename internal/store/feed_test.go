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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDeliversDeltasInOrder(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()

	feed.Publish([]Delta{{Relation: "blocked_ips", Op: DeltaInsert}})
	feed.Publish([]Delta{{Relation: "blocked_ips", Op: DeltaUpdate}})

	select {
	case deltas := <-sub.C:
		assert.Equal(t, DeltaInsert, deltas[0].Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first delta batch")
	}

	select {
	case deltas := <-sub.C:
		assert.Equal(t, DeltaUpdate, deltas[0].Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second delta batch")
	}
}

func TestFeedPublishDeliversAtomically(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()

	feed.Publish([]Delta{
		{Relation: "message_categories", Op: DeltaInsert},
		{Relation: "subscriptions", Op: DeltaInsert},
	})

	select {
	case deltas := <-sub.C:
		require.Len(t, deltas, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestFeedUnsubscribeClosesChannel(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()
	sub.Unsubscribe()

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestFeedDropsBackloggedSubscriber(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()

	for i := 0; i < subscriberBacklog+1; i++ {
		feed.Publish([]Delta{{Relation: "blocked_ips", Op: DeltaInsert}})
	}

	feed.mu.Lock()
	_, stillSubscribed := feed.subscribers[sub.id]
	feed.mu.Unlock()

	assert.False(t, stillSubscribed)
}
