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

package policy

// CategoryRef is the subset of a MessageCategory row the engine needs to
// resolve a recipient and check subscriptions.
type CategoryRef struct {
	ID     int64
	Active bool
}

// Snapshot is a read-only, point-in-time view of the store, implemented in
// package store over a single transaction. All reads within one Decide call
// observe the same snapshot.
type Snapshot interface {
	// IsBlockedIP reports whether ip has an active BlockedIP row.
	IsBlockedIP(ip string) (bool, error)

	// CategoriesByAddress returns every MessageCategory (active or not)
	// whose email_address matches address case-insensitively, ordered by
	// id ascending so the caller can apply the smallest-id tie-break from
	// invariant I3's defence-in-depth rule.
	CategoriesByAddress(address string) ([]CategoryRef, error)

	// HasActiveSubscription reports whether subscriberEmail holds an
	// active Subscription to categoryID.
	HasActiveSubscription(subscriberEmail string, categoryID int64) (bool, error)
}

// resolveCategory applies the rcpt/data resolution rule: look up active
// categories matching address case-insensitively, tie-break on the smallest
// id when more than one is active (I3 forbids this in steady state, but the
// engine defends against it), and report whether any row at all matched so
// callers can distinguish "unknown recipient" from "inactive category".
func resolveCategory(snap Snapshot, address string) (category CategoryRef, found, anyActive bool, warning string, err error) {
	refs, err := snap.CategoriesByAddress(address)
	if err != nil {
		return CategoryRef{}, false, false, "", err
	}

	if len(refs) == 0 {
		return CategoryRef{}, false, false, "", nil
	}

	var active []CategoryRef
	for _, ref := range refs {
		if ref.Active {
			active = append(active, ref)
		}
	}

	if len(active) == 0 {
		return refs[0], true, false, "", nil
	}

	if len(active) > 1 {
		warning = "multiple active categories share this email address; using the smallest id"
	}

	return active[0], true, true, warning, nil
}
