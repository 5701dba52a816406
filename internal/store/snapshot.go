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

import "github.com/solawi-ev/policy-gateway/internal/policy"

// txSnapshot implements policy.Snapshot over a single open transaction, so
// every read a Decide call performs observes one consistent point-in-time
// view of the store.
type txSnapshot struct {
	tx *Tx
}

var _ policy.Snapshot = (*txSnapshot)(nil)

func (s *txSnapshot) IsBlockedIP(ip string) (bool, error) {
	return isBlockedIP(s.tx, ip)
}

func (s *txSnapshot) CategoriesByAddress(address string) ([]policy.CategoryRef, error) {
	rows, err := findMessageCategoriesByAddress(s.tx, address)
	if err != nil {
		return nil, err
	}

	refs := make([]policy.CategoryRef, len(rows))
	for i, row := range rows {
		refs[i] = policy.CategoryRef{ID: row.ID, Active: row.Active}
	}

	return refs, nil
}

func (s *txSnapshot) HasActiveSubscription(subscriberEmail string, categoryID int64) (bool, error) {
	return hasActiveSubscription(s.tx, subscriberEmail, categoryID)
}
