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
	"context"
	"fmt"
	"time"
)

// SeedTestAccounts inserts n synthetic, active accounts, supplementing the
// original Rust module's add_test_accounts reducer. It is an operator
// convenience; neither the admin shell nor the HTTP surface calls it.
func (s *Store) SeedTestAccounts(ctx context.Context, n int) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().Unix()

	for i := 1; i <= n; i++ {
		account := AccountRow{
			ID:         int64(i),
			Name:       fmt.Sprintf("Test Account %d", i),
			Email:      fmt.Sprintf("test-account-%d@example.org", i),
			IsActive:   true,
			LastSynced: now,
		}

		if err := upsertAccount(tx, &account); err != nil {
			_ = tx.RollbackWith(func() {})
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "accounts", Op: DeltaInsert}})
	return nil
}
