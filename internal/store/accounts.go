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

// findAccountByID returns the account with the given id.
func findAccountByID(tx *Tx, id int64) (*AccountRow, error) {
	const query = `
		select *
		from "accounts"
		where "id" = $1 ;
	`

	var account AccountRow
	if err := tx.Get(&account, query, id); err != nil {
		return nil, err
	}

	return &account, nil
}

// upsertAccount inserts a new account or replaces an existing one's mutable
// fields, preserving "identity" when already bound.
func upsertAccount(tx *Tx, account *AccountRow) error {
	const query = `
		insert into "accounts" (
			"id", "identity", "name", "email", "is_active", "last_synced"
		) values (
			:id, :identity, :name, :email, :is_active, :last_synced
		)
		on conflict ("id") do update set
			"name"        = excluded."name",
			"email"       = excluded."email",
			"is_active"   = excluded."is_active",
			"last_synced" = excluded."last_synced" ;
	`

	_, err := tx.NamedExec(query, account)
	return err
}

// deleteAccount removes the account with the given id.
func deleteAccount(tx *Tx, id int64) error {
	const query = `
		delete from "accounts"
		where "id" = $1 ;
	`

	_, err := tx.Exec(query, id)
	return err
}
