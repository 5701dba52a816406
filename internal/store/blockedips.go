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

import "database/sql"

// upsertBlockedIP inserts a new block or reactivates an existing one,
// refreshing reason and blocked_at.
func upsertBlockedIP(tx *Tx, blocked *BlockedIPRow) error {
	const query = `
		insert into "blocked_ips" (
			"ip", "reason", "blocked_at", "active"
		) values (
			:ip, :reason, :blocked_at, :active
		)
		on conflict ("ip") do update set
			"reason"     = excluded."reason",
			"blocked_at" = excluded."blocked_at",
			"active"     = excluded."active" ;
	`

	_, err := tx.NamedExec(query, blocked)
	return err
}

// setBlockedIPActive toggles active on the block for the given ip.
func setBlockedIPActive(tx *Tx, ip string, active bool) error {
	const query = `
		update "blocked_ips"
		set "active" = $1
		where "ip" = $2 ;
	`

	result, err := tx.Exec(query, active, ip)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// isBlockedIP reports whether ip has an active block.
func isBlockedIP(tx *Tx, ip string) (bool, error) {
	const query = `
		select count(*)
		from "blocked_ips"
		where "ip" = $1
		  and "active" = 1 ;
	`

	var count int
	if err := tx.Get(&count, query, ip); err != nil {
		return false, err
	}

	return count > 0, nil
}

// findBlockedIP returns the block row for ip, if any.
func findBlockedIP(tx *Tx, ip string) (*BlockedIPRow, error) {
	const query = `
		select *
		from "blocked_ips"
		where "ip" = $1 ;
	`

	var blocked BlockedIPRow
	if err := tx.Get(&blocked, query, ip); err != nil {
		return nil, err
	}

	return &blocked, nil
}
