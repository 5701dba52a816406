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

// insertConnectionLog appends a row to mta_connection_log. Per invariant I6
// this table has no corresponding update/delete query.
func insertConnectionLog(tx *Tx, row *MtaConnectionLogRow) error {
	const query = `
		insert into "mta_connection_log" (
			"client_ip", "stage", "action", "timestamp", "details"
		) values (
			:client_ip, :stage, :action, :timestamp, :details
		) ;
	`

	result, err := tx.NamedExec(query, row)
	if err != nil {
		return err
	}

	row.ID, err = result.LastInsertId()
	return err
}

// insertMessageLog appends a row to mta_message_log. Per invariant I6 this
// table has no corresponding update/delete query.
func insertMessageLog(tx *Tx, row *MtaMessageLogRow) error {
	const query = `
		insert into "mta_message_log" (
			"from_address", "to_addresses", "subject", "message_size",
			"stage", "action", "timestamp", "queue_id"
		) values (
			:from_address, :to_addresses, :subject, :message_size,
			:stage, :action, :timestamp, :queue_id
		) ;
	`

	result, err := tx.NamedExec(query, row)
	if err != nil {
		return err
	}

	row.ID, err = result.LastInsertId()
	return err
}

// findConnectionLogs returns connection log rows, most recent first, used by
// the admin shell and Store.DumpLogs.
func findConnectionLogs(tx *Tx, limit int) ([]MtaConnectionLogRow, error) {
	const query = `
		select *
		from "mta_connection_log"
		order by "id" desc
		limit $1 ;
	`

	var rows []MtaConnectionLogRow
	if err := tx.Select(&rows, query, limit); err != nil {
		return nil, err
	}

	return rows, nil
}

// findMessageLogs returns message log rows, most recent first, used by the
// admin shell and Store.DumpLogs.
func findMessageLogs(tx *Tx, limit int) ([]MtaMessageLogRow, error) {
	const query = `
		select *
		from "mta_message_log"
		order by "id" desc
		limit $1 ;
	`

	var rows []MtaMessageLogRow
	if err := tx.Select(&rows, query, limit); err != nil {
		return nil, err
	}

	return rows, nil
}
