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
	"database/sql"

	"github.com/solawi-ev/policy-gateway/internal/mails"
)

// insertMessageCategory inserts a new, active message category.
func insertMessageCategory(tx *Tx, category *MessageCategoryRow) error {
	const query = `
		insert into "message_categories" (
			"name", "description", "email_address", "active"
		) values (
			:name, :description, :email_address, :active
		) ;
	`

	result, err := tx.NamedExec(query, category)
	if err != nil {
		return err
	}

	category.ID, err = result.LastInsertId()
	return err
}

// setMessageCategoryActive toggles active on the category with the given id.
func setMessageCategoryActive(tx *Tx, id int64, active bool) error {
	const query = `
		update "message_categories"
		set "active" = $1
		where "id" = $2 ;
	`

	result, err := tx.Exec(query, active, id)
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

// findMessageCategoryByID returns the category with the given id.
func findMessageCategoryByID(tx *Tx, id int64) (*MessageCategoryRow, error) {
	const query = `
		select *
		from "message_categories"
		where "id" = $1 ;
	`

	var category MessageCategoryRow
	if err := tx.Get(&category, query, id); err != nil {
		return nil, err
	}

	return &category, nil
}

// findMessageCategoriesByAddress returns every category (active or not)
// whose email_address matches address case-insensitively, ordered by id
// ascending. Matching is done with mails.EqualFold rather than sql "lower()"
// so that unicode domains fold correctly, not just ASCII.
func findMessageCategoriesByAddress(tx *Tx, address string) ([]MessageCategoryRow, error) {
	const query = `
		select *
		from "message_categories"
		order by "id" asc ;
	`

	var all []MessageCategoryRow
	if err := tx.Select(&all, query); err != nil {
		return nil, err
	}

	var categories []MessageCategoryRow
	for _, category := range all {
		if mails.EqualFold(category.EmailAddress, address) {
			categories = append(categories, category)
		}
	}

	return categories, nil
}
