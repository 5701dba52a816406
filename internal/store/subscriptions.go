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

// insertSubscription inserts a new, active subscription.
func insertSubscription(tx *Tx, subscription *SubscriptionRow) error {
	const query = `
		insert into "subscriptions" (
			"category_id", "subscriber_account_id", "subscriber_email", "subscribed_at", "active"
		) values (
			:category_id, :subscriber_account_id, :subscriber_email, :subscribed_at, :active
		) ;
	`

	result, err := tx.NamedExec(query, subscription)
	if err != nil {
		return err
	}

	subscription.ID, err = result.LastInsertId()
	return err
}

// setSubscriptionActive toggles active on the subscription with the given id.
func setSubscriptionActive(tx *Tx, id int64, active bool) error {
	const query = `
		update "subscriptions"
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

// hasActiveSubscription reports whether subscriberEmail holds an active
// subscription to categoryID, matching the email with mails.EqualFold rather
// than sql "lower()" so that unicode domains fold correctly, not just ASCII.
func hasActiveSubscription(tx *Tx, subscriberEmail string, categoryID int64) (bool, error) {
	const query = `
		select *
		from "subscriptions"
		where "category_id" = $1
		  and "active" = 1 ;
	`

	var subscriptions []SubscriptionRow
	if err := tx.Select(&subscriptions, query, categoryID); err != nil {
		return false, err
	}

	for _, subscription := range subscriptions {
		if mails.EqualFold(subscription.SubscriberEmail, subscriberEmail) {
			return true, nil
		}
	}

	return false, nil
}
