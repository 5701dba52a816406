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

// AccountRow is the entity for the "accounts" table.
type AccountRow struct {
	ID         int64          `db:"id"`
	Identity   sql.NullString `db:"identity"`
	Name       string         `db:"name"`
	Email      string         `db:"email"`
	IsActive   bool           `db:"is_active"`
	LastSynced int64          `db:"last_synced"`
}

// MessageCategoryRow is the entity for the "message_categories" table.
type MessageCategoryRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	EmailAddress string `db:"email_address"`
	Active       bool   `db:"active"`
}

// SubscriptionRow is the entity for the "subscriptions" table.
type SubscriptionRow struct {
	ID                  int64         `db:"id"`
	CategoryID          int64         `db:"category_id"`
	SubscriberAccountID sql.NullInt64 `db:"subscriber_account_id"`
	SubscriberEmail     string        `db:"subscriber_email"`
	SubscribedAt        int64         `db:"subscribed_at"`
	Active              bool          `db:"active"`
}

// BlockedIPRow is the entity for the "blocked_ips" table.
type BlockedIPRow struct {
	IP        string `db:"ip"`
	Reason    string `db:"reason"`
	BlockedAt int64  `db:"blocked_at"`
	Active    bool   `db:"active"`
}

// MtaConnectionLogRow is the entity for the "mta_connection_log" table,
// append-only per invariant I6.
type MtaConnectionLogRow struct {
	ID        int64  `db:"id"`
	ClientIP  string `db:"client_ip"`
	Stage     string `db:"stage"`
	Action    string `db:"action"`
	Timestamp int64  `db:"timestamp"`
	Details   string `db:"details"`
}

// MtaMessageLogRow is the entity for the "mta_message_log" table, append-only
// per invariant I6. ToAddresses is stored as a JSON-encoded TEXT column.
type MtaMessageLogRow struct {
	ID          int64          `db:"id"`
	FromAddress string         `db:"from_address"`
	ToAddresses string         `db:"to_addresses"`
	Subject     string         `db:"subject"`
	MessageSize int64          `db:"message_size"`
	Stage       string         `db:"stage"`
	Action      string         `db:"action"`
	Timestamp   int64          `db:"timestamp"`
	QueueID     sql.NullString `db:"queue_id"`
}
