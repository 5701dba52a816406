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
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when an operation references a row that does
	// not exist (e.g. set_category_active on an unknown id).
	ErrNotFound = errors.New("store: not found")

	// ErrUnauthorized is returned when an admin operation is attempted by a
	// non-admin principal.
	ErrUnauthorized = errors.New("store: unauthorized")

	// ErrConflict is returned when an operation would violate an invariant,
	// e.g. a duplicate active category email_address (I3) or a duplicate
	// active subscription pair (I2).
	ErrConflict = errors.New("store: conflict")

	// ErrMalformed is returned when an operation's input payload cannot be
	// parsed.
	ErrMalformed = errors.New("store: malformed payload")
)

// IsErrNoRows checks if an error is caused by an empty sql result set.
func IsErrNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsErrUnique checks if an error is caused by a unique constraint, which in
// this schema backs invariants I2, I3 and I4.
func IsErrUnique(err error) bool {
	return isErrSqliteExtended(err, sqlite3.ErrConstraintUnique)
}

func isErrSqliteExtended(err error, extendedCode sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error

	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == extendedCode
}
