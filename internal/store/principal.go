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

// Principal is the concrete form of the opaque bearer credential presented
// on admin operations. Claims is the full claim set from the credential; the
// Gateway never interprets any claim beyond what IsAdmin inspects.
type Principal struct {
	Subject string
	Claims  map[string]interface{}
}

// adminClaimKeys are the claim names IsAdmin treats as admin grants. The
// open question in spec.md §9 ("staff OR superuser OR specific group
// memberships, but the sources do not fix it") is resolved here: any of
// "staff", "superuser" or membership of the "policy-admins" group, read
// from the credential's own claims rather than invented fields.
var adminClaimKeys = []string{"staff", "superuser"}

const adminGroup = "policy-admins"

// IsAdmin reports whether p carries one of the admin claims. It is the
// single predicate every admin-gated operation calls; callers must not
// reimplement this check.
func IsAdmin(p Principal) bool {
	for _, key := range adminClaimKeys {
		if truthy, ok := p.Claims[key].(bool); ok && truthy {
			return true
		}
	}

	groups, ok := p.Claims["groups"].([]string)
	if !ok {
		return false
	}

	for _, group := range groups {
		if group == adminGroup {
			return true
		}
	}

	return false
}
