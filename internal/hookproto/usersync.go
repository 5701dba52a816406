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

package hookproto

// SyncAction selects the user-sync operation.
type SyncAction string

const (
	SyncUpsert SyncAction = "upsert"
	SyncDelete SyncAction = "delete"
)

// UserSyncRequest is the body of a POST /user-sync call.
type UserSyncRequest struct {
	Action SyncAction      `json:"action"`
	User   UserSyncPayload `json:"user"`
}

// UserSyncPayload carries the account fields known to the upstream identity
// source. Pointer fields are optional and left unchanged on upsert when nil.
type UserSyncPayload struct {
	Mitgliedsnr int64   `json:"mitgliedsnr"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	IsActive    *bool   `json:"is_active"`
	UpdatedAt   *string `json:"updated_at"`
}

// UserSyncResponse is the body returned from POST /user-sync.
type UserSyncResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
