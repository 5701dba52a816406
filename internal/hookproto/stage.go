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

// Package hookproto defines the wire types exchanged with the MTA over the
// mta-hook and user-sync HTTP endpoints.
package hookproto

import (
	"encoding/json"
	"errors"
)

// ErrUnknownStage is returned when context.stage is not one of the six known
// values.
var ErrUnknownStage = errors.New("hookproto: unknown stage")

// Stage is one of the six points in the SMTP session where a hook may be issued.
type Stage int

const (
	// StageConnect corresponds to the incoming TCP connection.
	StageConnect Stage = iota
	// StageEhlo corresponds to the EHLO/HELO command.
	StageEhlo
	// StageMail corresponds to the MAIL FROM command.
	StageMail
	// StageRcpt corresponds to the RCPT TO command.
	StageRcpt
	// StageData corresponds to the DATA command and full message.
	StageData
	// StageAuth corresponds to an authentication attempt.
	StageAuth
)

var stageNames = [...]string{
	StageConnect: "connect",
	StageEhlo:    "ehlo",
	StageMail:    "mail",
	StageRcpt:    "rcpt",
	StageData:    "data",
	StageAuth:    "auth",
}

// String returns the wire name of the stage.
func (s Stage) String() string {
	if int(s) < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}

	return stageNames[s]
}

// MarshalJSON implements json.Marshaler.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for i, candidate := range stageNames {
		if candidate == name {
			*s = Stage(i)
			return nil
		}
	}

	return ErrUnknownStage
}
