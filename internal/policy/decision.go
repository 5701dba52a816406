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

package policy

import "github.com/solawi-ev/policy-gateway/internal/hookproto"

// ConnectionLogRow is the audit row declared for every non-data stage.
type ConnectionLogRow struct {
	ClientIP string
	Stage    string
	Action   string
	Details  string
}

// MessageLogRow is the audit row declared for the data stage.
type MessageLogRow struct {
	FromAddress string
	ToAddresses []string
	Subject     string
	MessageSize int64
	Action      string
	QueueID     string
}

// Decision is the result of a single Decide call: a verdict, the reason for
// it, the header modifications to relay on accept, and exactly one of
// ConnectionLog or MessageLog describing the audit row the caller must
// write.
type Decision struct {
	Verdict       Verdict
	Reason        string
	SMTPCode      int
	Modifications []hookproto.Modification
	ConnectionLog *ConnectionLogRow
	MessageLog    *MessageLogRow
}

// subjectLimit is the maximum number of bytes of a Subject header stored in
// the message log, matching the SMTP line length limit.
const subjectLimit = 998

func newConnectionDecision(verdict Verdict, code int, reason, clientIP, stage, details string) Decision {
	return Decision{
		Verdict:  verdict,
		Reason:   reason,
		SMTPCode: code,
		ConnectionLog: &ConnectionLogRow{
			ClientIP: clientIP,
			Stage:    stage,
			Action:   verdict.String(),
			Details:  details,
		},
	}
}
