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

// Package policy holds the deterministic decision rules that turn a hook
// stage plus store state into a verdict. It performs only reads and pure
// computation; all writes are declared in the returned Decision and
// committed by the caller.
package policy

import "github.com/solawi-ev/policy-gateway/internal/hookproto"

// Verdict is one of the three terminal outcomes of a hook decision, ordered
// ACCEPT < QUARANTINE < REJECT so that WorstOf always picks the strictest.
type Verdict int

const (
	Accept Verdict = iota
	Quarantine
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "ACCEPT"
	case Quarantine:
		return "QUARANTINE"
	case Reject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// Action converts a Verdict to its wire representation.
func (v Verdict) Action() hookproto.Action {
	switch v {
	case Accept:
		return hookproto.ActionAccept
	case Reject:
		return hookproto.ActionReject
	default:
		return hookproto.ActionQuarantine
	}
}

// WorstOf returns the strictest of two verdicts under ACCEPT < QUARANTINE < REJECT.
func WorstOf(a, b Verdict) Verdict {
	if b > a {
		return b
	}

	return a
}
