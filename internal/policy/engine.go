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

import (
	"strconv"
	"strings"
	"time"

	"github.com/solawi-ev/policy-gateway/internal/hookproto"
	"github.com/solawi-ev/policy-gateway/internal/mails"
)

// GatewayIdentity is the value written into the X-Processed-By header on
// accept. It is a package variable rather than a parameter so the gateway
// binary can set it once from configuration without threading it through
// every Decide call.
var GatewayIdentity = "solawi-policy-gateway"

// Engine is the single dispatch point for turning a parsed hook request into
// a Decision. It holds no state of its own; every Decide call is a pure
// function of its arguments and the given Snapshot.
type Engine struct {
	RedactIPs bool
}

// NewEngine builds an Engine. redactIPs mirrors the LOG_REDACT_IPS flag.
func NewEngine(redactIPs bool) *Engine {
	return &Engine{RedactIPs: redactIPs}
}

// Decide dispatches req to the handler for req.Context.Stage.
func (e *Engine) Decide(snap Snapshot, req hookproto.Request) (Decision, error) {
	switch req.Context.Stage {
	case hookproto.StageConnect:
		return e.decideConnect(snap, req)
	case hookproto.StageEhlo:
		return e.decideEhlo(req)
	case hookproto.StageMail:
		return e.decideMail(req)
	case hookproto.StageRcpt:
		return e.decideRcpt(snap, req)
	case hookproto.StageData:
		return e.decideData(snap, req)
	case hookproto.StageAuth:
		return e.decideAuth(req)
	default:
		return Decision{}, hookproto.ErrUnknownStage
	}
}

func (e *Engine) redactedIP(ip string) string {
	if e.RedactIPs {
		return "[REDACTED]"
	}

	return ip
}

func (e *Engine) decideConnect(snap Snapshot, req hookproto.Request) (Decision, error) {
	ip := req.Context.Client.IP

	blocked, err := snap.IsBlockedIP(ip)
	if err != nil {
		return Decision{}, err
	}

	loggedIP := e.redactedIP(ip)

	if blocked {
		return newConnectionDecision(Reject, 550, "client ip is blocked",
			loggedIP, hookproto.StageConnect.String(), "blocked ip"), nil
	}

	return newConnectionDecision(Accept, 0, "", loggedIP, hookproto.StageConnect.String(), ""), nil
}

func (e *Engine) decideEhlo(req hookproto.Request) (Decision, error) {
	ip := e.redactedIP(req.Context.Client.IP)
	helo := req.Context.Client.Helo

	if helo == nil || strings.TrimSpace(*helo) == "" {
		return newConnectionDecision(Reject, 501, "missing helo",
			ip, hookproto.StageEhlo.String(), "empty or missing helo"), nil
	}

	return newConnectionDecision(Accept, 0, "", ip, hookproto.StageEhlo.String(), ""), nil
}

func (e *Engine) decideMail(req hookproto.Request) (Decision, error) {
	ip := e.redactedIP(req.Context.Client.IP)

	from := ""
	if req.Envelope != nil {
		from = req.Envelope.From.Address
	}

	if _, err := mails.ParseAddress(from); err != nil {
		return newConnectionDecision(Reject, 550, "malformed sender address",
			ip, hookproto.StageMail.String(), "mail from rejected"), nil
	}

	return newConnectionDecision(Accept, 0, "", ip, hookproto.StageMail.String(), ""), nil
}

func (e *Engine) decideRcpt(snap Snapshot, req hookproto.Request) (Decision, error) {
	ip := e.redactedIP(req.Context.Client.IP)

	if req.Envelope == nil || len(req.Envelope.To) == 0 {
		return newConnectionDecision(Reject, 550, "missing recipient",
			ip, hookproto.StageRcpt.String(), "no recipient in envelope"), nil
	}

	// RCPT is issued once per recipient; the envelope carries every address
	// accumulated so far, so only the last one is new.
	recipient := req.Envelope.To[len(req.Envelope.To)-1].Address

	_, found, active, warning, err := resolveCategory(snap, recipient)
	if err != nil {
		return Decision{}, err
	}

	details := warning

	switch {
	case !found:
		return newConnectionDecision(Reject, 550, "unknown recipient",
			ip, hookproto.StageRcpt.String(), joinDetails("unknown recipient", details)), nil
	case !active:
		return newConnectionDecision(Reject, 550, "category inactive",
			ip, hookproto.StageRcpt.String(), joinDetails("category inactive", details)), nil
	default:
		return newConnectionDecision(Accept, 0, "", ip, hookproto.StageRcpt.String(), details), nil
	}
}

func (e *Engine) decideAuth(req hookproto.Request) (Decision, error) {
	ip := e.redactedIP(req.Context.Client.IP)
	return newConnectionDecision(Accept, 0, "", ip, hookproto.StageAuth.String(), "auth accepted unconditionally"), nil
}

func (e *Engine) decideData(snap Snapshot, req hookproto.Request) (Decision, error) {
	var (
		from string
		to   []string
	)

	if req.Envelope != nil {
		from = req.Envelope.From.Address
		for _, addr := range req.Envelope.To {
			to = append(to, addr.Address)
		}
	}

	worst := Accept
	var details []string

	for _, recipient := range to {
		category, found, active, warning, err := resolveCategory(snap, recipient)
		if err != nil {
			return Decision{}, err
		}

		if warning != "" {
			details = append(details, warning)
		}

		switch {
		case !found:
			worst = WorstOf(worst, Reject)
			details = append(details, "unknown recipient: "+recipient)
		case !active:
			worst = WorstOf(worst, Reject)
			details = append(details, "category inactive: "+recipient)
		default:
			subscribed, err := snap.HasActiveSubscription(from, category.ID)
			if err != nil {
				return Decision{}, err
			}

			if !subscribed {
				worst = WorstOf(worst, Quarantine)
				details = append(details, "no active subscription for: "+recipient)
			}
		}
	}

	var size int64
	if req.Message != nil {
		size = req.Message.Size
	}

	row := &MessageLogRow{
		FromAddress: from,
		ToAddresses: to,
		Subject:     truncateSubject(extractSubject(req.Message)),
		MessageSize: size,
		Action:      worst.String(),
	}

	if req.Context.Queue != nil {
		row.QueueID = req.Context.Queue.ID
	}

	decision := Decision{
		Verdict:    worst,
		Reason:     strings.Join(details, "; "),
		MessageLog: row,
	}

	switch worst {
	case Reject:
		decision.SMTPCode = 550
	case Quarantine:
		decision.SMTPCode = 0
	case Accept:
		decision.Modifications = []hookproto.Modification{
			hookproto.AddHeader("X-Processed-By", GatewayIdentity),
			hookproto.AddHeader("X-Processing-Time", strconv.FormatInt(currentTimestamp(), 10)),
		}
	}

	return decision, nil
}

// currentTimestamp is indirected through a variable so tests can pin it.
var currentTimestamp = func() int64 { return time.Now().Unix() }

func extractSubject(msg *hookproto.Message) string {
	if msg == nil {
		return ""
	}

	for _, header := range msg.Headers {
		if strings.EqualFold(strings.TrimSpace(header.Name()), "subject") {
			return strings.TrimRight(header.Value(), "\r\n")
		}
	}

	return ""
}

func truncateSubject(subject string) string {
	if len(subject) <= subjectLimit {
		return subject
	}

	return subject[:subjectLimit]
}

func joinDetails(primary, extra string) string {
	if extra == "" {
		return primary
	}

	return primary + "; " + extra
}
