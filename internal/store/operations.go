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
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/solawi-ev/policy-gateway/internal/config"
	"github.com/solawi-ev/policy-gateway/internal/hookproto"
	"github.com/solawi-ev/policy-gateway/internal/log"
	"github.com/solawi-ev/policy-gateway/internal/policy"
)

// HandleMtaHook parses raw, dispatches it to the policy engine and commits
// exactly one audit row before returning the wire response, satisfying
// invariant I7.
func (s *Store) HandleMtaHook(ctx context.Context, engine *policy.Engine, raw []byte) (hookproto.Response, error) {
	var req hookproto.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return hookproto.Response{}, err
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return hookproto.Response{}, err
	}

	var response hookproto.Response
	err = func() error {
		decision, err := engine.Decide(&txSnapshot{tx: tx}, req)
		if err != nil {
			return err
		}

		if err := writeAuditRow(tx, decision); err != nil {
			return err
		}

		response = toResponse(decision)
		return nil
	}()

	if err != nil {
		_ = tx.RollbackWith(func() {
			log.ErrorContext(ctx).Err(err).Msg("rolled back failed mta-hook transaction")
		})
		return hookproto.Response{}, err
	}

	if err := tx.Commit(); err != nil {
		return hookproto.Response{}, err
	}

	s.feed.Publish(auditDeltas(decisionRelation(req.Context.Stage)))

	return response, nil
}

func writeAuditRow(tx *Tx, decision policy.Decision) error {
	now := time.Now().Unix()

	if decision.ConnectionLog != nil {
		row := decision.ConnectionLog
		return insertConnectionLog(tx, &MtaConnectionLogRow{
			ClientIP:  row.ClientIP,
			Stage:     row.Stage,
			Action:    row.Action,
			Timestamp: now,
			Details:   row.Details,
		})
	}

	if decision.MessageLog != nil {
		row := decision.MessageLog
		toAddresses, err := json.Marshal(row.ToAddresses)
		if err != nil {
			return err
		}

		queueID := sql.NullString{}
		if row.QueueID != "" {
			queueID = sql.NullString{String: row.QueueID, Valid: true}
		}

		return insertMessageLog(tx, &MtaMessageLogRow{
			FromAddress: row.FromAddress,
			ToAddresses: string(toAddresses),
			Subject:     row.Subject,
			MessageSize: row.MessageSize,
			Stage:       hookproto.StageData.String(),
			Action:      row.Action,
			Timestamp:   now,
			QueueID:     queueID,
		})
	}

	return nil
}

func toResponse(decision policy.Decision) hookproto.Response {
	response := hookproto.Response{
		Action:        decision.Verdict.Action(),
		Modifications: decision.Modifications,
	}

	if decision.SMTPCode != 0 {
		response.SMTPResponse = &hookproto.SMTPResponse{
			Code:    decision.SMTPCode,
			Message: decision.Reason,
		}
	}

	return response
}

// RecordHookTimeout best-effort appends a QUARANTINE connection-log row for a
// /mta-hook request whose policy decision could not be reached before its
// deadline. It uses a context detached from the expired request context, and
// swallows its own errors: unlike HandleMtaHook it is advisory, not bound by
// invariant I7's exactly-one-audit-row guarantee.
func (s *Store) RecordHookTimeout(raw []byte) {
	var req hookproto.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tx, err := s.BeginTx(ctx)
	if err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not begin timeout audit transaction")
		return
	}

	clientIP := req.Context.Client.IP
	if config.RedactIPs() {
		clientIP = "[REDACTED]"
	}

	row := MtaConnectionLogRow{
		ClientIP:  clientIP,
		Stage:     req.Context.Stage.String(),
		Action:    string(policy.Quarantine.Action()),
		Timestamp: time.Now().Unix(),
		Details:   "store timeout",
	}

	if err := insertConnectionLog(tx, &row); err != nil {
		_ = tx.RollbackWith(func() {
			log.ErrorContext(ctx).Err(err).Msg("rolled back failed timeout audit row")
		})
		return
	}

	if err := tx.Commit(); err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not commit timeout audit row")
		return
	}

	s.feed.Publish(auditDeltas("mta_connection_log"))
}

func decisionRelation(stage hookproto.Stage) string {
	if stage == hookproto.StageData {
		return "mta_message_log"
	}

	return "mta_connection_log"
}

func auditDeltas(relation string) []Delta {
	return []Delta{{Relation: relation, Op: DeltaInsert}}
}

// SyncUser creates, updates or deletes one Account per action.
func (s *Store) SyncUser(ctx context.Context, action hookproto.SyncAction, user hookproto.UserSyncPayload) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		switch action {
		case hookproto.SyncDelete:
			return deleteAccount(tx, user.Mitgliedsnr)
		case hookproto.SyncUpsert:
			return applyUserSyncUpsert(tx, user)
		default:
			return ErrMalformed
		}
	}()

	if err != nil {
		_ = tx.RollbackWith(func() {
			log.ErrorContext(ctx).Err(err).Msg("rolled back failed user-sync transaction")
		})
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "accounts", Op: syncDeltaOp(action)}})
	return nil
}

func syncDeltaOp(action hookproto.SyncAction) DeltaOp {
	if action == hookproto.SyncDelete {
		return DeltaDelete
	}

	return DeltaInsert
}

func applyUserSyncUpsert(tx *Tx, user hookproto.UserSyncPayload) error {
	existing, err := findAccountByID(tx, user.Mitgliedsnr)
	if err != nil && !IsErrNoRows(err) {
		return err
	}

	account := AccountRow{
		ID:         user.Mitgliedsnr,
		LastSynced: time.Now().Unix(),
	}

	if existing != nil {
		account.Identity = existing.Identity
		account.Name = existing.Name
		account.Email = existing.Email
		account.IsActive = existing.IsActive
	}

	if user.Name != nil {
		account.Name = *user.Name
	}

	if user.Email != nil {
		account.Email = *user.Email
	}

	if user.IsActive != nil {
		account.IsActive = *user.IsActive
	}

	return upsertAccount(tx, &account)
}

// AddMessageCategory inserts an active category with the next id. principal
// must be an admin.
func (s *Store) AddMessageCategory(ctx context.Context, principal Principal, name, emailAddress, description string) (int64, error) {
	if !IsAdmin(principal) {
		return 0, ErrUnauthorized
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}

	category := MessageCategoryRow{
		Name:         name,
		Description:  description,
		EmailAddress: emailAddress,
		Active:       true,
	}

	if err := insertMessageCategory(tx, &category); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrUnique(err) {
			return 0, ErrConflict
		}

		if rbErr != nil {
			return 0, rbErr
		}

		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.feed.Publish([]Delta{{Relation: "message_categories", Op: DeltaInsert, Row: category}})
	return category.ID, nil
}

// SetCategoryActive toggles active on the given category. principal must be
// an admin.
func (s *Store) SetCategoryActive(ctx context.Context, principal Principal, id int64, active bool) error {
	if !IsAdmin(principal) {
		return ErrUnauthorized
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := setMessageCategoryActive(tx, id, active); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrNoRows(err) {
			return ErrNotFound
		}

		if rbErr != nil {
			return rbErr
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "message_categories", Op: DeltaUpdate, Row: id}})
	return nil
}

// AddSubscription inserts an active subscription. This operation is not
// admin-gated: any subscriber may subscribe themselves per §4.3's operation
// table, which lists no authorization requirement for it.
func (s *Store) AddSubscription(ctx context.Context, accountID int64, email string, categoryID int64) (int64, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := findMessageCategoryByID(tx, categoryID); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrNoRows(err) {
			return 0, ErrNotFound
		}

		if rbErr != nil {
			return 0, rbErr
		}

		return 0, err
	}

	subscription := SubscriptionRow{
		CategoryID:          categoryID,
		SubscriberAccountID: sql.NullInt64{Int64: accountID, Valid: accountID != 0},
		SubscriberEmail:     email,
		SubscribedAt:        time.Now().Unix(),
		Active:              true,
	}

	if err := insertSubscription(tx, &subscription); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrUnique(err) {
			return 0, ErrConflict
		}

		if rbErr != nil {
			return 0, rbErr
		}

		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.feed.Publish([]Delta{{Relation: "subscriptions", Op: DeltaInsert, Row: subscription}})
	return subscription.ID, nil
}

// SetSubscriptionActive toggles active on the given subscription.
func (s *Store) SetSubscriptionActive(ctx context.Context, id int64, active bool) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := setSubscriptionActive(tx, id, active); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrNoRows(err) {
			return ErrNotFound
		}

		if rbErr != nil {
			return rbErr
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "subscriptions", Op: DeltaUpdate, Row: id}})
	return nil
}

// BlockIP inserts or reactivates a block on ip. principal must be an admin.
func (s *Store) BlockIP(ctx context.Context, principal Principal, ip, reason string) error {
	if !IsAdmin(principal) {
		return ErrUnauthorized
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	blocked := BlockedIPRow{
		IP:        ip,
		Reason:    reason,
		BlockedAt: time.Now().Unix(),
		Active:    true,
	}

	if err := upsertBlockedIP(tx, &blocked); err != nil {
		_ = tx.RollbackWith(func() {})
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "blocked_ips", Op: DeltaInsert, Row: blocked}})
	return nil
}

// UnblockIP deactivates the block on ip. principal must be an admin.
func (s *Store) UnblockIP(ctx context.Context, principal Principal, ip string) error {
	if !IsAdmin(principal) {
		return ErrUnauthorized
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := setBlockedIPActive(tx, ip, false); err != nil {
		rbErr := tx.RollbackWith(func() {})
		if IsErrNoRows(err) {
			return ErrNotFound
		}

		if rbErr != nil {
			return rbErr
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish([]Delta{{Relation: "blocked_ips", Op: DeltaUpdate, Row: ip}})
	return nil
}

// DumpLogs returns the most recent connection and message log rows,
// supplementing the original Rust module's get_mta_logs reducer as an
// operator/debugging convenience reachable only from the admin shell.
func (s *Store) DumpLogs(ctx context.Context, limit int) ([]MtaConnectionLogRow, []MtaMessageLogRow, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}

	connections, err := findConnectionLogs(tx, limit)
	if err != nil {
		_ = tx.RollbackWith(func() {})
		return nil, nil, err
	}

	messages, err := findMessageLogs(tx, limit)
	if err != nil {
		_ = tx.RollbackWith(func() {})
		return nil, nil, err
	}

	return connections, messages, tx.Commit()
}
