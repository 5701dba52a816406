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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/solawi-ev/policy-gateway/internal/hookproto"
	"github.com/solawi-ev/policy-gateway/internal/log"
)

func (s *Server) handleMtaHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	correlationID := uuid.NewString()
	ctx := log.WithCorrelationID(r.Context(), correlationID)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, hookproto.Response{Action: hookproto.ActionReject})
		return
	}

	release, ok := s.acquire(ctx)
	if !ok {
		http.Error(w, "service busy", http.StatusServiceUnavailable)
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.hookTimeout)
	defer cancel()

	response, err := s.store.HandleMtaHook(ctx, s.engine, raw)
	if err != nil {
		s.respondToMtaHookError(w, ctx, correlationID, raw, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) respondToMtaHookError(w http.ResponseWriter, ctx context.Context, correlationID string, raw []byte, err error) {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, hookproto.ErrUnknownStage):
		// Malformed hook / unknown stage: not an MTA event, do not audit.
		writeJSON(w, http.StatusBadRequest, hookproto.Response{Action: hookproto.ActionReject})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.ErrorContext(ctx).Str("correlationId", correlationID).Err(err).Msg("store unavailable for mta-hook")
		s.store.RecordHookTimeout(raw)
		writeJSON(w, http.StatusOK, hookproto.Response{
			Action: hookproto.ActionQuarantine,
			SMTPResponse: &hookproto.SMTPResponse{
				Code:    451,
				Message: "Processing unavailable",
			},
		})
	default:
		log.ErrorContext(ctx).Str("correlationId", correlationID).Err(err).Msg("internal error handling mta-hook")
		http.Error(w, "internal error: "+correlationID, http.StatusInternalServerError)
	}
}

func (s *Server) handleUserSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	correlationID := uuid.NewString()
	ctx := log.WithCorrelationID(r.Context(), correlationID)

	var req hookproto.UserSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, hookproto.UserSyncResponse{OK: false, Error: "malformed payload"})
		return
	}

	release, ok := s.acquire(ctx)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, hookproto.UserSyncResponse{OK: false, Error: "service busy"})
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.hookTimeout)
	defer cancel()

	if err := s.store.SyncUser(ctx, req.Action, req.User); err != nil {
		log.ErrorContext(ctx).Str("correlationId", correlationID).Err(err).Msg("user-sync failed")
		writeJSON(w, http.StatusServiceUnavailable, hookproto.UserSyncResponse{OK: false, Error: "store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, hookproto.UserSyncResponse{OK: true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.hookTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "store": "down"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "up"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
