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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solawi-ev/policy-gateway/internal/hookproto"
	"github.com/solawi-ev/policy-gateway/internal/policy"
	"github.com/solawi-ev/policy-gateway/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	server := New(s, policy.NewEngine(false))
	return httptest.NewServer(server), s
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)

	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) hookproto.Response {
	t.Helper()

	defer resp.Body.Close()

	var out hookproto.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// TestScenario1BlockedIP covers §8 scenario 1.
func TestScenario1BlockedIP(t *testing.T) {
	ts, s := newTestServer(t)
	defer ts.Close()

	require.NoError(t, s.BlockIP(context.Background(), adminPrincipal(), "192.0.2.7", "test"))

	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageConnect,
			Client: hookproto.Client{IP: "192.0.2.7"},
		},
	}

	resp := postJSON(t, ts.URL+"/mta-hook", req)
	out := decodeResponse(t, resp)

	require.Equal(t, hookproto.ActionReject, out.Action)
	require.NotNil(t, out.SMTPResponse)
	require.Equal(t, 550, out.SMTPResponse.Code)
}

// TestScenario2EmptyHelo covers §8 scenario 2.
func TestScenario2EmptyHelo(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	empty := ""
	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageEhlo,
			Client: hookproto.Client{IP: "198.51.100.1", Helo: &empty},
		},
	}

	out := decodeResponse(t, postJSON(t, ts.URL+"/mta-hook", req))
	require.Equal(t, hookproto.ActionReject, out.Action)
	require.Equal(t, 501, out.SMTPResponse.Code)
}

// TestScenario3UnknownRecipient covers §8 scenario 3.
func TestScenario3UnknownRecipient(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageRcpt, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{To: []hookproto.EnvelopeAddress{{Address: "nobody@example.org"}}},
	}

	out := decodeResponse(t, postJSON(t, ts.URL+"/mta-hook", req))
	require.Equal(t, hookproto.ActionReject, out.Action)
	require.Equal(t, 550, out.SMTPResponse.Code)
}

// TestScenario4SubscribedSenderAccepted covers §8 scenario 4.
func TestScenario4SubscribedSenderAccepted(t *testing.T) {
	ts, s := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	admin := adminPrincipal()

	categoryID, err := s.AddMessageCategory(ctx, admin, "news", "news@solawi.org", "")
	require.NoError(t, err)
	require.NoError(t, s.SyncUser(ctx, hookproto.SyncUpsert, hookproto.UserSyncPayload{Mitgliedsnr: 1}))
	_, err = s.AddSubscription(ctx, 1, "alice@ex.com", categoryID)
	require.NoError(t, err)

	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "alice@ex.com"},
			To:   []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}},
		},
		Message: &hookproto.Message{Size: 100},
	}

	out := decodeResponse(t, postJSON(t, ts.URL+"/mta-hook", req))
	require.Equal(t, hookproto.ActionAccept, out.Action)
	require.Len(t, out.Modifications, 2)
}

// TestScenario5NonSubscriberQuarantined covers §8 scenario 5.
func TestScenario5NonSubscriberQuarantined(t *testing.T) {
	ts, s := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	_, err := s.AddMessageCategory(ctx, adminPrincipal(), "news", "news@solawi.org", "")
	require.NoError(t, err)

	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "bob@ex.com"},
			To:   []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}},
		},
	}

	out := decodeResponse(t, postJSON(t, ts.URL+"/mta-hook", req))
	require.Equal(t, hookproto.ActionQuarantine, out.Action)
}

// TestScenario6MixedRecipients covers §8 scenario 6.
func TestScenario6MixedRecipients(t *testing.T) {
	ts, s := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	admin := adminPrincipal()

	categoryID, err := s.AddMessageCategory(ctx, admin, "news", "news@solawi.org", "")
	require.NoError(t, err)
	require.NoError(t, s.SyncUser(ctx, hookproto.SyncUpsert, hookproto.UserSyncPayload{Mitgliedsnr: 1}))
	_, err = s.AddSubscription(ctx, 1, "alice@ex.com", categoryID)
	require.NoError(t, err)

	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "alice@ex.com"},
			To: []hookproto.EnvelopeAddress{
				{Address: "nobody@example.org"},
				{Address: "news@solawi.org"},
			},
		},
	}

	out := decodeResponse(t, postJSON(t, ts.URL+"/mta-hook", req))
	require.Equal(t, hookproto.ActionReject, out.Action)
}

func TestMalformedHookReturns400(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/mta-hook", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthzOK(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserSyncUpsertAndAcknowledge(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	name := "Alice"
	req := hookproto.UserSyncRequest{
		Action: hookproto.SyncUpsert,
		User:   hookproto.UserSyncPayload{Mitgliedsnr: 1, Name: &name},
	}

	resp := postJSON(t, ts.URL+"/user-sync", req)
	defer resp.Body.Close()

	var out hookproto.UserSyncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.OK)
}

func adminPrincipal() store.Principal {
	return store.Principal{Subject: "admin", Claims: map[string]interface{}{"staff": true}}
}
