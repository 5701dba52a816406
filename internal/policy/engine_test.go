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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solawi-ev/policy-gateway/internal/hookproto"
)

// fakeSnapshot is an in-memory Snapshot used to exercise the engine without
// a store.
type fakeSnapshot struct {
	blockedIPs    map[string]bool
	categories    map[string][]CategoryRef // keyed by lowercased address
	subscriptions map[string]bool          // keyed by lowercased email + "|" + categoryID
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{
		blockedIPs:    make(map[string]bool),
		categories:    make(map[string][]CategoryRef),
		subscriptions: make(map[string]bool),
	}
}

func (f *fakeSnapshot) blockIP(ip string) {
	f.blockedIPs[ip] = true
}

func (f *fakeSnapshot) addCategory(address string, id int64, active bool) {
	key := strings.ToLower(address)
	f.categories[key] = append(f.categories[key], CategoryRef{ID: id, Active: active})
}

func (f *fakeSnapshot) subscribe(email string, categoryID int64) {
	f.subscriptions[subscriptionKey(email, categoryID)] = true
}

func subscriptionKey(email string, categoryID int64) string {
	return strings.ToLower(email) + "|" + strconv.FormatInt(categoryID, 10)
}

func (f *fakeSnapshot) IsBlockedIP(ip string) (bool, error) {
	return f.blockedIPs[ip], nil
}

func (f *fakeSnapshot) CategoriesByAddress(address string) ([]CategoryRef, error) {
	return f.categories[strings.ToLower(address)], nil
}

func (f *fakeSnapshot) HasActiveSubscription(subscriberEmail string, categoryID int64) (bool, error) {
	return f.subscriptions[subscriptionKey(subscriberEmail, categoryID)], nil
}

func strPtr(s string) *string { return &s }

// TestP1BlockedIPRejects covers property P1 and scenario 1.
func TestP1BlockedIPRejects(t *testing.T) {
	snap := newFakeSnapshot()
	snap.blockIP("192.0.2.7")

	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageConnect,
			Client: hookproto.Client{IP: "192.0.2.7"},
		},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)

	assert.Equal(t, Reject, decision.Verdict)
	assert.Equal(t, 550, decision.SMTPCode)
	require.NotNil(t, decision.ConnectionLog)
	assert.Equal(t, "connect", decision.ConnectionLog.Stage)
	assert.Equal(t, "REJECT", decision.ConnectionLog.Action)
}

// TestP2EmptyHeloRejects covers property P2 and scenario 2.
func TestP2EmptyHeloRejects(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageEhlo,
			Client: hookproto.Client{IP: "198.51.100.1", Helo: strPtr("")},
		},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)

	assert.Equal(t, Reject, decision.Verdict)
	assert.Equal(t, 501, decision.SMTPCode)
}

func TestEhloMissingHeloRejects(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageEhlo,
			Client: hookproto.Client{IP: "198.51.100.1"},
		},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, Reject, decision.Verdict)
}

func TestEhloAccepts(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{
			Stage:  hookproto.StageEhlo,
			Client: hookproto.Client{IP: "198.51.100.1", Helo: strPtr("mail.example.org")},
		},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, Accept, decision.Verdict)
}

func TestMailFromRejectsMalformedAddress(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageMail, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{From: hookproto.EnvelopeAddress{Address: "not-an-address"}},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, Reject, decision.Verdict)
	assert.Equal(t, 550, decision.SMTPCode)
}

func TestMailFromAccepts(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageMail, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{From: hookproto.EnvelopeAddress{Address: "alice@example.com"}},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, Accept, decision.Verdict)
}

// TestP3UnknownRecipientRejects covers property P3 and scenario 3.
func TestP3UnknownRecipientRejects(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageRcpt, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{To: []hookproto.EnvelopeAddress{{Address: "nobody@example.org"}}},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)

	assert.Equal(t, Reject, decision.Verdict)
	assert.Equal(t, 550, decision.SMTPCode)
	assert.Contains(t, decision.ConnectionLog.Details, "unknown recipient")
}

func TestRcptInactiveCategoryRejects(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, false)

	engine := NewEngine(false)
	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageRcpt, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{To: []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}}},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, Reject, decision.Verdict)
}

func TestRcptActiveCategoryAccepts(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, true)

	engine := NewEngine(false)
	req := hookproto.Request{
		Context:  hookproto.Context{Stage: hookproto.StageRcpt, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{To: []hookproto.EnvelopeAddress{{Address: "NEWS@Solawi.org"}}},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, Accept, decision.Verdict)
}

// TestP4SubscribedSenderAccepted covers property P4 and scenario 4.
func TestP4SubscribedSenderAccepted(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, true)
	snap.subscribe("alice@ex.com", 1)

	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "alice@ex.com"},
			To:   []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}},
		},
		Message: &hookproto.Message{Size: 1024},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)

	assert.Equal(t, Accept, decision.Verdict)
	require.Len(t, decision.Modifications, 2)
	assert.Equal(t, "X-Processed-By", decision.Modifications[0].Name)
	assert.Equal(t, "X-Processing-Time", decision.Modifications[1].Name)
	require.NotNil(t, decision.MessageLog)
	assert.Equal(t, "ACCEPT", decision.MessageLog.Action)
}

// TestP5NonSubscriberQuarantined covers property P5 and scenario 5.
func TestP5NonSubscriberQuarantined(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, true)

	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "bob@ex.com"},
			To:   []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}},
		},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, Quarantine, decision.Verdict)
	assert.Empty(t, decision.Modifications)
}

// TestMixedRecipientsRejectDominates covers scenario 6.
func TestMixedRecipientsRejectDominates(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, true)
	snap.subscribe("alice@ex.com", 1)

	engine := NewEngine(false)
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

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, Reject, decision.Verdict)
}

func TestAuthAlwaysAccepts(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageAuth, Client: hookproto.Client{IP: "203.0.113.1"}},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, Accept, decision.Verdict)
}

func TestConnectRedactsIPWhenConfigured(t *testing.T) {
	engine := NewEngine(true)
	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageConnect, Client: hookproto.Client{IP: "203.0.113.9"}},
	}

	decision, err := engine.Decide(newFakeSnapshot(), req)
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", decision.ConnectionLog.ClientIP)
}

func TestDataExtractsSubjectCaseInsensitively(t *testing.T) {
	snap := newFakeSnapshot()
	snap.addCategory("news@solawi.org", 1, true)
	snap.subscribe("alice@ex.com", 1)

	engine := NewEngine(false)
	req := hookproto.Request{
		Context: hookproto.Context{Stage: hookproto.StageData, Client: hookproto.Client{IP: "203.0.113.1"}},
		Envelope: &hookproto.Envelope{
			From: hookproto.EnvelopeAddress{Address: "alice@ex.com"},
			To:   []hookproto.EnvelopeAddress{{Address: "news@solawi.org"}},
		},
		Message: &hookproto.Message{
			Headers: []hookproto.Header{{"SUBJECT", "Harvest update\r\n"}},
		},
	}

	decision, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, "Harvest update", decision.MessageLog.Subject)
}

func TestUnknownStageErrors(t *testing.T) {
	engine := NewEngine(false)
	req := hookproto.Request{Context: hookproto.Context{Stage: hookproto.Stage(99)}}

	_, err := engine.Decide(newFakeSnapshot(), req)
	assert.Error(t, err)
}
