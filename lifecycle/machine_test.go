package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext_TableEdges(t *testing.T) {
	cases := []struct {
		from  Status
		event Event
		to    Status
	}{
		{StatusPending, EventAdminApprove, StatusPending},
		{StatusPending, EventAdminReject, StatusRejected},
		{StatusPending, EventAccept, StatusAccepted},
		{StatusPending, EventDecline, StatusDeclined},
		{StatusPending, EventOffer, StatusPendingNegotiation},
		{StatusPendingNegotiation, EventCounter, StatusCounterOffer},
		{StatusCounterOffer, EventOffer, StatusPendingNegotiation},
		{StatusCounterOffer, EventAcceptCounter, StatusPending},
		{StatusAccepted, EventStart, StatusInProgress},
		{StatusInProgress, EventMarkComplete, StatusPendingCompletion},
		{StatusPendingCompletion, EventConfirmCompletion, StatusPendingPayment},
		{StatusPendingPayment, EventPayCash, StatusPaymentReceived},
		{StatusPendingPayment, EventPaymentConfirmed, StatusPaymentReceived},
		{StatusPaymentReceived, EventConfirmReceipt, StatusCompleted},
		{StatusDisputed, EventResolveDispute, StatusCompleted},
		{StatusCancelled, EventRefund, StatusCancelled},
	}
	for _, tc := range cases {
		to, ok := Next(tc.from, tc.event)
		assert.True(t, ok, "%s from %s should be legal", tc.event, tc.from)
		assert.Equal(t, tc.to, to, "%s from %s", tc.event, tc.from)
	}
}

func TestNext_NoShortcuts(t *testing.T) {
	// No single event jumps pending straight to a post-work status.
	for _, event := range []Event{EventStart, EventMarkComplete, EventConfirmCompletion, EventPayCash, EventConfirmReceipt} {
		_, ok := Next(StatusPending, event)
		assert.False(t, ok, "%s must not be reachable from pending", event)
	}
	_, ok := Next(StatusAccepted, EventConfirmReceipt)
	assert.False(t, ok)
}

func TestNext_TerminalStatesAreDeadEnds(t *testing.T) {
	events := []Event{
		EventAdminApprove, EventAdminReject, EventCancel, EventAccept,
		EventDecline, EventOffer, EventCounter, EventAcceptCounter,
		EventStart, EventMarkComplete, EventConfirmCompletion, EventPayCash,
		EventPaymentConfirmed, EventConfirmReceipt, EventDispute,
		EventResolveDispute,
	}
	for _, s := range []Status{StatusCompleted, StatusRejected, StatusDeclined} {
		for _, e := range events {
			_, ok := Next(s, e)
			assert.False(t, ok, "%s must be terminal, allowed %s", s, e)
		}
	}
	// Cancelled only admits the refund bookkeeping event and stays cancelled.
	for _, e := range events {
		_, ok := Next(StatusCancelled, e)
		assert.False(t, ok, "cancelled must only admit refund, allowed %s", e)
	}
	to, ok := Next(StatusCancelled, EventRefund)
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, to)
}

func TestNext_DisputeFreezesEverythingButResolution(t *testing.T) {
	for _, e := range []Event{EventCancel, EventAccept, EventStart, EventPayCash, EventDispute, EventConfirmReceipt} {
		_, ok := Next(StatusDisputed, e)
		assert.False(t, ok, "disputed must freeze %s", e)
	}
	to, ok := Next(StatusDisputed, EventResolveDispute)
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, to)
}

func TestParseEvent(t *testing.T) {
	e, ok := ParseEvent("accept")
	assert.True(t, ok)
	assert.Equal(t, EventAccept, e)

	_, ok = ParseEvent("teleport")
	assert.False(t, ok)
}
