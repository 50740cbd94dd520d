package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan NotaryEvent) NotaryEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestEventBus(t *testing.T) {
	eventBus := NewEventBus()

	id, eventChan := eventBus.Subscribe()
	require.NotEmpty(t, id)
	assert.Equal(t, 1, eventBus.Subscribers())

	at := time.Unix(1544562431, 0)
	eventBus.Publish(NewChallengeIssued("addrA", "addrA:1544562431:starRegistry", at))

	received := receive(t, eventChan)
	assert.Equal(t, EventChallengeIssued, received.Type())
	assert.Equal(t, "addrA", received.Address())
	assert.Equal(t, at, received.Timestamp())
	issued, ok := received.(*ChallengeIssued)
	require.True(t, ok)
	assert.Equal(t, "addrA:1544562431:starRegistry", issued.Message())

	assert.True(t, eventBus.Unsubscribe(id))
	assert.False(t, eventBus.Unsubscribe(id))
	assert.Equal(t, 0, eventBus.Subscribers())

	_, open := <-eventChan
	assert.False(t, open)
}

func TestSubscribeFiltersByType(t *testing.T) {
	eventBus := NewEventBus()
	_, appended := eventBus.Subscribe(EventBlockAppended)
	_, all := eventBus.Subscribe()

	at := time.Now()
	eventBus.Publish(NewSignatureVerified("addrA", at))
	eventBus.Publish(NewBlockAppended("addrA", 1, "abcd", at))

	assert.Equal(t, EventBlockAppended, receive(t, appended).Type())
	assert.Len(t, appended, 0)
	assert.Equal(t, EventSignatureVerified, receive(t, all).Type())
	assert.Equal(t, EventBlockAppended, receive(t, all).Type())
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	eventBus := NewEventBus()
	_, eventChan := eventBus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			eventBus.Publish(NewSignatureVerified("addrA", time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, eventChan, subscriberBuffer)
}

func TestNilBusDropsEvents(t *testing.T) {
	var eventBus *EventBus
	assert.NotPanics(t, func() {
		eventBus.Publish(NewRequestExpired("addrA", true, time.Now()))
	})
}

func TestCloseEndsSubscriptions(t *testing.T) {
	eventBus := NewEventBus()
	_, ch := eventBus.Subscribe()

	eventBus.Close()
	eventBus.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, eventBus.Subscribers())

	_, late := eventBus.Subscribe()
	_, open = <-late
	assert.False(t, open)
	assert.NotPanics(t, func() {
		eventBus.Publish(NewSignatureVerified("addrA", time.Now()))
	})
}

func TestDescribe(t *testing.T) {
	at := time.Unix(1544562431, 0)

	assert.Equal(t,
		`ChallengeIssued address=addrA at=1544562431 message="addrA:1544562431:starRegistry"`,
		Describe(NewChallengeIssued("addrA", "addrA:1544562431:starRegistry", at)))
	assert.Equal(t, "RequestExpired address=addrB at=1544562431 verified=false",
		Describe(NewRequestExpired("addrB", false, at)))
	assert.Equal(t, "BlockAppended address=addrC at=1544562431 height=7 hash=abcd",
		Describe(NewBlockAppended("addrC", 7, "abcd", at)))
	assert.Equal(t, "SignatureVerified address=addrD at=1544562431",
		Describe(NewSignatureVerified("addrD", at)))
}

func TestAuditLogStopsOnClose(t *testing.T) {
	eventBus := NewEventBus()
	id := StartAuditLog(eventBus)
	assert.Equal(t, 1, eventBus.Subscribers())

	eventBus.Publish(NewBlockAppended("addrC", 7, "abcd", time.Now()))
	assert.True(t, eventBus.Unsubscribe(id))
}
