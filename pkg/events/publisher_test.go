package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightloop/glean/pkg/models"
)

func TestHub_DeliversActivityInOrder(t *testing.T) {
	hub := NewHub(8)
	ch, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	hub.PublishActivity(1, ActivityPayload{Phase: PhaseUnderstandingIntent, Status: StatusInProgress, Message: "a"})
	hub.PublishActivity(1, ActivityPayload{Phase: PhaseUnderstandingIntent, Status: StatusCompleted, Message: "b"})

	first := (<-ch).Payload.(ActivityPayload)
	second := (<-ch).Payload.(ActivityPayload)

	assert.Equal(t, "a", first.Message)
	assert.Equal(t, "b", second.Message)
	assert.Equal(t, StatusInProgress, first.Status)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.NotEmpty(t, first.EventID)
	assert.False(t, first.Timestamp.After(second.Timestamp), "timestamps are non-decreasing")
}

func TestHub_IsolatesUsers(t *testing.T) {
	hub := NewHub(8)
	alice, closeAlice := hub.Subscribe(1)
	defer closeAlice()
	bob, closeBob := hub.Subscribe(2)
	defer closeBob()

	hub.PublishActivity(1, ActivityPayload{Phase: PhasePing, Status: StatusOK, Message: "for alice"})

	select {
	case env := <-alice:
		assert.Equal(t, ChannelActivity, env.Channel)
	case <-time.After(time.Second):
		t.Fatal("alice received nothing")
	}

	select {
	case <-bob:
		t.Fatal("bob must not receive alice's events")
	default:
	}
}

func TestHub_DropsWhenSubscriberBufferFull(t *testing.T) {
	hub := NewHub(1)
	ch, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	hub.PublishActivity(1, ActivityPayload{Phase: PhasePing, Status: StatusOK, Message: "kept"})
	// Buffer is full now; this one is dropped instead of blocking.
	hub.PublishActivity(1, ActivityPayload{Phase: PhasePing, Status: StatusOK, Message: "dropped"})

	env := <-ch
	assert.Equal(t, "kept", env.Payload.(ActivityPayload).Message)
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(8)
	ch, unsubscribe := hub.Subscribe(1)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount(1))

	// Publishing to a user with no subscribers must not panic.
	hub.PublishActivity(1, ActivityPayload{Phase: PhasePing, Status: StatusOK})
}

func TestHub_ResponseAndErrorChannels(t *testing.T) {
	hub := NewHub(8)
	ch, unsubscribe := hub.Subscribe(5)
	defer unsubscribe()

	hub.PublishResponse(5, models.AnalyzeResponse{Success: true, ConversationID: 9})
	hub.PublishError(5, models.AnalyzeResponse{Success: false})

	env := <-ch
	require.Equal(t, ChannelResponse, env.Channel)
	resp := env.Payload.(models.AnalyzeResponse)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(9), resp.ConversationID)

	env = <-ch
	assert.Equal(t, ChannelError, env.Channel)
}

func TestHub_PongShape(t *testing.T) {
	hub := NewHub(8)
	ch, unsubscribe := hub.Subscribe(3)
	defer unsubscribe()

	hub.PublishPong(3, "pong")

	env := <-ch
	require.Equal(t, ChannelPong, env.Channel)
	payload := env.Payload.(ActivityPayload)
	assert.Equal(t, PhasePing, payload.Phase)
	assert.Equal(t, StatusOK, payload.Status)
	assert.Equal(t, "pong", payload.Message)
	assert.False(t, payload.Timestamp.IsZero())
}
