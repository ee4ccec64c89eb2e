package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightloop/glean/pkg/models"
)

// Publisher is the transport contract the orchestrator emits through.
// Implementations must preserve per-channel FIFO ordering within one user.
type Publisher interface {
	PublishActivity(userID int64, payload ActivityPayload)
	PublishClarification(userID int64, payload ClarificationPayload)
	PublishResponse(userID int64, resp models.AnalyzeResponse)
	PublishError(userID int64, resp models.AnalyzeResponse)
	PublishPong(userID int64, message string)
}

// subscriber is one attached wire connection for a user.
type subscriber struct {
	id string
	ch chan Envelope
}

// Hub is the in-process Publisher: it fans envelopes out to every subscriber
// registered for a user. A slow subscriber whose buffer fills has the frame
// dropped rather than blocking the emitting orchestration task.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64][]*subscriber

	bufferSize int
}

// NewHub creates a Hub with the given per-subscriber buffer size.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		subs:       make(map[int64][]*subscriber),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new subscriber for userID and returns its channel
// plus an unsubscribe func. The channel is closed on unsubscribe.
func (h *Hub) Subscribe(userID int64) (<-chan Envelope, func()) {
	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan Envelope, h.bufferSize),
	}

	h.mu.Lock()
	h.subs[userID] = append(h.subs[userID], sub)
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[userID]
		for i, s := range list {
			if s.id == sub.id {
				h.subs[userID] = append(list[:i], list[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
	}

	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of attached subscribers for a user.
func (h *Hub) SubscriberCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) publish(userID int64, env Envelope) {
	h.mu.RLock()
	list := make([]*subscriber, len(h.subs[userID]))
	copy(list, h.subs[userID])
	h.mu.RUnlock()

	for _, sub := range list {
		select {
		case sub.ch <- env:
		default:
			slog.Warn("Dropping event for slow subscriber",
				"user_id", userID, "channel", env.Channel)
		}
	}
}

// PublishActivity emits a progress message on the activity channel.
func (h *Hub) PublishActivity(userID int64, payload ActivityPayload) {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	h.publish(userID, Envelope{Channel: ChannelActivity, Payload: payload})
}

// PublishClarification emits a question on the clarification channel.
func (h *Hub) PublishClarification(userID int64, payload ClarificationPayload) {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	h.publish(userID, Envelope{Channel: ChannelClarification, Payload: payload})
}

// PublishResponse delivers the final AnalyzeResponse on the response channel.
func (h *Hub) PublishResponse(userID int64, resp models.AnalyzeResponse) {
	h.publish(userID, ResponseEnvelope(resp))
}

// PublishError delivers a failed AnalyzeResponse on the error channel.
func (h *Hub) PublishError(userID int64, resp models.AnalyzeResponse) {
	h.publish(userID, ErrorEnvelope(resp))
}

// PublishPong answers a ping with an activity-shaped frame on the pong channel.
func (h *Hub) PublishPong(userID int64, message string) {
	h.publish(userID, Envelope{Channel: ChannelPong, Payload: ActivityPayload{
		EventID:   uuid.New().String(),
		Phase:     PhasePing,
		Status:    StatusOK,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}})
}
