// Package conversation keeps the in-process state of active conversations:
// history snapshots, the last AI turn, and clarification status. States are
// loaded lazily from the repository and evicted after an idle period.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/insightloop/glean/pkg/llm"
	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/repository"
)

// DefaultTTL is how long an idle conversation state survives before the
// cleanup sweep evicts it. Evicted states reload from the repository on the
// next message.
const DefaultTTL = time.Hour

// State is the mutable per-conversation snapshot. All mutation goes through
// the Manager; callers read through the accessor methods.
type State struct {
	conversationID int64
	ownerID        int64

	mu                    sync.Mutex
	history               []models.Message
	lastResponse          *llm.AIResponse
	awaitingClarification bool
	lastActivity          time.Time
}

// ConversationID returns the persisted conversation id.
func (s *State) ConversationID() int64 { return s.conversationID }

// OwnerID returns the owning user id.
func (s *State) OwnerID() int64 { return s.ownerID }

// History returns a copy of the message history snapshot.
func (s *State) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.history))
	copy(out, s.history)
	return out
}

// AwaitingClarification reports whether the last AI turn asked a question.
func (s *State) AwaitingClarification() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingClarification
}

// LastResponse returns the most recent AI response, or nil.
func (s *State) LastResponse() *llm.AIResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResponse
}

// Manager owns the conversation state map. It is the only component that
// mutates State objects.
type Manager struct {
	store repository.ConversationStore
	ttl   time.Duration

	mu     sync.RWMutex
	states map[int64]*State
}

// NewManager creates a Manager over the conversation store. A non-positive
// ttl falls back to DefaultTTL.
func NewManager(store repository.ConversationStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		states: make(map[int64]*State),
	}
}

// GetOrCreate returns the state for a conversation, constructing it on miss.
// Construction lazily loads the persisted message history, outside any lock.
func (m *Manager) GetOrCreate(ctx context.Context, conversationID, ownerID int64) (*State, error) {
	m.mu.RLock()
	state, ok := m.states[conversationID]
	m.mu.RUnlock()
	if ok {
		return state, nil
	}

	history, err := m.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	created := &State{
		conversationID: conversationID,
		ownerID:        ownerID,
		history:        history,
		lastActivity:   time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.states[conversationID]; ok {
		return existing, nil
	}
	m.states[conversationID] = created
	return created, nil
}

// AddUserMessage appends a user turn to the history snapshot and touches the
// activity timestamp.
func (m *Manager) AddUserMessage(state *State, msg models.Message) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.history = append(state.history, msg)
	state.lastActivity = time.Now()
}

// UpdateState records the latest AI response, mirrors it into the history
// snapshot, and updates the clarification flag.
func (m *Manager) UpdateState(state *State, resp *llm.AIResponse) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.lastResponse = resp
	state.awaitingClarification = resp != nil && resp.Type == llm.TypeClarificationNeeded
	state.lastActivity = time.Now()

	if resp != nil && resp.Content != "" {
		state.history = append(state.history, models.Message{
			ConversationID: state.conversationID,
			Role:           models.RoleAssistant,
			Content:        resp.Content,
			CreatedAt:      time.Now(),
		})
	}
}

// Cleanup evicts states idle longer than the TTL and returns how many were
// removed.
func (m *Manager) Cleanup() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, state := range m.states {
		state.mu.Lock()
		stale := state.lastActivity.Before(cutoff)
		state.mu.Unlock()
		if stale {
			delete(m.states, id)
			removed++
		}
	}
	return removed
}

// Size returns the number of live conversation states.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// StartCleanup runs periodic eviction sweeps until the context is cancelled.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := m.Cleanup(); removed > 0 {
					slog.Debug("Evicted idle conversation states", "count", removed)
				}
			}
		}
	}()
}
