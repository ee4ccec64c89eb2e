package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightloop/glean/pkg/llm"
	"github.com/insightloop/glean/pkg/models"
)

// fakeStore serves canned message history and records writes.
type fakeStore struct {
	messages  map[int64][]models.Message
	listCalls int
}

func (f *fakeStore) CreateConversation(_ context.Context, _ int64, _ string) (int64, error) {
	return 1, nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID, ownerID int64) (*models.Conversation, error) {
	return &models.Conversation{ID: conversationID, OwnerID: ownerID}, nil
}

func (f *fakeStore) AddMessage(_ context.Context, msg *models.Message) error {
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	f.listCalls++
	return f.messages[conversationID], nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[int64][]models.Message)}
}

func TestGetOrCreate_LazyLoadsHistoryOnce(t *testing.T) {
	store := newFakeStore()
	store.messages[7] = []models.Message{
		{ConversationID: 7, Role: models.RoleUser, Content: "show sales"},
	}
	mgr := NewManager(store, time.Hour)

	state, err := mgr.GetOrCreate(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(7), state.ConversationID())
	assert.Equal(t, int64(42), state.OwnerID())
	require.Len(t, state.History(), 1)

	again, err := mgr.GetOrCreate(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Same(t, state, again)
	assert.Equal(t, 1, store.listCalls, "history loads once per live state")
}

func TestUpdateState_TracksClarificationFlag(t *testing.T) {
	mgr := NewManager(newFakeStore(), time.Hour)
	state, err := mgr.GetOrCreate(context.Background(), 1, 1)
	require.NoError(t, err)

	mgr.UpdateState(state, &llm.AIResponse{
		Type:                  llm.TypeClarificationNeeded,
		Content:               "Need time range",
		ClarificationQuestion: "Which period?",
	})
	assert.True(t, state.AwaitingClarification())
	require.NotNil(t, state.LastResponse())
	assert.Equal(t, "Which period?", state.LastResponse().ClarificationQuestion)

	mgr.UpdateState(state, &llm.AIResponse{Type: llm.TypeDirectAnswer, Content: "Done"})
	assert.False(t, state.AwaitingClarification())

	// Both AI turns were mirrored into the history snapshot.
	history := state.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleAssistant, history[0].Role)
}

func TestAddUserMessage_AppendsToHistory(t *testing.T) {
	mgr := NewManager(newFakeStore(), time.Hour)
	state, err := mgr.GetOrCreate(context.Background(), 1, 1)
	require.NoError(t, err)

	mgr.AddUserMessage(state, models.Message{Role: models.RoleUser, Content: "show sales"})
	mgr.AddUserMessage(state, models.Message{Role: models.RoleUser, Content: "last 7 days"})

	history := state.History()
	require.Len(t, history, 2)
	assert.Equal(t, "last 7 days", history[1].Content)
}

func TestCleanup_EvictsOnlyStaleStates(t *testing.T) {
	mgr := NewManager(newFakeStore(), 50*time.Millisecond)

	for i := int64(1); i <= 3; i++ {
		_, err := mgr.GetOrCreate(context.Background(), i, 1)
		require.NoError(t, err)
	}
	require.Equal(t, 3, mgr.Size())

	time.Sleep(60 * time.Millisecond)

	// Touch one state so it survives the sweep.
	fresh, err := mgr.GetOrCreate(context.Background(), 2, 1)
	require.NoError(t, err)
	mgr.AddUserMessage(fresh, models.Message{Role: models.RoleUser, Content: "still here"})

	removed := mgr.Cleanup()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, mgr.Size())

	// An evicted conversation reloads transparently.
	_, err = mgr.GetOrCreate(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.Size())
}

func TestHistory_ReturnsACopy(t *testing.T) {
	mgr := NewManager(newFakeStore(), time.Hour)
	state, err := mgr.GetOrCreate(context.Background(), 1, 1)
	require.NoError(t, err)
	mgr.AddUserMessage(state, models.Message{Role: models.RoleUser, Content: "original"})

	history := state.History()
	history[0].Content = fmt.Sprintf("mutated-%d", 1)

	assert.Equal(t, "original", state.History()[0].Content)
}
