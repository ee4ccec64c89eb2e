package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightloop/glean/pkg/conversation"
	"github.com/insightloop/glean/pkg/datasource"
	"github.com/insightloop/glean/pkg/events"
	"github.com/insightloop/glean/pkg/executor"
	"github.com/insightloop/glean/pkg/llm"
	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/repository"
)

// --- fakes ---

type fakeStore struct {
	mu            sync.Mutex
	conversations map[int64]*models.Conversation
	messages      map[int64][]models.Message
	nextConvID    int64
	nextMsgID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]models.Message),
	}
}

func (f *fakeStore) GetConnection(context.Context, int64, int64) (*models.Connection, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeStore) CreateConversation(_ context.Context, ownerID int64, title string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextConvID++
	f.conversations[f.nextConvID] = &models.Conversation{
		ID: f.nextConvID, OwnerID: ownerID, Title: title, CreatedAt: time.Now(),
	}
	return f.nextConvID, nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID, ownerID int64) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if conv.OwnerID != ownerID {
		return nil, repository.ErrNotOwned
	}
	return conv, nil
}

func (f *fakeStore) AddMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	msg.ID = f.nextMsgID
	msg.CreatedAt = time.Now()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

type fakeAdapter struct {
	id        int64
	name      string
	schema    *models.SourceSchema
	schemaErr error
	respond   func(req *models.DataRequest) models.ExecutionResult
}

func (f *fakeAdapter) ID() string                       { return fmt.Sprintf("%d", f.id) }
func (f *fakeAdapter) Name() string                     { return f.name }
func (f *fakeAdapter) Kind() models.SourceKind          { return models.KindPostgreSQL }
func (f *fakeAdapter) IsAvailable(context.Context) bool { return true }
func (f *fakeAdapter) Close() error                     { return nil }

func (f *fakeAdapter) ExtractSchema(context.Context) (*models.SourceSchema, error) {
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return f.schema, nil
}

func (f *fakeAdapter) Execute(_ context.Context, req *models.DataRequest) models.ExecutionResult {
	if f.respond != nil {
		return f.respond(req)
	}
	return models.ExecutionResult{Success: true}
}

type fakeResolver struct {
	adapters map[int64]*fakeAdapter
}

func (f *fakeResolver) GetDataSourceByConnectionID(_ context.Context, connectionID, _ int64) (datasource.Adapter, error) {
	adapter, ok := f.adapters[connectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return adapter, nil
}

// fakeProvider answers from a scripted queue and records every request.
type fakeProvider struct {
	mu            sync.Mutex
	clarification bool
	responses     []*llm.AIResponse
	requests      []*llm.AIRequest
}

func (f *fakeProvider) Name() string                { return "fake" }
func (f *fakeProvider) IsConfigured() bool          { return true }
func (f *fakeProvider) SupportsClarification() bool { return f.clarification }

func (f *fakeProvider) next(req *llm.AIRequest) *llm.AIResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &llm.AIResponse{Type: llm.TypeDirectAnswer, Content: "ok"}
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp
}

func (f *fakeProvider) Chat(_ context.Context, req *llm.AIRequest) *llm.AIResponse {
	return f.next(req)
}

func (f *fakeProvider) StreamChat(_ context.Context, req *llm.AIRequest, onChunk llm.ChunkFunc) *llm.AIResponse {
	resp := f.next(req)
	if onChunk != nil && resp.Content != "" {
		onChunk(resp.Content)
	}
	return resp
}

type fakeProviderSource struct{ provider *fakeProvider }

func (f *fakeProviderSource) Get(string) (llm.Provider, error) { return f.provider, nil }

// recorder captures everything published during a turn.
type recorder struct {
	mu             sync.Mutex
	activities     []events.ActivityPayload
	clarifications []events.ClarificationPayload
	responses      []models.AnalyzeResponse
	errors         []models.AnalyzeResponse
}

func (r *recorder) PublishActivity(_ int64, payload events.ActivityPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, payload)
}

func (r *recorder) PublishClarification(_ int64, payload events.ClarificationPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clarifications = append(r.clarifications, payload)
}

func (r *recorder) PublishResponse(_ int64, resp models.AnalyzeResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

func (r *recorder) PublishError(_ int64, resp models.AnalyzeResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, resp)
}

func (r *recorder) PublishPong(int64, string) {}

func (r *recorder) phases() []events.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Phase, 0, len(r.activities))
	for _, a := range r.activities {
		if len(out) == 0 || out[len(out)-1] != a.Phase {
			out = append(out, a.Phase)
		}
	}
	return out
}

func (r *recorder) hasPhase(phase events.Phase) bool {
	for _, p := range r.phases() {
		if p == phase {
			return true
		}
	}
	return false
}

// --- harness ---

type harness struct {
	store    *fakeStore
	resolver *fakeResolver
	provider *fakeProvider
	rec      *recorder
	orch     *Orchestrator
}

func newHarness(t *testing.T, adapters map[int64]*fakeAdapter) *harness {
	t.Helper()
	store := newFakeStore()
	resolver := &fakeResolver{adapters: adapters}
	provider := &fakeProvider{clarification: true}
	rec := &recorder{}
	orch := New(store, resolver, &fakeProviderSource{provider: provider},
		executor.New(resolver), conversation.NewManager(store, time.Hour), rec, "fake")
	return &harness{store: store, resolver: resolver, provider: provider, rec: rec, orch: orch}
}

func usersAdapter(id int64) *fakeAdapter {
	return &fakeAdapter{
		id:   id,
		name: "prod-db",
		schema: &models.SourceSchema{
			SourceID: id, SourceName: "prod-db", SourceKind: models.KindPostgreSQL,
			Tables: []models.Table{{Name: "users", Columns: []models.Column{
				{Name: "id", DataType: "integer", PrimaryKey: true},
				{Name: "name", DataType: "varchar"},
			}}},
		},
		respond: func(req *models.DataRequest) models.ExecutionResult {
			return models.ExecutionResult{
				Success:  true,
				Columns:  []string{"id", "name"},
				Rows:     []map[string]any{{"id": 1, "name": "ada"}, {"id": 2, "name": "grace"}},
				RowCount: 2,
			}
		},
	}
}

// --- tests ---

func TestHandleMessage_BlankMessageIsValidationError(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "   ", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.errors, 1)
	assert.Equal(t, CodeValidationError, h.rec.errors[0].Error.Code)
	assert.False(t, h.rec.errors[0].Success)
}

func TestHandleMessage_NoConnectionIDsIsValidationError(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{UserMessage: "show sales"})

	require.Len(t, h.rec.errors, 1)
	assert.Equal(t, CodeValidationError, h.rec.errors[0].Error.Code)
}

func TestHandleMessage_UnresolvableConnections(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{})
	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "show sales", ConnectionIDs: []int64{404},
	})

	require.Len(t, h.rec.errors, 1)
	assert.Equal(t, CodeNoConnections, h.rec.errors[0].Error.Code)
	assert.NotEmpty(t, h.rec.errors[0].Error.Suggestion)
}

func TestHandleMessage_AllSchemasFail(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{
		1: {id: 1, name: "a", schemaErr: fmt.Errorf("connection refused")},
		2: {id: 2, name: "b", schemaErr: fmt.Errorf("connection refused")},
	})
	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "show sales", ConnectionIDs: []int64{1, 2},
	})

	require.Len(t, h.rec.errors, 1)
	assert.Equal(t, CodeSchemaError, h.rec.errors[0].Error.Code)
	assert.False(t, h.rec.hasPhase(events.PhaseGeneratingQueries))
}

func TestHandleMessage_ClarificationLoop(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{1: usersAdapter(1)})
	h.provider.responses = []*llm.AIResponse{{
		Type:                  llm.TypeClarificationNeeded,
		Content:               "Need time range",
		ClarificationQuestion: "Which period?",
		SuggestedOptions:      []string{"Today", "Last 7 days", "Last month"},
	}}

	h.orch.HandleMessage(context.Background(), 42, &models.AnalyzeRequest{
		UserMessage: "Show sales", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.clarifications, 1)
	c := h.rec.clarifications[0]
	assert.Equal(t, "Which period?", c.Question)
	assert.Equal(t, []string{"Today", "Last 7 days", "Last month"}, c.SuggestedOptions)
	assert.NotZero(t, c.ConversationID)

	// No execution, no final response yet.
	assert.False(t, h.rec.hasPhase(events.PhaseExecutingQueries))
	assert.Empty(t, h.rec.responses)
	assert.Empty(t, h.rec.errors)

	// The follow-up resumes the same conversation with history intact.
	h.provider.responses = []*llm.AIResponse{
		{Type: llm.TypeReadyToExecute, Content: "Running", DataRequests: []models.DataRequest{
			{Kind: models.RequestSQLQuery, SourceID: "1", SQL: "SELECT id, name FROM users LIMIT 100"},
		}},
		{Type: llm.TypeDirectAnswer, Content: "Here is the data."},
	}
	h.orch.HandleMessage(context.Background(), 42, &models.AnalyzeRequest{
		UserMessage: "Last 7 days", ConversationID: c.ConversationID, ConnectionIDs: []int64{1},
		IsClarificationResponse: true, ClarificationAnswer: "Last 7 days",
	})

	require.Len(t, h.rec.responses, 1)
	assert.True(t, h.rec.responses[0].Success)
	assert.Equal(t, c.ConversationID, h.rec.responses[0].ConversationID)

	// The decision request carried the prior turns.
	decisionReq := h.provider.requests[1]
	require.NotNil(t, decisionReq)
	var contents []string
	for _, m := range decisionReq.ConversationHistory {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, strings.Join(contents, "\n"), "Show sales")
}

func TestHandleMessage_DirectAnswer(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{1: usersAdapter(1)})
	h.provider.responses = []*llm.AIResponse{{
		Type: llm.TypeDirectAnswer, Content: "I can only answer questions about your data.",
	}}

	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "tell me a joke", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.responses, 1)
	resp := h.rec.responses[0]
	assert.True(t, resp.Success)
	assert.Equal(t, "I can only answer questions about your data.", resp.Summary)
	assert.Empty(t, resp.QueryResults)
	assert.False(t, h.rec.hasPhase(events.PhaseExecutingQueries))
}

func TestHandleMessage_SingleSQLQueryPhaseOrder(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{1: usersAdapter(1)})
	h.provider.responses = []*llm.AIResponse{
		{Type: llm.TypeReadyToExecute, Content: "Running", DataRequests: []models.DataRequest{
			{Kind: models.RequestSQLQuery, SourceID: "1", SQL: "SELECT id, name FROM users LIMIT 100"},
		}},
		{Type: llm.TypeDirectAnswer, Content: "Two users exist."},
	}

	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "list users", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.responses, 1)
	resp := h.rec.responses[0]
	assert.True(t, resp.Success)
	require.Len(t, resp.QueryResults, 1)
	assert.Equal(t, 2, resp.QueryResults[0].RowCount)
	assert.Equal(t, []string{"id", "name"}, resp.QueryResults[0].Columns)
	require.NotNil(t, resp.SuggestedVisualization)
	assert.Equal(t, "Two users exist.", resp.SuggestedVisualization.Analysis)

	expected := []events.Phase{
		events.PhaseUnderstandingIntent,
		events.PhaseMappingDataSources,
		events.PhaseAnalyzingSchemas,
		events.PhaseGeneratingQueries,
		events.PhaseExecutingQueries,
		events.PhaseAnalyzingData,
		events.PhasePreparingResponse,
		events.PhaseCompleted,
	}
	phases := h.rec.phases()
	last := -1
	for _, want := range expected {
		found := -1
		for i, p := range phases {
			if i > last && p == want {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0, "phase %s missing or out of order (got %v)", want, phases)
		last = found
	}
}

func TestHandleMessage_EmptyPlanIsGenerationFailure(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{1: usersAdapter(1)})
	h.provider.responses = []*llm.AIResponse{{
		Type: llm.TypeReadyToExecute, Content: "Running", DataRequests: nil,
	}}

	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "list users", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.errors, 1)
	assert.Equal(t, CodeQueryGenerationFailed, h.rec.errors[0].Error.Code)
}

func TestHandleMessage_AnalysisPromptRedactsSensitiveValues(t *testing.T) {
	adapter := usersAdapter(1)
	adapter.respond = func(req *models.DataRequest) models.ExecutionResult {
		return models.ExecutionResult{
			Success: true,
			Columns: []string{"id", "email", "password_hash", "amount"},
			Rows: []map[string]any{
				{"id": 1, "email": "user@example.com", "password_hash": "h1", "amount": 10.5},
			},
			RowCount: 1,
		}
	}
	h := newHarness(t, map[int64]*fakeAdapter{1: adapter})
	h.provider.responses = []*llm.AIResponse{
		{Type: llm.TypeReadyToExecute, Content: "Running", DataRequests: []models.DataRequest{
			{Kind: models.RequestSQLQuery, SourceID: "1", SQL: "SELECT * FROM payments"},
		}},
		{Type: llm.TypeDirectAnswer, Content: "Payments look fine."},
	}

	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "check payments", ConnectionIDs: []int64{1},
	})

	// Second provider request is the analysis prompt over the summary.
	require.GreaterOrEqual(t, len(h.provider.requests), 2)
	analysisReq := h.provider.requests[1]
	require.True(t, analysisReq.RawPrompt)
	assert.Contains(t, analysisReq.Prompt, "- id:")
	assert.Contains(t, analysisReq.Prompt, "- amount:")
	assert.Contains(t, analysisReq.Prompt, "REDACTED")
	assert.NotContains(t, analysisReq.Prompt, "user@example.com")
	assert.NotContains(t, analysisReq.Prompt, "h1\n")
}

func TestHandleMessage_ProviderErrorStillAnswers(t *testing.T) {
	h := newHarness(t, map[int64]*fakeAdapter{1: usersAdapter(1)})
	h.provider.responses = []*llm.AIResponse{{
		Type: llm.TypeDirectAnswer, Content: "The AI service is currently unavailable: timeout",
	}}

	h.orch.HandleMessage(context.Background(), 1, &models.AnalyzeRequest{
		UserMessage: "list users", ConnectionIDs: []int64{1},
	})

	require.Len(t, h.rec.responses, 1)
	assert.True(t, h.rec.responses[0].Success)
	assert.Contains(t, h.rec.responses[0].Summary, "unavailable")
}
