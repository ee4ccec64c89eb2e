// Package orchestrator drives one conversation turn end to end: schema
// collection, AI decision, plan execution, analysis, and the progress
// events emitted along the way.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/insightloop/glean/pkg/conversation"
	"github.com/insightloop/glean/pkg/datasource"
	"github.com/insightloop/glean/pkg/events"
	"github.com/insightloop/glean/pkg/executor"
	"github.com/insightloop/glean/pkg/llm"
	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/prompt"
	"github.com/insightloop/glean/pkg/repository"
	"github.com/insightloop/glean/pkg/summary"
)

const conversationTitleLimit = 50

// AdapterResolver resolves owned connections to adapters. Satisfied by
// *registry.Registry.
type AdapterResolver interface {
	GetDataSourceByConnectionID(ctx context.Context, connectionID, ownerID int64) (datasource.Adapter, error)
}

// ProviderSource yields AI providers by name. Satisfied by *llm.Factory.
type ProviderSource interface {
	Get(name string) (llm.Provider, error)
}

// PlanExecutor runs a validated plan. Satisfied by *executor.Executor.
type PlanExecutor interface {
	Execute(ctx context.Context, ownerID int64, connectionIDs []int64, requests []models.DataRequest) []models.QueryResult
}

// Orchestrator binds the engine's components into the per-message state
// machine. One HandleMessage call processes one inbound user message.
type Orchestrator struct {
	store           repository.Store
	resolver        AdapterResolver
	providers       ProviderSource
	executor        PlanExecutor
	conversations   *conversation.Manager
	publisher       events.Publisher
	defaultProvider string
}

// New wires the orchestrator.
func New(
	store repository.Store,
	resolver AdapterResolver,
	providers ProviderSource,
	planExecutor PlanExecutor,
	conversations *conversation.Manager,
	publisher events.Publisher,
	defaultProvider string,
) *Orchestrator {
	return &Orchestrator{
		store:           store,
		resolver:        resolver,
		providers:       providers,
		executor:        planExecutor,
		conversations:   conversations,
		publisher:       publisher,
		defaultProvider: defaultProvider,
	}
}

// HandleMessage processes one inbound message for a user. It never returns
// an error: every failure surfaces as an error-channel AnalyzeResponse.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID int64, req *models.AnalyzeRequest) {
	conversationID := req.ConversationID

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in message handling", "user_id", userID, "panic", r)
			o.fail(userID, conversationID, CodeInternalError,
				datasource.SanitizeError(fmt.Sprintf("internal error: %v", r)))
		}
	}()

	if strings.TrimSpace(req.UserMessage) == "" {
		o.fail(userID, conversationID, CodeValidationError, "user message must not be empty")
		return
	}
	if len(req.ConnectionIDs) == 0 {
		o.fail(userID, conversationID, CodeValidationError, "at least one connection ID is required")
		return
	}

	// Step 1: resolve or create the conversation.
	conversationID = o.resolveConversation(ctx, userID, req)
	if conversationID == 0 {
		o.fail(userID, 0, CodeInternalError, "failed to create conversation")
		return
	}

	state, err := o.conversations.GetOrCreate(ctx, conversationID, userID)
	if err != nil {
		slog.Warn("Failed to load conversation history, starting empty",
			"conversation_id", conversationID, "error", err)
	}

	// Step 2: persist the user turn.
	o.emit(userID, conversationID, events.PhaseUnderstandingIntent, events.StatusInProgress, "Understanding your question")
	userMsg := models.Message{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        req.UserMessage,
	}
	if err := o.store.AddMessage(ctx, &userMsg); err != nil {
		slog.Warn("Failed to persist user message", "conversation_id", conversationID, "error", err)
	}
	if state != nil {
		o.conversations.AddUserMessage(state, userMsg)
	}
	o.emit(userID, conversationID, events.PhaseUnderstandingIntent, events.StatusCompleted, "Question received")

	// Step 3: resolve connections.
	o.emit(userID, conversationID, events.PhaseMappingDataSources, events.StatusInProgress, "Resolving data sources")
	adapters := make(map[int64]datasource.Adapter, len(req.ConnectionIDs))
	connectionIDs := make([]int64, 0, len(req.ConnectionIDs))
	for _, id := range req.ConnectionIDs {
		adapter, err := o.resolver.GetDataSourceByConnectionID(ctx, id, userID)
		if err != nil {
			slog.Warn("Skipping unresolvable connection",
				"connection_id", id, "user_id", userID, "error", err)
			continue
		}
		adapters[id] = adapter
		connectionIDs = append(connectionIDs, id)
	}
	if len(connectionIDs) == 0 {
		o.fail(userID, conversationID, CodeNoConnections, "none of the supplied connections could be resolved")
		return
	}
	o.emit(userID, conversationID, events.PhaseMappingDataSources, events.StatusCompleted,
		fmt.Sprintf("Resolved %d data source(s)", len(connectionIDs)))

	// Step 4: extract schemas, skipping per-source failures.
	o.emit(userID, conversationID, events.PhaseAnalyzingSchemas, events.StatusInProgress, "Reading data source schemas")
	schemas := make([]models.SourceSchema, 0, len(connectionIDs))
	for _, id := range connectionIDs {
		schema, err := adapters[id].ExtractSchema(ctx)
		if err != nil {
			slog.Warn("Schema extraction failed, skipping source",
				"connection_id", id, "error", datasource.SanitizeError(err.Error()))
			continue
		}
		schemas = append(schemas, *schema)
	}
	if len(schemas) == 0 {
		o.fail(userID, conversationID, CodeSchemaError, "schema extraction failed for every data source")
		return
	}
	o.emit(userID, conversationID, events.PhaseAnalyzingSchemas, events.StatusCompleted,
		fmt.Sprintf("Analyzed %d schema(s)", len(schemas)))

	// Step 5: ask the AI what to do.
	provider, err := o.selectProvider(req.AIProvider)
	if err != nil {
		o.fail(userID, conversationID, CodeInternalError, err.Error())
		return
	}

	o.emit(userID, conversationID, events.PhaseGeneratingQueries, events.StatusInProgress, "Generating queries")
	var history []models.Message
	if state != nil {
		history = state.History()
	}
	aiReq := &llm.AIRequest{
		UserMessage:         req.UserMessage,
		AvailableSchemas:    schemas,
		ConversationHistory: history,
		UserID:              userID,
		ConversationID:      conversationID,
		FirstMessage:        len(history) <= 1,
	}
	resp := provider.StreamChat(ctx, aiReq, o.chunkEmitter(userID, conversationID, events.PhaseAIThinking))
	o.emit(userID, conversationID, events.PhaseGeneratingQueries, events.StatusCompleted, "AI response received")

	// Step 6: branch on the decision.
	if resp.Type == llm.TypeClarificationNeeded && !provider.SupportsClarification() {
		// Single-shot providers cannot hold a clarification round; surface
		// the question as the answer instead.
		resp.Type = llm.TypeDirectAnswer
		if resp.ClarificationQuestion != "" {
			resp.Content = resp.ClarificationQuestion
		}
	}

	switch resp.Type {
	case llm.TypeClarificationNeeded:
		o.publisher.PublishClarification(userID, events.ClarificationPayload{
			ConversationID:   conversationID,
			Question:         resp.ClarificationQuestion,
			SuggestedOptions: resp.SuggestedOptions,
		})
		o.persistAssistantTurn(ctx, state, conversationID, resp)
		return

	case llm.TypeDirectAnswer:
		o.persistAssistantTurn(ctx, state, conversationID, resp)
		o.emit(userID, conversationID, events.PhaseCompleted, events.StatusCompleted, "Done")
		o.publisher.PublishResponse(userID, models.AnalyzeResponse{
			Success:        true,
			ConversationID: conversationID,
			Summary:        resp.Content,
			Timestamp:      time.Now().UTC(),
		})
		return
	}

	// READY_TO_EXECUTE from here on.
	if err := executor.ValidatePlan(resp.DataRequests); err != nil {
		o.fail(userID, conversationID, CodeQueryGenerationFailed, err.Error())
		return
	}

	// Step 7: execute the plan.
	o.emit(userID, conversationID, events.PhaseExecutingQueries, events.StatusInProgress,
		fmt.Sprintf("Executing %d queries", len(resp.DataRequests)))
	results := o.executor.Execute(ctx, userID, connectionIDs, resp.DataRequests)
	o.emitPerConnectionCompletion(userID, conversationID, results)
	o.emit(userID, conversationID, events.PhaseExecutingQueries, events.StatusCompleted, "Queries executed")

	// Step 8: analyze the data.
	o.emit(userID, conversationID, events.PhaseAnalyzingData, events.StatusInProgress, "Analyzing results")
	report, structural := o.analyze(ctx, provider, userID, conversationID, req.UserMessage, results)
	o.emit(userID, conversationID, events.PhaseAnalyzingData, events.StatusCompleted, "Analysis complete")

	// Step 9: dashboard configuration, when the analysis suggests charts.
	if len(report.ChartSuggestions) > 0 {
		o.emit(userID, conversationID, events.PhaseGeneratingDashboard, events.StatusInProgress, "Preparing dashboard")
		o.generateDashboard(ctx, provider, report, structural, results)
		o.emit(userID, conversationID, events.PhaseGeneratingDashboard, events.StatusCompleted, "Dashboard prepared")
	}

	// Step 10: final response.
	o.emit(userID, conversationID, events.PhasePreparingResponse, events.StatusInProgress, "Preparing response")
	final := &llm.AIResponse{Type: llm.TypeDirectAnswer, Content: report.Analysis}
	o.persistAssistantTurn(ctx, state, conversationID, final)
	o.emit(userID, conversationID, events.PhaseCompleted, events.StatusCompleted, "Done")
	o.publisher.PublishResponse(userID, models.AnalyzeResponse{
		Success:                true,
		ConversationID:         conversationID,
		Summary:                report.Analysis,
		QueryResults:           results,
		SuggestedVisualization: report,
		Timestamp:              time.Now().UTC(),
	})
}

// resolveConversation reuses the supplied conversation when it exists and is
// owned by the user; anything else starts a fresh one titled from the
// message.
func (o *Orchestrator) resolveConversation(ctx context.Context, userID int64, req *models.AnalyzeRequest) int64 {
	if req.ConversationID != 0 {
		if _, err := o.store.GetConversation(ctx, req.ConversationID, userID); err == nil {
			return req.ConversationID
		} else {
			slog.Warn("Supplied conversation not usable, creating new",
				"conversation_id", req.ConversationID, "error", err)
		}
	}

	title := strings.TrimSpace(req.UserMessage)
	if runes := []rune(title); len(runes) > conversationTitleLimit {
		title = string(runes[:conversationTitleLimit])
	}
	id, err := o.store.CreateConversation(ctx, userID, title)
	if err != nil {
		slog.Error("Failed to create conversation", "user_id", userID, "error", err)
		return 0
	}
	return id
}

func (o *Orchestrator) selectProvider(name string) (llm.Provider, error) {
	if name == "" {
		name = o.defaultProvider
	}
	provider, err := o.providers.Get(name)
	if err != nil {
		return nil, fmt.Errorf("AI provider %q is not available: %w", name, err)
	}
	return provider, nil
}

// analyze builds the structural summary and asks the AI for the analysis
// report. Empty data short-circuits; unparseable AI output falls back to the
// raw content as the analysis text.
func (o *Orchestrator) analyze(ctx context.Context, provider llm.Provider, userID, conversationID int64, question string, results []models.QueryResult) (*models.AnalysisReport, string) {
	successful := make([]models.QueryResult, 0, len(results))
	totalRows := 0
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
			totalRows += r.RowCount
		}
	}

	if len(successful) == 0 || totalRows == 0 {
		return &models.AnalysisReport{
			Title:            "Data Analysis",
			Analysis:         "The queries returned no data. Try broadening the filters or check that the data sources hold the data you are asking about.",
			KeyMetrics:       []models.KeyMetric{},
			ChartSuggestions: []models.ChartSuggestion{},
		}, ""
	}

	structural := summary.BuildStructuralSummary(successful)
	aiResp := provider.StreamChat(ctx, &llm.AIRequest{
		UserID:         userID,
		ConversationID: conversationID,
		RawPrompt:      true,
		Prompt:         prompt.Analysis(question, structural),
	}, o.chunkEmitter(userID, conversationID, events.PhaseAnalyzingData))

	var report models.AnalysisReport
	if err := llm.ParseInto(aiResp.Content, &report); err != nil || report.Analysis == "" {
		report = models.AnalysisReport{
			Title:            "Data Analysis",
			Analysis:         aiResp.Content,
			KeyMetrics:       []models.KeyMetric{},
			ChartSuggestions: []models.ChartSuggestion{},
		}
	}
	return &report, structural
}

// generateDashboard asks the AI for chart configuration. The config plus the
// verbatim datasets feed the server-side HTML renderer; the engine itself
// only logs the outcome.
func (o *Orchestrator) generateDashboard(ctx context.Context, provider llm.Provider, report *models.AnalysisReport, structural string, results []models.QueryResult) {
	successful := make([]models.QueryResult, 0, len(results))
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		}
	}
	if _, err := summary.BuildEmbeddableDatasets(successful); err != nil {
		slog.Warn("Failed to build embeddable datasets", "error", err)
		return
	}

	analysisJSON := fmt.Sprintf("%s\n\n%s", report.Title, report.Analysis)
	resp := provider.Chat(ctx, &llm.AIRequest{
		RawPrompt: true,
		Prompt:    prompt.Dashboard(analysisJSON, structural),
	})
	slog.Debug("Dashboard configuration generated", "bytes", len(resp.Content))
}

func (o *Orchestrator) persistAssistantTurn(ctx context.Context, state *conversation.State, conversationID int64, resp *llm.AIResponse) {
	if resp.Content != "" {
		msg := models.Message{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        resp.Content,
		}
		if err := o.store.AddMessage(ctx, &msg); err != nil {
			slog.Warn("Failed to persist assistant message",
				"conversation_id", conversationID, "error", err)
		}
	}
	if state != nil {
		o.conversations.UpdateState(state, resp)
	}
}

// emitPerConnectionCompletion reports row counts and elapsed time per
// connection after plan execution.
func (o *Orchestrator) emitPerConnectionCompletion(userID, conversationID int64, results []models.QueryResult) {
	type tally struct {
		name    string
		queries int
		rows    int
		elapsed int64
		failed  int
	}
	tallies := make(map[int64]*tally)
	order := make([]int64, 0, 4)
	for _, r := range results {
		t, ok := tallies[r.ConnectionID]
		if !ok {
			t = &tally{name: r.ConnectionName}
			tallies[r.ConnectionID] = t
			order = append(order, r.ConnectionID)
		}
		t.queries++
		t.rows += r.RowCount
		t.elapsed += r.ElapsedMs
		if !r.Success {
			t.failed++
		}
	}

	for _, id := range order {
		t := tallies[id]
		status := events.StatusCompleted
		msg := fmt.Sprintf("%s: %d queries, %d row(s) in %d ms", t.name, t.queries, t.rows, t.elapsed)
		if t.failed > 0 {
			msg = fmt.Sprintf("%s, %d failed", msg, t.failed)
		}
		o.emit(userID, conversationID, events.PhaseExecutingQueries, status, msg)
	}
}

func (o *Orchestrator) chunkEmitter(userID, conversationID int64, phase events.Phase) llm.ChunkFunc {
	return func(delta string) {
		o.emit(userID, conversationID, phase, events.StatusInProgress, delta)
	}
}

func (o *Orchestrator) emit(userID, conversationID int64, phase events.Phase, status events.Status, message string) {
	o.publisher.PublishActivity(userID, events.ActivityPayload{
		Phase:          phase,
		Status:         status,
		Message:        message,
		ConversationID: conversationID,
	})
}

// fail emits the error phase and delivers the final failed response on the
// error channel.
func (o *Orchestrator) fail(userID, conversationID int64, code, message string) {
	message = datasource.SanitizeError(message)
	o.emit(userID, conversationID, events.PhaseError, events.StatusError, message)
	o.publisher.PublishError(userID, models.AnalyzeResponse{
		Success:        false,
		ConversationID: conversationID,
		Error:          errorInfo(code, message),
		Timestamp:      time.Now().UTC(),
	})
}
