// Package events implements the per-user progress transport: five typed
// logical channels (activity, clarification, response, error, pong) fanned
// out to whichever wire transport the API layer attaches.
package events

// Phase names the stages of the orchestrator's state machine, in normal order.
type Phase string

const (
	PhaseUnderstandingIntent Phase = "understanding_intent"
	PhaseMappingDataSources  Phase = "mapping_data_sources"
	PhaseAnalyzingSchemas    Phase = "analyzing_schemas"
	PhaseGeneratingQueries   Phase = "generating_queries"
	PhaseAIThinking          Phase = "ai_thinking"
	PhaseExecutingQueries    Phase = "executing_queries"
	PhaseAnalyzingData       Phase = "analyzing_data"
	PhaseGeneratingDashboard Phase = "generating_dashboard"
	PhasePreparingResponse   Phase = "preparing_response"
	PhaseCompleted           Phase = "completed"
	PhaseError               Phase = "error"
	PhasePing                Phase = "ping"
)

// Status is the lifecycle state carried on an activity message.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusOK         Status = "ok"
)

// Channel identifies one of the five logical per-user channels.
type Channel string

const (
	ChannelActivity      Channel = "activity"
	ChannelClarification Channel = "clarification"
	ChannelResponse      Channel = "response"
	ChannelError         Channel = "error"
	ChannelPong          Channel = "pong"
)
