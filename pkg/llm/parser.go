package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseAIResponse turns raw model output into a structured AIResponse.
// Models wrap JSON in code fences, prepend prose, or emit slightly broken
// JSON; the parser strips decoration, extracts the outermost object and
// runs a repair pass before giving up. Unparseable output degrades to a
// DIRECT_ANSWER carrying the raw text, never an error.
func ParseAIResponse(raw string) *AIResponse {
	text := strings.TrimSpace(raw)

	candidate := extractJSONObject(stripCodeFences(text))
	if candidate == "" {
		return &AIResponse{Type: TypeDirectAnswer, Content: text}
	}

	var resp AIResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			slog.Debug("AI response JSON repair failed", "error", repairErr)
			return &AIResponse{Type: TypeDirectAnswer, Content: text}
		}
		if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
			slog.Debug("AI response unparseable after repair", "error", err)
			return &AIResponse{Type: TypeDirectAnswer, Content: text}
		}
	}

	switch resp.Type {
	case TypeClarificationNeeded, TypeReadyToExecute, TypeDirectAnswer:
	default:
		resp.Type = TypeDirectAnswer
	}
	if resp.Content == "" && resp.Type == TypeDirectAnswer {
		resp.Content = text
	}
	return &resp
}

// ParseInto decodes a JSON object from raw model output into dst, applying
// the same fence stripping, object extraction and repair pass as
// ParseAIResponse. Used for the analysis and dashboard payloads, which carry
// their own shapes.
func ParseInto(raw string, dst any) error {
	candidate := extractJSONObject(stripCodeFences(strings.TrimSpace(raw)))
	if candidate == "" {
		return fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(candidate), dst); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return fmt.Errorf("failed to repair model JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), dst); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}

// stripCodeFences removes a leading ```json / ``` fence pair if present.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line (```json, ```JSON, bare ```).
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// extractJSONObject returns the outermost {...} span, or "" when the text
// contains no object at all.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
