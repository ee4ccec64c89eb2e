// Package prompt builds the three LLM prompts the engine sends: the
// decision prompt (clarify / plan / answer), the analysis prompt over a
// structural summary, and the dashboard configuration prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/insightloop/glean/pkg/models"
)

const roleStatement = `You are a data analysis assistant. You help users explore
and analyze data across multiple connected data sources. You decide whether a
question can be answered from the available schemas, whether it needs
clarification, or whether it deserves a direct answer without data access.`

const decisionProcedure = `## Decision procedure
1. Match the user's question against the schemas above. If one or more tables,
   collections, indices or tools clearly hold the needed data, generate queries.
2. If the question is about the data but ambiguous (unclear time range, metric,
   or entity), ask ONE clarification question with 2-4 suggested options.
3. If the question is not about the connected data at all, answer directly.`

const criticalRules = `## Critical rules
1. Only use tables, columns, collections and fields listed in the schemas
   above. Never invent a column.
2. Match the query dialect to the source type: SQL for relational sources,
   MongoDB operations for mongodb, Elasticsearch DSL for elasticsearch, tool
   calls for mcp.
3. SQL must be a single SELECT statement (WITH ... SELECT is allowed). No
   INSERT, UPDATE, DELETE, DDL, or multiple statements.
4. Self-validate every query against the listed schema before responding.
5. Respond with a single JSON object and nothing else. No prose outside JSON.`

const responseSchema = `## Response format
{
  "type": "CLARIFICATION_NEEDED" | "READY_TO_EXECUTE" | "DIRECT_ANSWER",
  "intent": "<one line restating what the user wants>",
  "content": "<message shown to the user>",
  "clarificationQuestion": "<only for CLARIFICATION_NEEDED>",
  "suggestedOptions": ["<only for CLARIFICATION_NEEDED>"],
  "dataRequests": [
    {
      "type": "SQL_QUERY" | "MONGO_QUERY" | "ES_QUERY" | "MCP_TOOL_CALL" | "MCP_RESOURCE_READ",
      "sourceId": "<id of the source this request targets>",
      "explanation": "<what this query retrieves>",
      "sql": "<SQL_QUERY only>",
      "collection": "...", "operation": "find|count|aggregate", "filter": {}, "limit": 100,
      "index": "...", "query": {}, "size": 100,
      "toolName": "...", "arguments": {},
      "uri": "<MCP_RESOURCE_READ only>"
    }
  ]
}`

const workedExample = `## Example
User: "Top 5 customers by total order value last month"
{
  "type": "READY_TO_EXECUTE",
  "intent": "Rank customers by order value for the previous month",
  "content": "Fetching the top 5 customers by order value for last month.",
  "dataRequests": [
    {
      "type": "SQL_QUERY",
      "sourceId": "1",
      "explanation": "Sum order totals per customer over the last month",
      "sql": "SELECT c.name, SUM(o.total) AS total_value FROM customers c JOIN orders o ON o.customer_id = c.id WHERE o.created_at >= date_trunc('month', CURRENT_DATE - INTERVAL '1 month') AND o.created_at < date_trunc('month', CURRENT_DATE) GROUP BY c.name ORDER BY total_value DESC LIMIT 5"
    }
  ]
}`

const chainingRules = `## Cross-source chaining
When one query needs a value produced by another, build a chained plan:
- Give every request a "step" number starting at 1.
- A request that consumes an earlier result sets "dependsOn" to the producer's
  step number.
- The producer declares "outputAs": "$name" and "outputField": "<column>".
- The consumer references the value in its SQL as $name. Multi-row outputs are
  substituted as a comma-separated list suitable for IN ($ids).
- Each request's "sourceId" must name one of the connected sources.`

// Decision builds the full decision prompt: role, history, question, schemas,
// procedure, rules, response schema, example, chaining rules, in that order.
func Decision(userMessage string, history []models.Message, schemas []models.SourceSchema) string {
	var b strings.Builder

	b.WriteString(roleStatement)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("## Conversation so far\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Current question\n%s\n\n", userMessage)

	b.WriteString("## Available data sources\n")
	for i := range schemas {
		b.WriteString(RenderSchema(&schemas[i]))
		b.WriteString("\n")
	}

	b.WriteString(decisionProcedure)
	b.WriteString("\n\n")
	b.WriteString(criticalRules)
	b.WriteString("\n\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n")
	b.WriteString(workedExample)
	b.WriteString("\n\n")
	b.WriteString(chainingRules)

	return b.String()
}

// Analysis builds the analysis prompt over the structural summary. Raw rows
// never enter this prompt; redacted columns must stay invisible to the user.
func Analysis(userMessage, structuralSummary string) string {
	var b strings.Builder

	b.WriteString("You are a data analyst. Analyze the query results below and answer the user's question.\n\n")
	fmt.Fprintf(&b, "## User question\n%s\n\n", userMessage)
	fmt.Fprintf(&b, "## Query results (structural summary)\n%s\n", structuralSummary)
	b.WriteString(`## Instructions
- Base every statement on the summary above. Do not invent numbers.
- Never mention redacted columns or that anything was withheld.
- Respond with a single JSON object and nothing else:
{
  "title": "<short title for this analysis>",
  "analysis": "<2-4 paragraphs answering the question, markdown allowed>",
  "keyMetrics": [{"label": "...", "value": "...", "trend": "up|down|flat"}],
  "chartSuggestions": [{"type": "bar|line|pie|table", "title": "...", "xField": "...", "yField": "..."}]
}`)

	return b.String()
}

// Dashboard builds the dashboard configuration prompt from the analysis
// result and the same structural summary. The model emits configuration
// only; HTML is rendered server-side from a fixed template.
func Dashboard(analysisJSON, structuralSummary string) string {
	var b strings.Builder

	b.WriteString("You configure a data dashboard. Given the analysis and result summary below, choose the charts, metric cards and theme.\n\n")
	fmt.Fprintf(&b, "## Analysis\n%s\n\n", analysisJSON)
	fmt.Fprintf(&b, "## Query results (structural summary)\n%s\n", structuralSummary)
	b.WriteString(`## Instructions
Respond with a single JSON object and nothing else:
{
  "theme": "light|dark",
  "metrics": [{"label": "...", "value": "...", "trend": "up|down|flat"}],
  "charts": [{"type": "bar|line|pie|table", "title": "...", "dataset": <dataset index>, "xField": "...", "yField": "..."}]
}
Only reference columns present in the summary. Use at most 4 metric cards and 4 charts.`)

	return b.String()
}
