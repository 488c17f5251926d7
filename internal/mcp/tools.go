package mcp

// ToolDefinition models MCP tool metadata.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "memory_add",
			Description: "Store an explicitly provided memory with a caller-chosen importance.",
			InputSchema: jsonSchema(map[string]any{
				"content":     propString("Memory content."),
				"importance":  propNumber("Importance in [0, 1]; out-of-range values are clamped."),
				"memory_type": propString("Category tag (defaults to manual)."),
				"context":     propString("Provenance note."),
				"metadata": map[string]any{
					"type": "object",
				},
			}, []string{"content"}),
		},
		{
			Name:        "memory_list",
			Description: "List memories ranked by importance, then recency.",
			InputSchema: jsonSchema(map[string]any{
				"limit":       propNumber("Maximum rows (defaults to the configured list limit)."),
				"memory_type": propString("Optional exact-match type filter."),
			}, nil),
		},
		{
			Name:        "memory_search",
			Description: "Search memories by embedding similarity to a query.",
			InputSchema: jsonSchema(map[string]any{
				"query":     propString("Search query."),
				"threshold": propNumber("Minimum cosine similarity (defaults to 0.7)."),
				"limit":     propNumber("Maximum results (defaults to 5)."),
			}, []string{"query"}),
		},
		{
			Name:        "memory_update",
			Description: "Update any subset of a memory's content, importance or type.",
			InputSchema: jsonSchema(map[string]any{
				"id":          propNumber("Memory id."),
				"content":     propString("Replacement content; the embedding is recomputed."),
				"importance":  propNumber("Replacement importance in [0, 1]."),
				"memory_type": propString("Replacement category tag."),
			}, []string{"id"}),
		},
		{
			Name:        "memory_delete",
			Description: "Delete a memory. Deleting an unknown id is not an error.",
			InputSchema: jsonSchema(map[string]any{
				"id": propNumber("Memory id."),
			}, []string{"id"}),
		},
		{
			Name:        "memory_stats",
			Description: "Report total memories, average importance and distinct types.",
			InputSchema: jsonSchema(map[string]any{}, nil),
		},
		{
			Name:        "memory_ingest",
			Description: "Score a conversation message for importance and store it; may trigger consolidation.",
			InputSchema: jsonSchema(map[string]any{
				"text":    propString("Message text."),
				"context": propString("Provenance, e.g. user_input or assistant_response."),
			}, []string{"text"}),
		},
		{
			Name:        "memory_relevant",
			Description: "Retrieve memories relevant to a conversational context.",
			InputSchema: jsonSchema(map[string]any{
				"context": propString("Context text to match against."),
				"limit":   propNumber("Maximum results (defaults to 5)."),
			}, []string{"context"}),
		},
		{
			Name:        "memory_consolidate",
			Description: "Merge near-duplicate memories in one greedy pass.",
			InputSchema: jsonSchema(map[string]any{
				"threshold": propNumber("Minimum similarity for duplicates (defaults to 0.85)."),
			}, nil),
		},
	}
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propNumber(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}
