package types

import "time"

// MemoryRecord represents one persisted memory item.
type MemoryRecord struct {
	ID           int64          `json:"id"`
	Content      string         `json:"content"`
	Importance   float64        `json:"importance"`
	MemoryType   string         `json:"memory_type"`
	Context      string         `json:"context,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// AddInput describes a new memory write operation.
type AddInput struct {
	Content    string         `json:"content"`
	Importance float64        `json:"importance"`
	MemoryType string         `json:"memory_type,omitempty"`
	Context    string         `json:"context,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ListInput selects and bounds a ranked listing.
type ListInput struct {
	Limit      int    `json:"limit,omitempty"`
	MemoryType string `json:"memory_type,omitempty"`
}

// SearchInput is used for similarity search operations.
type SearchInput struct {
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ID         int64    `json:"id"`
	Content    *string  `json:"content,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	MemoryType *string  `json:"memory_type,omitempty"`
}

// SearchResult is a scored item from similarity search.
type SearchResult struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}

// IngestInput feeds one conversation message through importance scoring.
type IngestInput struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// ConsolidateInput tunes one explicit consolidation pass.
type ConsolidateInput struct {
	Threshold float64 `json:"threshold,omitempty"`
}

// Stats summarizes the stored memory set.
type Stats struct {
	Total         int64   `json:"total_memories"`
	AvgImportance float64 `json:"avg_importance"`
	Types         int64   `json:"memory_types"`
}
