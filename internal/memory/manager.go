package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memoryd/internal/config"
	"github.com/xiy/memoryd/internal/store"
	"github.com/xiy/memoryd/pkg/types"
)

// Manager layers scoring, retrieval and consolidation policy over the store.
// It holds no persisted state of its own beyond the consolidation watermark,
// which assumes a single Manager instance per process.
type Manager struct {
	store  store.Store
	cfg    config.Config
	logger *log.Logger

	mu                sync.Mutex
	lastConsolidation time.Time
}

// NewManager constructs a memory manager.
func NewManager(st store.Store, cfg config.Config, logger *log.Logger) *Manager {
	return &Manager{
		store:             st,
		cfg:               cfg,
		logger:            logger,
		lastConsolidation: time.Now(),
	}
}

// ProcessMessage scores a conversation message and stores it. When the time
// since the last consolidation exceeds the configured interval it also runs
// a consolidation pass; a failing pass is logged and never blocks ingestion
// or rolls back the just-added record.
func (m *Manager) ProcessMessage(ctx context.Context, text, msgContext string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("message text must not be empty")
	}

	id, err := m.store.Add(ctx, types.AddInput{
		Content:    text,
		Importance: ScoreImportance(text),
		MemoryType: "conversation",
		Context:    msgContext,
	})
	if err != nil {
		return 0, err
	}

	if m.consolidationDue() {
		// The watermark stays reset even when the pass fails, so a
		// persistently failing codec cannot cause a consolidation storm.
		if _, err := m.Consolidate(ctx, m.cfg.ConsolidationThreshold); err != nil {
			m.logger.Warn("consolidation failed; continuing", "error", err)
		}
	}
	return id, nil
}

func (m *Manager) consolidationDue() bool {
	interval := time.Duration(m.cfg.ConsolidationIntervalMinutes) * time.Minute
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.lastConsolidation) <= interval {
		return false
	}
	m.lastConsolidation = time.Now()
	return true
}

// GetRelevant retrieves memories moderately-to-highly similar to the given
// context. The similarity threshold is a policy constant from configuration,
// not caller-tunable.
func (m *Manager) GetRelevant(ctx context.Context, contextText string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = m.cfg.DefaultRelevantLimit
	}
	return m.store.SearchSimilar(ctx, contextText, m.cfg.RelevanceThreshold, limit)
}

// Consolidate merges near-duplicate memories in one greedy pass: walking
// records in ranked order, each unvisited record collects every record at or
// above the similarity threshold into a cluster, keeps itself with the
// cluster's maximum importance, and deletes the rest. The pass is not
// transitive; chains of records that are pairwise-similar across the
// threshold boundary can stay unmerged. Returns the number of removed
// duplicates.
func (m *Manager) Consolidate(ctx context.Context, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = m.cfg.ConsolidationThreshold
	}

	memories, err := m.store.List(ctx, 0, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	visited := make(map[int64]struct{}, len(memories))
	for _, rec := range memories {
		if _, ok := visited[rec.ID]; ok {
			continue
		}
		visited[rec.ID] = struct{}{}

		matches, err := m.store.SearchSimilar(ctx, rec.Content, threshold, 0)
		if err != nil {
			return removed, err
		}
		if len(matches) <= 1 {
			continue
		}

		maxImportance := rec.Importance
		for _, match := range matches {
			if match.Record.Importance > maxImportance {
				maxImportance = match.Record.Importance
			}
		}
		if err := m.store.Update(ctx, types.UpdateInput{ID: rec.ID, Importance: &maxImportance}); err != nil {
			return removed, err
		}
		for _, match := range matches {
			visited[match.Record.ID] = struct{}{}
			if match.Record.ID == rec.ID {
				continue
			}
			if err := m.store.Delete(ctx, match.Record.ID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("consolidation removed duplicate memories", "count", removed)
	}
	return removed, nil
}

// Add stores an explicitly provided memory.
func (m *Manager) Add(ctx context.Context, in types.AddInput) (int64, error) {
	if strings.TrimSpace(in.Content) == "" {
		return 0, errors.New("content must not be empty")
	}
	if in.MemoryType == "" {
		in.MemoryType = "manual"
	}
	return m.store.Add(ctx, in)
}

// List returns ranked memory records.
func (m *Manager) List(ctx context.Context, in types.ListInput) ([]types.MemoryRecord, error) {
	return m.store.List(ctx, in.Limit, in.MemoryType)
}

// Search runs a similarity search with a caller-supplied threshold.
func (m *Manager) Search(ctx context.Context, in types.SearchInput) ([]types.SearchResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, errors.New("query must not be empty")
	}
	return m.store.SearchSimilar(ctx, in.Query, in.Threshold, in.Limit)
}

// Update applies a partial update to a record.
func (m *Manager) Update(ctx context.Context, in types.UpdateInput) error {
	if in.ID <= 0 {
		return errors.New("id is required")
	}
	return m.store.Update(ctx, in)
}

// Delete removes a record; unknown ids are ignored.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("id is required")
	}
	return m.store.Delete(ctx, id)
}

// Stats reports stored memory counters.
func (m *Manager) Stats(ctx context.Context) (types.Stats, error) {
	return m.store.Stats(ctx)
}
