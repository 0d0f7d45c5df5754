package store

import (
	"fmt"
	"time"
)

func loadMetrics(q querier) (Metrics, error) {
	var m Metrics
	err := q.QueryRow(`
		SELECT dream_cycles, cross_references_processed, relationships_enhanced,
			context_injections_generated, knowledge_synthesis_events,
			memory_consolidation_cycles, last_updated
		FROM dream_system_metrics WHERE id = 1
	`).Scan(&m.DreamCycles, &m.CrossReferencesProcessed, &m.RelationshipsEnhanced,
		&m.ContextInjectionsGenerated, &m.KnowledgeSynthesisEvents,
		&m.MemoryConsolidationCycles, &m.LastUpdated)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to load metrics: %w", err)
	}
	return m, nil
}

// saveMetrics overwrites the single metrics record. Called inside each
// phase transaction so counter updates commit atomically with the phase's
// own writes.
func saveMetrics(q querier, m Metrics) error {
	_, err := q.Exec(`
		UPDATE dream_system_metrics SET
			dream_cycles = ?,
			cross_references_processed = ?,
			relationships_enhanced = ?,
			context_injections_generated = ?,
			knowledge_synthesis_events = ?,
			memory_consolidation_cycles = ?,
			last_updated = ?
		WHERE id = 1
	`, m.DreamCycles, m.CrossReferencesProcessed, m.RelationshipsEnhanced,
		m.ContextInjectionsGenerated, m.KnowledgeSynthesisEvents,
		m.MemoryConsolidationCycles, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

// Store-level entry points

func (s *Store) LoadMetrics() (Metrics, error) { return loadMetrics(s.db) }
func (s *Store) SaveMetrics(m Metrics) error   { return saveMetrics(s.db, m) }

// Tx-level entry points used by consolidation phases

func (t *Tx) SaveMetrics(m Metrics) error { return saveMetrics(t.tx, m) }
