package dream

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

// Tuning constants for the five consolidation phases. These are fixed
// parameters of the algorithm, not configuration.
const (
	consolidationWindow = 7 * 24 * time.Hour
	consolidationBatch  = 20
	importanceBoostStep = 0.1

	patternScanLimit      = 10
	patternMinFrequency   = 3
	patternMinAvgStrength = 0.6

	enhanceMinImportance   = 0.7
	enhanceBatch           = 15
	candidateMinImportance = 0.5
	candidateLimit         = 3
	linkMinStrength        = 0.4

	effectivenessTarget   = 0.8
	optimizeMinImportance = 0.6
	optimizeBatch         = 10

	synthesisMinStrength  = 0.7
	synthesisMinFrequency = 2
	synthesisLimit        = 5
)

// Task priorities. The numbers are part of the queue contract with the
// downstream consumer; the engine assigns them but never orders by them.
const (
	priorityConsolidation  = 5
	priorityPatternInsight = 3
	prioritySynthesis      = 2
	priorityOptimization   = 1
)

// Engine runs dream cycles over the knowledge graph: five maintenance phases,
// each in its own transaction, with cumulative metrics persisted alongside.
// A mutex serializes cycles so concurrent callers queue up instead of
// interleaving phase transactions.
type Engine struct {
	store *store.Store

	mu      sync.Mutex
	metrics store.Metrics
}

// NewEngine creates an engine bound to the given store and reloads the
// persisted metrics record, so effectiveness accumulates across restarts.
func NewEngine(s *store.Store) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("dream engine requires a store")
	}
	metrics, err := s.LoadMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	return &Engine{store: s, metrics: metrics}, nil
}

// RunCycle executes the five phases in order and never returns an error.
// A phase failure is recorded on that phase's outcome and the cycle moves
// on. The cycle counter increments even when phases fail; if its own
// persistence write fails the increment is skipped so the in-memory
// counters stay consistent with the database.
func (e *Engine) RunCycle() *CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &CycleResult{StartedAt: time.Now().UTC()}
	log.Printf("[dream] starting cycle %d", e.metrics.DreamCycles+1)

	result.Consolidation = e.consolidateMemories()
	result.Patterns = e.analyzeReferencePatterns()
	result.Enhancement = e.enhanceRelationships()
	result.Optimization = e.optimizeContextInjection()
	result.Synthesis = e.synthesizeKnowledge()

	// The cycle counts even if every phase failed. A failed write here
	// skips the increment; memory and disk stay in step either way.
	next := e.metrics
	next.DreamCycles++
	if err := e.store.WithTx(func(tx *store.Tx) error {
		return tx.SaveMetrics(next)
	}); err != nil {
		log.Printf("[dream] failed to persist cycle count: %v", err)
	} else {
		e.metrics = next
	}

	result.Effectiveness = effectivenessScore(e.metrics)
	result.Metrics = e.metrics
	result.FinishedAt = time.Now().UTC()
	log.Printf("[dream] cycle %d complete: effectiveness=%.2f boosted=%d created=%d",
		e.metrics.DreamCycles, result.Effectiveness,
		result.Consolidation.BitsBoosted, result.Enhancement.ReferencesCreated)
	return result
}

// Status reports the engine's cumulative state without running a cycle.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	eff := effectivenessScore(e.metrics)
	health := HealthNeedsAttention
	if eff > 0.5 {
		health = HealthOptimal
	}
	return Status{
		DreamCycles:   e.metrics.DreamCycles,
		Metrics:       e.metrics,
		Effectiveness: eff,
		Health:        health,
	}
}

// effectivenessScore is the weighted sum of the five cumulative metrics,
// each normalized against a saturation point of 10 and skipped while zero.
// Clamped to [0, 1]; it accumulates over the engine's lifetime rather than
// resetting per cycle.
func effectivenessScore(m store.Metrics) float64 {
	score := 0.0
	add := func(metric int, weight float64) {
		if metric == 0 {
			return
		}
		v := float64(metric) / 10.0
		if v > 1 {
			v = 1
		}
		score += weight * v
	}
	add(m.CrossReferencesProcessed, 0.25)
	add(m.RelationshipsEnhanced, 0.25)
	add(m.ContextInjectionsGenerated, 0.25)
	add(m.KnowledgeSynthesisEvents, 0.15)
	add(m.MemoryConsolidationCycles, 0.10)

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
