package dream

import (
	"time"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

// PhaseStatus is the terminal state of one consolidation phase within a cycle.
type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
)

// PhaseOutcome is embedded in every phase result. A failed phase carries the
// error text; its transaction was rolled back and its counters are zero.
type PhaseOutcome struct {
	Status PhaseStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ConsolidationOutcome reports the memory consolidation phase: how many
// recent fragments were examined and how many got an importance boost.
type ConsolidationOutcome struct {
	PhaseOutcome
	BitsProcessed int `json:"bits_processed"`
	BitsBoosted   int `json:"bits_boosted"`
}

// PatternOutcome reports the cross-reference pattern analysis phase.
// StrongPatterns counts groups with average strength above the threshold;
// InsightsQueued counts those that also met the frequency floor.
type PatternOutcome struct {
	PhaseOutcome
	PatternsAnalyzed int `json:"patterns_analyzed"`
	StrongPatterns   int `json:"strong_patterns"`
	InsightsQueued   int `json:"insights_queued"`
}

// EnhancementOutcome reports the relationship enhancement phase.
type EnhancementOutcome struct {
	PhaseOutcome
	BitsProcessed     int `json:"bits_processed"`
	ReferencesCreated int `json:"references_created"`
}

// OptimizationOutcome reports the context injection optimization phase.
type OptimizationOutcome struct {
	PhaseOutcome
	Effectiveness      float64 `json:"effectiveness"`
	Target             float64 `json:"target"`
	TriggersCreated    int     `json:"triggers_created"`
	OptimizationNeeded bool    `json:"optimization_needed"`
}

// SynthesisOutcome reports the knowledge synthesis phase.
type SynthesisOutcome struct {
	PhaseOutcome
	CombinationsFound int `json:"combinations_found"`
	EventsQueued      int `json:"events_queued"`
}

// CycleResult is the full record of one dream cycle. RunCycle always returns
// one; per-phase failures live on the phase outcomes, never as a cycle error.
type CycleResult struct {
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Consolidation ConsolidationOutcome `json:"memory_consolidation"`
	Patterns      PatternOutcome       `json:"pattern_analysis"`
	Enhancement   EnhancementOutcome   `json:"relationship_enhancement"`
	Optimization  OptimizationOutcome  `json:"context_optimization"`
	Synthesis     SynthesisOutcome     `json:"knowledge_synthesis"`
	Effectiveness float64              `json:"effectiveness"`
	Metrics       store.Metrics        `json:"metrics"`
}

// Status is the engine's externally visible state.
type Status struct {
	DreamCycles   int           `json:"dream_cycles"`
	Metrics       store.Metrics `json:"metrics"`
	Effectiveness float64       `json:"effectiveness"`
	Health        string        `json:"health"`
}

const (
	HealthOptimal        = "optimal"
	HealthNeedsAttention = "needs_attention"
)
