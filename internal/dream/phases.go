package dream

import (
	"fmt"
	"log"
	"time"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

// consolidateMemories boosts the importance of recently created fragments in
// proportion to how often other fragments reference them. Each boost leaves a
// completed audit task in the pipeline.
func (e *Engine) consolidateMemories() ConsolidationOutcome {
	var out ConsolidationOutcome
	next := e.metrics

	err := e.store.WithTx(func(tx *store.Tx) error {
		since := time.Now().UTC().Add(-consolidationWindow)
		bits, err := tx.RecentBitsWithInboundCounts(since, consolidationBatch)
		if err != nil {
			return err
		}
		out.BitsProcessed = len(bits)

		for _, b := range bits {
			if b.InboundRefs == 0 {
				continue
			}
			boosted := b.ImportanceScore + importanceBoostStep*float64(b.InboundRefs)
			if boosted > 1.0 {
				boosted = 1.0
			}
			if err := tx.UpdateBitImportance(b.ID, boosted); err != nil {
				return err
			}
			task := &store.EnhancementTask{
				TriggerType:     store.TriggerDreamConsolidation,
				SourceID:        b.ID,
				EnhancementType: "memory_consolidation",
				Status:          store.TaskCompleted,
				Priority:        priorityConsolidation,
			}
			if err := tx.EnqueueEnhancement(task); err != nil {
				return err
			}
			out.BitsBoosted++
		}

		next.MemoryConsolidationCycles++
		return tx.SaveMetrics(next)
	})
	if err != nil {
		log.Printf("[dream] memory consolidation failed: %v", err)
		return ConsolidationOutcome{PhaseOutcome: PhaseOutcome{Status: PhaseFailed, Error: err.Error()}}
	}

	e.metrics = next
	out.Status = PhaseCompleted
	return out
}

// analyzeReferencePatterns scans the most common edge shapes in the graph and
// queues an insight task for every shape that is both frequent and strong.
func (e *Engine) analyzeReferencePatterns() PatternOutcome {
	var out PatternOutcome
	next := e.metrics

	err := e.store.WithTx(func(tx *store.Tx) error {
		patterns, err := tx.ReferencePatterns(patternScanLimit)
		if err != nil {
			return err
		}
		out.PatternsAnalyzed = len(patterns)

		for _, p := range patterns {
			if p.AvgStrength > patternMinAvgStrength {
				out.StrongPatterns++
			}
			if p.Frequency >= patternMinFrequency && p.AvgStrength > patternMinAvgStrength {
				task := &store.EnhancementTask{
					TriggerType:      store.TriggerPatternInsight,
					RelationshipType: p.RelationshipType,
					EnhancementType:  "pattern_reinforcement",
					Status:           store.TaskPending,
					Priority:         priorityPatternInsight,
				}
				if err := tx.EnqueueEnhancement(task); err != nil {
					return err
				}
				out.InsightsQueued++
			}
		}

		next.CrossReferencesProcessed += out.PatternsAnalyzed
		return tx.SaveMetrics(next)
	})
	if err != nil {
		log.Printf("[dream] pattern analysis failed: %v", err)
		return PatternOutcome{PhaseOutcome: PhaseOutcome{Status: PhaseFailed, Error: err.Error()}}
	}

	e.metrics = next
	out.Status = PhaseCompleted
	return out
}

// enhanceRelationships links important but isolated fragments to their
// strongest same-category neighbors. Edge strength is the mean of the two
// importance scores; weak pairings are skipped, duplicate triples are
// silently ignored by the store.
func (e *Engine) enhanceRelationships() EnhancementOutcome {
	var out EnhancementOutcome
	next := e.metrics

	err := e.store.WithTx(func(tx *store.Tx) error {
		bits, err := tx.BitsWithoutOutgoing(enhanceMinImportance, enhanceBatch)
		if err != nil {
			return err
		}
		out.BitsProcessed = len(bits)

		for _, b := range bits {
			candidates, err := tx.CandidateBitsInCategory(b.Category, b.ID, candidateMinImportance, candidateLimit)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				strength := (b.ImportanceScore + c.ImportanceScore) / 2
				if strength <= linkMinStrength {
					continue
				}
				ref := &store.CrossReference{
					SourceBitID:      b.ID,
					TargetBitID:      c.ID,
					RelationshipType: store.RelRelated,
					Strength:         strength,
					Bidirectional:    true,
				}
				inserted, err := tx.InsertCrossReference(ref)
				if err != nil {
					return err
				}
				if inserted {
					out.ReferencesCreated++
				}
			}
		}

		next.RelationshipsEnhanced += out.ReferencesCreated
		return tx.SaveMetrics(next)
	})
	if err != nil {
		log.Printf("[dream] relationship enhancement failed: %v", err)
		return EnhancementOutcome{PhaseOutcome: PhaseOutcome{Status: PhaseFailed, Error: err.Error()}}
	}

	e.metrics = next
	out.Status = PhaseCompleted
	return out
}

// optimizeContextInjection measures graph connectivity against a fixed
// target and, when the graph is under-linked, queues generation tasks for
// important fragments that still have no outgoing edge.
func (e *Engine) optimizeContextInjection() OptimizationOutcome {
	out := OptimizationOutcome{Target: effectivenessTarget}
	next := e.metrics

	err := e.store.WithTx(func(tx *store.Tx) error {
		totalBits, err := tx.CountBits()
		if err != nil {
			return err
		}
		if totalBits == 0 {
			return fmt.Errorf("no fragments found")
		}
		totalRefs, err := tx.CountCrossReferences()
		if err != nil {
			return err
		}

		out.Effectiveness = float64(totalRefs) / (float64(totalBits) * 2)
		if out.Effectiveness > 1.0 {
			out.Effectiveness = 1.0
		}
		out.OptimizationNeeded = out.Effectiveness < effectivenessTarget
		if !out.OptimizationNeeded {
			return tx.SaveMetrics(next)
		}

		bits, err := tx.BitsWithoutOutgoing(optimizeMinImportance, optimizeBatch)
		if err != nil {
			return err
		}
		for _, b := range bits {
			task := &store.EnhancementTask{
				TriggerType:     store.TriggerContextOptimization,
				SourceID:        b.ID,
				EnhancementType: "cross_reference_generation",
				Status:          store.TaskPending,
				Priority:        priorityOptimization,
			}
			if err := tx.EnqueueEnhancement(task); err != nil {
				return err
			}
			out.TriggersCreated++
		}

		next.ContextInjectionsGenerated += out.TriggersCreated
		return tx.SaveMetrics(next)
	})
	if err != nil {
		log.Printf("[dream] context optimization failed: %v", err)
		return OptimizationOutcome{
			PhaseOutcome: PhaseOutcome{Status: PhaseFailed, Error: err.Error()},
			Target:       effectivenessTarget,
		}
	}

	e.metrics = next
	out.Status = PhaseCompleted
	return out
}

// synthesizeKnowledge finds the recurring strong-edge shapes in the graph
// and queues one insight-generation task per shape. It reads the edge set
// but never writes to it.
func (e *Engine) synthesizeKnowledge() SynthesisOutcome {
	var out SynthesisOutcome
	next := e.metrics

	err := e.store.WithTx(func(tx *store.Tx) error {
		combos, err := tx.StrongReferenceCombinations(synthesisMinStrength, synthesisMinFrequency, synthesisLimit)
		if err != nil {
			return err
		}
		out.CombinationsFound = len(combos)

		for range combos {
			task := &store.EnhancementTask{
				TriggerType:     store.TriggerKnowledgeSynthesis,
				EnhancementType: "insight_generation",
				Status:          store.TaskPending,
				Priority:        prioritySynthesis,
			}
			if err := tx.EnqueueEnhancement(task); err != nil {
				return err
			}
			out.EventsQueued++
		}

		next.KnowledgeSynthesisEvents += out.EventsQueued
		return tx.SaveMetrics(next)
	})
	if err != nil {
		log.Printf("[dream] knowledge synthesis failed: %v", err)
		return SynthesisOutcome{PhaseOutcome: PhaseOutcome{Status: PhaseFailed, Error: err.Error()}}
	}

	e.metrics = next
	out.Status = PhaseCompleted
	return out
}
