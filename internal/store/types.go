package store

import (
	"time"
)

// RelationshipType defines the type of a cross-reference between learning bits
type RelationshipType string

const (
	RelRelated    RelationshipType = "related"
	RelImplements RelationshipType = "implements"
	RelDependsOn  RelationshipType = "depends_on"
	RelSimilarTo  RelationshipType = "similar_to"
	RelReferences RelationshipType = "references"
	RelExtends    RelationshipType = "extends"
	RelComposes   RelationshipType = "composes"
)

// ContentType classifies what kind of knowledge a learning bit holds
type ContentType string

const (
	ContentConcept  ContentType = "concept"
	ContentWorkflow ContentType = "workflow"
	ContentDecision ContentType = "decision"
	ContentContext  ContentType = "context"
)

// TriggerType identifies which maintenance phase produced an enhancement task
type TriggerType string

const (
	TriggerDreamConsolidation   TriggerType = "dream_consolidation"
	TriggerPatternInsight       TriggerType = "pattern_insight"
	TriggerLearningRelationship TriggerType = "learning_relationship"
	TriggerContextOptimization  TriggerType = "context_optimization"
	TriggerKnowledgeSynthesis   TriggerType = "knowledge_synthesis"
)

// TaskStatus is the lifecycle state of an enhancement task. The engine only
// ever writes these two values; transitioning or removing tasks belongs to
// the downstream pipeline consumer.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// LearningBit is a stored unit of knowledge with an importance score
type LearningBit struct {
	ID              string      `json:"id"`
	Content         string      `json:"content"`
	ContentType     ContentType `json:"content_type"`
	Category        string      `json:"category"`
	ImportanceScore float64     `json:"importance_score"`
	Source          string      `json:"source,omitempty"`
	ContentHash     string      `json:"content_hash,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	// Populated by RecentBitsWithInboundCounts
	InboundRefs int `json:"inbound_refs,omitempty"`
}

// CrossReference is a typed, weighted directed edge between two learning bits.
// Bidirectional edges are stored once and queried both ways.
type CrossReference struct {
	ID               int64            `json:"id,omitempty"`
	SourceBitID      string           `json:"source_bit_id"`
	TargetBitID      string           `json:"target_bit_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Strength         float64          `json:"strength"`
	Bidirectional    bool             `json:"bidirectional"`
	CreatedAt        time.Time        `json:"created_at"`
}

// EnhancementTask is a queued follow-up work item emitted by the engine.
// The queue is append-only from the engine's point of view: a separate
// consumer polls for pending rows and owns their lifecycle from there.
type EnhancementTask struct {
	ID               int64            `json:"id,omitempty"`
	TriggerType      TriggerType      `json:"trigger_type"`
	SourceID         string           `json:"source_id,omitempty"`
	TargetID         string           `json:"target_id,omitempty"`
	RelationshipType RelationshipType `json:"relationship_type,omitempty"`
	EnhancementType  string           `json:"enhancement_type"`
	Status           TaskStatus       `json:"status"`
	Priority         int              `json:"priority"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Metrics is the single authoritative dream_system_metrics record. It is
// loaded at engine construction and written transactionally alongside each
// successful phase, so counters survive restarts.
type Metrics struct {
	DreamCycles                int       `json:"dream_cycles"`
	CrossReferencesProcessed   int       `json:"cross_references_processed"`
	RelationshipsEnhanced      int       `json:"relationships_enhanced"`
	ContextInjectionsGenerated int       `json:"context_injections_generated"`
	KnowledgeSynthesisEvents   int       `json:"knowledge_synthesis_events"`
	MemoryConsolidationCycles  int       `json:"memory_consolidation_cycles"`
	LastUpdated                time.Time `json:"last_updated"`
}

// ReferencePattern is one group from the cross-reference pattern scan.
// Edges share a relationship type and the content_type/category of both
// endpoints; Frequency and AvgStrength summarize the group.
type ReferencePattern struct {
	RelationshipType  RelationshipType
	SourceContentType ContentType
	SourceCategory    string
	TargetContentType ContentType
	TargetCategory    string
	Frequency         int
	AvgStrength       float64
}

// ReferenceCombination is one group from the strong-edge synthesis scan,
// keyed by the endpoint content_type/category pairs only.
type ReferenceCombination struct {
	SourceContentType ContentType
	SourceCategory    string
	TargetContentType ContentType
	TargetCategory    string
	Frequency         int
}
