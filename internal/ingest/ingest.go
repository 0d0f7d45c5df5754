package ingest

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/tsawler/prose/v3"
	"github.com/zeebo/blake3"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

// Pipeline turns raw text into learning bits: classify, categorize, score,
// deduplicate by content hash, insert.
type Pipeline struct {
	store *store.Store
}

// NewPipeline creates an ingestion pipeline over the given store
func NewPipeline(s *store.Store) *Pipeline {
	return &Pipeline{store: s}
}

// Result reports one ingestion attempt. Duplicate means the content hash
// already existed and Bit points at the stored original.
type Result struct {
	Bit       *store.LearningBit `json:"bit"`
	Duplicate bool               `json:"duplicate"`
	Entities  []string           `json:"entities,omitempty"`
}

// Ingest stores one piece of content as a learning bit. Re-ingesting
// byte-identical content is a no-op that returns the existing bit.
func (p *Pipeline) Ingest(content, source string) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty content")
	}

	hash := contentHash(content)
	existing, err := p.store.FindBitByHash(hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("[ingest] duplicate content, keeping bit %s", existing.ID)
		return &Result{Bit: existing, Duplicate: true}, nil
	}

	entities, category := extractEntities(content)
	bit := &store.LearningBit{
		ID:              uuid.NewString(),
		Content:         content,
		ContentType:     classifyContentType(content),
		Category:        category,
		ImportanceScore: seedImportance(content, len(entities)),
		Source:          source,
		ContentHash:     hash,
	}
	if err := p.store.InsertBit(bit); err != nil {
		return nil, err
	}

	log.Printf("[ingest] stored bit %s type=%s category=%s importance=%.2f",
		bit.ID, bit.ContentType, bit.Category, bit.ImportanceScore)
	return &Result{Bit: bit, Entities: entities}, nil
}

func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// extractEntities runs NLP entity extraction and derives a category from the
// dominant entity label. Extraction failure or an entity-free text falls back
// to the general category.
func extractEntities(content string) ([]string, string) {
	doc, err := prose.NewDocument(content)
	if err != nil {
		return nil, "general"
	}

	var names []string
	labelCounts := make(map[string]int)
	for _, ent := range doc.Entities() {
		names = append(names, ent.Text)
		labelCounts[strings.ToUpper(ent.Label)]++
	}
	if len(labelCounts) == 0 {
		return names, "general"
	}

	dominant := ""
	best := 0
	for label, n := range labelCounts {
		if n > best {
			dominant, best = label, n
		}
	}
	return names, labelToCategory(dominant)
}

// labelToCategory maps prose entity labels to our category tags
func labelToCategory(label string) string {
	switch label {
	case "PERSON", "NORP":
		return "people"
	case "ORG":
		return "organizations"
	case "GPE", "LOC", "FAC":
		return "places"
	case "PRODUCT", "WORK_OF_ART", "LAW", "LANGUAGE":
		return "artifacts"
	case "EVENT":
		return "events"
	case "DATE", "TIME":
		return "time"
	case "MONEY", "PERCENT", "QUANTITY", "CARDINAL", "ORDINAL":
		return "quantities"
	default:
		return "general"
	}
}

// classifyContentType tags content by simple keyword heuristics. Decisions and
// workflows are checked before the catch-all since their markers are the most
// specific.
func classifyContentType(content string) store.ContentType {
	lower := strings.ToLower(content)

	// Records of choices made
	if strings.Contains(lower, "decided") || strings.Contains(lower, "decision") ||
		strings.Contains(lower, "chose ") || strings.Contains(lower, "agreed to") ||
		strings.Contains(lower, "opted for") {
		return store.ContentDecision
	}

	// Step-by-step procedural content
	if strings.Contains(lower, "step ") || strings.Contains(lower, "workflow") ||
		strings.Contains(lower, "how to") || strings.Contains(lower, "procedure") ||
		strings.Contains(lower, "first,") && strings.Contains(lower, "then") {
		return store.ContentWorkflow
	}

	// Situational / environmental state
	if strings.Contains(lower, "currently") || strings.Contains(lower, "environment") ||
		strings.Contains(lower, "context") || strings.Contains(lower, "background:") ||
		strings.Contains(lower, "setup") {
		return store.ContentContext
	}

	return store.ContentConcept
}

// seedImportance derives an initial score from content length and entity
// density. New bits start near the middle of the range; consolidation boosts
// take it from there.
func seedImportance(content string, entityCount int) float64 {
	score := 0.5

	lengthBonus := float64(len(content)) / 2000.0
	if lengthBonus > 0.2 {
		lengthBonus = 0.2
	}
	score += lengthBonus

	entityBonus := 0.05 * float64(entityCount)
	if entityBonus > 0.3 {
		entityBonus = 0.3
	}
	score += entityBonus

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
