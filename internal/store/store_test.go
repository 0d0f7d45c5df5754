package store

import (
	"os"
	"testing"
	"time"
)

// setupTestStore creates a temporary test database
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	s, err := Open(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func addTestBit(t *testing.T, s *Store, id, category string, importance float64) *LearningBit {
	t.Helper()
	bit := &LearningBit{
		ID:              id,
		Content:         "content of " + id,
		ContentType:     ContentConcept,
		Category:        category,
		ImportanceScore: importance,
		Source:          "test",
	}
	if err := s.InsertBit(bit); err != nil {
		t.Fatalf("Failed to insert bit %s: %v", id, err)
	}
	return bit
}

func addTestRef(t *testing.T, s *Store, source, target string, relType RelationshipType, strength float64) {
	t.Helper()
	_, err := s.InsertCrossReference(&CrossReference{
		SourceBitID:      source,
		TargetBitID:      target,
		RelationshipType: relType,
		Strength:         strength,
	})
	if err != nil {
		t.Fatalf("Failed to insert ref %s->%s: %v", source, target, err)
	}
}

func TestInsertAndGetBit(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	bit := addTestBit(t, s, "bit-1", "testing", 0.7)

	got, err := s.GetBit("bit-1")
	if err != nil {
		t.Fatalf("GetBit failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected bit, got nil")
	}
	if got.Content != bit.Content {
		t.Errorf("Content = %q, want %q", got.Content, bit.Content)
	}
	if got.Category != "testing" {
		t.Errorf("Category = %q, want testing", got.Category)
	}
	if got.ImportanceScore != 0.7 {
		t.Errorf("ImportanceScore = %v, want 0.7", got.ImportanceScore)
	}

	missing, err := s.GetBit("no-such-bit")
	if err != nil {
		t.Fatalf("GetBit on missing id failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing bit, got %+v", missing)
	}
}

func TestInsertBitClampsImportance(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "over", "testing", 1.5)
	got, _ := s.GetBit("over")
	if got.ImportanceScore != 1.0 {
		t.Errorf("ImportanceScore = %v, want clamped 1.0", got.ImportanceScore)
	}

	if err := s.UpdateBitImportance("over", -0.3); err != nil {
		t.Fatalf("UpdateBitImportance failed: %v", err)
	}
	got, _ = s.GetBit("over")
	if got.ImportanceScore != 0.0 {
		t.Errorf("ImportanceScore = %v, want clamped 0.0", got.ImportanceScore)
	}
}

func TestFindBitByHash(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	bit := &LearningBit{
		ID:          "hashed",
		Content:     "some content",
		ContentType: ContentConcept,
		Category:    "general",
		ContentHash: "abc123",
	}
	if err := s.InsertBit(bit); err != nil {
		t.Fatalf("InsertBit failed: %v", err)
	}

	got, err := s.FindBitByHash("abc123")
	if err != nil {
		t.Fatalf("FindBitByHash failed: %v", err)
	}
	if got == nil || got.ID != "hashed" {
		t.Errorf("Expected bit hashed, got %+v", got)
	}

	none, err := s.FindBitByHash("missing")
	if err != nil {
		t.Fatalf("FindBitByHash failed: %v", err)
	}
	if none != nil {
		t.Errorf("Expected nil for unknown hash, got %+v", none)
	}
}

func TestCrossReferenceDedup(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "a", "testing", 0.8)
	addTestBit(t, s, "b", "testing", 0.8)

	inserted, err := s.InsertCrossReference(&CrossReference{
		SourceBitID: "a", TargetBitID: "b", RelationshipType: RelRelated, Strength: 0.8,
	})
	if err != nil {
		t.Fatalf("InsertCrossReference failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to report inserted")
	}

	inserted, err = s.InsertCrossReference(&CrossReference{
		SourceBitID: "a", TargetBitID: "b", RelationshipType: RelRelated, Strength: 0.2,
	})
	if err != nil {
		t.Fatalf("Duplicate insert errored: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate triple to be ignored")
	}

	// A different type between the same bits is a new edge
	inserted, err = s.InsertCrossReference(&CrossReference{
		SourceBitID: "a", TargetBitID: "b", RelationshipType: RelImplements, Strength: 0.8,
	})
	if err != nil {
		t.Fatalf("InsertCrossReference failed: %v", err)
	}
	if !inserted {
		t.Error("Expected different relationship type to insert")
	}

	count, err := s.CountCrossReferences()
	if err != nil {
		t.Fatalf("CountCrossReferences failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

func TestRecentBitsWithInboundCounts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "hub", "testing", 0.9)
	addTestBit(t, s, "b", "testing", 0.5)
	addTestBit(t, s, "c", "testing", 0.5)
	addTestRef(t, s, "b", "hub", RelRelated, 0.8)
	addTestRef(t, s, "c", "hub", RelRelated, 0.8)

	var bits []LearningBit
	err := s.WithTx(func(tx *Tx) error {
		var err error
		bits, err = tx.RecentBitsWithInboundCounts(time.Now().Add(-time.Hour), 20)
		return err
	})
	if err != nil {
		t.Fatalf("RecentBitsWithInboundCounts failed: %v", err)
	}

	if len(bits) != 3 {
		t.Fatalf("Got %d bits, want 3", len(bits))
	}
	if bits[0].ID != "hub" {
		t.Errorf("First bit = %s, want hub (highest importance)", bits[0].ID)
	}
	if bits[0].InboundRefs != 2 {
		t.Errorf("hub InboundRefs = %d, want 2", bits[0].InboundRefs)
	}
	if bits[1].InboundRefs != 0 {
		t.Errorf("Second bit InboundRefs = %d, want 0", bits[1].InboundRefs)
	}

	// A cutoff in the future excludes everything
	err = s.WithTx(func(tx *Tx) error {
		var err error
		bits, err = tx.RecentBitsWithInboundCounts(time.Now().Add(time.Hour), 20)
		return err
	})
	if err != nil {
		t.Fatalf("RecentBitsWithInboundCounts failed: %v", err)
	}
	if len(bits) != 0 {
		t.Errorf("Got %d bits after future cutoff, want 0", len(bits))
	}
}

func TestBitsWithoutOutgoing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "linked", "testing", 0.9)
	addTestBit(t, s, "isolated", "testing", 0.8)
	addTestBit(t, s, "weak", "testing", 0.5)
	addTestRef(t, s, "linked", "isolated", RelRelated, 0.8)

	var bits []LearningBit
	err := s.WithTx(func(tx *Tx) error {
		var err error
		bits, err = tx.BitsWithoutOutgoing(0.7, 20)
		return err
	})
	if err != nil {
		t.Fatalf("BitsWithoutOutgoing failed: %v", err)
	}

	if len(bits) != 1 {
		t.Fatalf("Got %d bits, want 1", len(bits))
	}
	if bits[0].ID != "isolated" {
		t.Errorf("Got %s, want isolated", bits[0].ID)
	}
}

func TestCandidateBitsInCategory(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "self", "golang", 0.9)
	addTestBit(t, s, "strong", "golang", 0.8)
	addTestBit(t, s, "weak", "golang", 0.3)
	addTestBit(t, s, "other", "python", 0.9)

	var bits []LearningBit
	err := s.WithTx(func(tx *Tx) error {
		var err error
		bits, err = tx.CandidateBitsInCategory("golang", "self", 0.5, 3)
		return err
	})
	if err != nil {
		t.Fatalf("CandidateBitsInCategory failed: %v", err)
	}

	if len(bits) != 1 {
		t.Fatalf("Got %d candidates, want 1", len(bits))
	}
	if bits[0].ID != "strong" {
		t.Errorf("Got %s, want strong", bits[0].ID)
	}
}

func TestReferencePatterns(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "s1", "golang", 0.8)
	addTestBit(t, s, "s2", "golang", 0.8)
	addTestBit(t, s, "s3", "golang", 0.8)
	addTestBit(t, s, "t1", "testing", 0.8)
	addTestRef(t, s, "s1", "t1", RelRelated, 0.6)
	addTestRef(t, s, "s2", "t1", RelRelated, 0.8)
	addTestRef(t, s, "s3", "t1", RelRelated, 1.0)
	addTestRef(t, s, "s1", "t1", RelImplements, 0.5)

	var patterns []ReferencePattern
	err := s.WithTx(func(tx *Tx) error {
		var err error
		patterns, err = tx.ReferencePatterns(10)
		return err
	})
	if err != nil {
		t.Fatalf("ReferencePatterns failed: %v", err)
	}

	if len(patterns) != 2 {
		t.Fatalf("Got %d patterns, want 2", len(patterns))
	}
	top := patterns[0]
	if top.RelationshipType != RelRelated {
		t.Errorf("Top pattern type = %s, want related", top.RelationshipType)
	}
	if top.Frequency != 3 {
		t.Errorf("Top pattern frequency = %d, want 3", top.Frequency)
	}
	if top.AvgStrength < 0.79 || top.AvgStrength > 0.81 {
		t.Errorf("Top pattern avg strength = %v, want ~0.8", top.AvgStrength)
	}
	if top.SourceCategory != "golang" || top.TargetCategory != "testing" {
		t.Errorf("Pattern categories = %s->%s, want golang->testing", top.SourceCategory, top.TargetCategory)
	}
}

func TestStrongReferenceCombinations(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "s1", "golang", 0.8)
	addTestBit(t, s, "s2", "golang", 0.8)
	addTestBit(t, s, "t1", "testing", 0.8)
	addTestBit(t, s, "t2", "testing", 0.8)
	// Two strong edges in the same combination
	addTestRef(t, s, "s1", "t1", RelRelated, 0.9)
	addTestRef(t, s, "s2", "t2", RelImplements, 0.8)
	// Weak edge, excluded by threshold
	addTestRef(t, s, "s1", "t2", RelRelated, 0.5)

	var combos []ReferenceCombination
	err := s.WithTx(func(tx *Tx) error {
		var err error
		combos, err = tx.StrongReferenceCombinations(0.7, 2, 5)
		return err
	})
	if err != nil {
		t.Fatalf("StrongReferenceCombinations failed: %v", err)
	}

	if len(combos) != 1 {
		t.Fatalf("Got %d combinations, want 1", len(combos))
	}
	if combos[0].Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", combos[0].Frequency)
	}
	if combos[0].SourceCategory != "golang" || combos[0].TargetCategory != "testing" {
		t.Errorf("Combination = %s->%s, want golang->testing",
			combos[0].SourceCategory, combos[0].TargetCategory)
	}
}

func TestEnhancementQueue(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	first := &EnhancementTask{
		TriggerType:     TriggerContextOptimization,
		SourceID:        "a",
		EnhancementType: "cross_reference_generation",
		Priority:        1,
	}
	if err := s.EnqueueEnhancement(first); err != nil {
		t.Fatalf("EnqueueEnhancement failed: %v", err)
	}
	if first.Status != TaskPending {
		t.Errorf("Default status = %s, want pending", first.Status)
	}

	done := &EnhancementTask{
		TriggerType:     TriggerDreamConsolidation,
		SourceID:        "b",
		EnhancementType: "memory_consolidation",
		Status:          TaskCompleted,
		Priority:        5,
	}
	if err := s.EnqueueEnhancement(done); err != nil {
		t.Fatalf("EnqueueEnhancement failed: %v", err)
	}

	pending, err := s.PendingEnhancements(10)
	if err != nil {
		t.Fatalf("PendingEnhancements failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Got %d pending tasks, want 1", len(pending))
	}
	if pending[0].SourceID != "a" {
		t.Errorf("Pending task source = %s, want a", pending[0].SourceID)
	}

	byTrigger, err := s.EnhancementsByTrigger(TriggerDreamConsolidation, 10)
	if err != nil {
		t.Fatalf("EnhancementsByTrigger failed: %v", err)
	}
	if len(byTrigger) != 1 || byTrigger[0].Status != TaskCompleted {
		t.Errorf("Expected one completed consolidation task, got %+v", byTrigger)
	}

	n, err := s.CountEnhancements(TaskPending)
	if err != nil {
		t.Fatalf("CountEnhancements failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Pending count = %d, want 1", n)
	}
}

func TestMetricsRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	m, err := s.LoadMetrics()
	if err != nil {
		t.Fatalf("LoadMetrics failed: %v", err)
	}
	if m.DreamCycles != 0 || m.RelationshipsEnhanced != 0 {
		t.Errorf("Fresh metrics not zero: %+v", m)
	}

	m.DreamCycles = 3
	m.CrossReferencesProcessed = 12
	m.RelationshipsEnhanced = 7
	if err := s.SaveMetrics(m); err != nil {
		t.Fatalf("SaveMetrics failed: %v", err)
	}

	got, err := s.LoadMetrics()
	if err != nil {
		t.Fatalf("LoadMetrics failed: %v", err)
	}
	if got.DreamCycles != 3 || got.CrossReferencesProcessed != 12 || got.RelationshipsEnhanced != 7 {
		t.Errorf("Reloaded metrics = %+v", got)
	}
	if got.LastUpdated.IsZero() {
		t.Error("LastUpdated not set on save")
	}
}

func TestWithTxRollback(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	sentinel := os.ErrInvalid
	err := s.WithTx(func(tx *Tx) error {
		if err := tx.InsertBit(&LearningBit{
			ID: "doomed", Content: "x", ContentType: ContentConcept, Category: "testing",
		}); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("WithTx returned %v, want sentinel error", err)
	}

	count, err := s.CountBits()
	if err != nil {
		t.Fatalf("CountBits failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d after rollback, want 0", count)
	}
}

func TestClear(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	addTestBit(t, s, "a", "testing", 0.8)
	addTestBit(t, s, "b", "testing", 0.8)
	addTestRef(t, s, "a", "b", RelRelated, 0.8)
	s.EnqueueEnhancement(&EnhancementTask{TriggerType: TriggerPatternInsight, EnhancementType: "x"})
	s.SaveMetrics(Metrics{DreamCycles: 5})

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for table, count := range stats {
		if count != 0 {
			t.Errorf("%s has %d rows after Clear, want 0", table, count)
		}
	}

	m, err := s.LoadMetrics()
	if err != nil {
		t.Fatalf("LoadMetrics after Clear failed: %v", err)
	}
	if m.DreamCycles != 0 {
		t.Errorf("DreamCycles = %d after Clear, want 0", m.DreamCycles)
	}
}
