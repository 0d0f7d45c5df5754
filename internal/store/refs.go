package store

import (
	"fmt"
	"time"
)

// insertCrossReference inserts a typed edge. The (source, target, type) triple
// is unique; a colliding insert is a silent no-op and the return value reports
// whether a row was actually written.
func insertCrossReference(q querier, ref *CrossReference) (bool, error) {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	res, err := q.Exec(`
		INSERT OR IGNORE INTO cross_references (source_bit_id, target_bit_id, relationship_type, strength, bidirectional, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ref.SourceBitID, ref.TargetBitID, ref.RelationshipType, ref.Strength, ref.Bidirectional, ref.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert cross-reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		if id, err := res.LastInsertId(); err == nil {
			ref.ID = id
		}
	}
	return n > 0, nil
}

func countCrossReferences(q querier) (int, error) {
	var count int
	if err := q.QueryRow(`SELECT COUNT(*) FROM cross_references`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cross-references: %w", err)
	}
	return count, nil
}

// referencePatterns groups every edge by relationship type and the
// content_type/category of both endpoints, with per-group frequency and
// average strength. Most frequent first, strongest breaking ties.
func referencePatterns(q querier, limit int) ([]ReferencePattern, error) {
	rows, err := q.Query(`
		SELECT r.relationship_type, sb.content_type, sb.category, tb.content_type, tb.category,
			COUNT(*) AS freq, AVG(r.strength) AS avg_strength
		FROM cross_references r
		JOIN learning_bits sb ON sb.id = r.source_bit_id
		JOIN learning_bits tb ON tb.id = r.target_bit_id
		GROUP BY r.relationship_type, sb.content_type, sb.category, tb.content_type, tb.category
		ORDER BY freq DESC, avg_strength DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference patterns: %w", err)
	}
	defer rows.Close()

	var patterns []ReferencePattern
	for rows.Next() {
		var p ReferencePattern
		err := rows.Scan(&p.RelationshipType, &p.SourceContentType, &p.SourceCategory,
			&p.TargetContentType, &p.TargetCategory, &p.Frequency, &p.AvgStrength)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// strongReferenceCombinations groups edges above minStrength by the endpoint
// content_type/category pairs only, keeping groups seen at least minFrequency
// times. Used by knowledge synthesis; never mutates the edge set.
func strongReferenceCombinations(q querier, minStrength float64, minFrequency, limit int) ([]ReferenceCombination, error) {
	rows, err := q.Query(`
		SELECT sb.content_type, sb.category, tb.content_type, tb.category, COUNT(*) AS freq
		FROM cross_references r
		JOIN learning_bits sb ON sb.id = r.source_bit_id
		JOIN learning_bits tb ON tb.id = r.target_bit_id
		WHERE r.strength > ?
		GROUP BY sb.content_type, sb.category, tb.content_type, tb.category
		HAVING freq >= ?
		ORDER BY freq DESC
		LIMIT ?
	`, minStrength, minFrequency, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference combinations: %w", err)
	}
	defer rows.Close()

	var combos []ReferenceCombination
	for rows.Next() {
		var c ReferenceCombination
		err := rows.Scan(&c.SourceContentType, &c.SourceCategory,
			&c.TargetContentType, &c.TargetCategory, &c.Frequency)
		if err != nil {
			return nil, err
		}
		combos = append(combos, c)
	}
	return combos, rows.Err()
}

// Store-level entry points

func (s *Store) InsertCrossReference(ref *CrossReference) (bool, error) {
	return insertCrossReference(s.db, ref)
}
func (s *Store) CountCrossReferences() (int, error) { return countCrossReferences(s.db) }

// Tx-level entry points used by consolidation phases

func (t *Tx) InsertCrossReference(ref *CrossReference) (bool, error) {
	return insertCrossReference(t.tx, ref)
}
func (t *Tx) CountCrossReferences() (int, error) { return countCrossReferences(t.tx) }
func (t *Tx) ReferencePatterns(limit int) ([]ReferencePattern, error) {
	return referencePatterns(t.tx, limit)
}
func (t *Tx) StrongReferenceCombinations(minStrength float64, minFrequency, limit int) ([]ReferenceCombination, error) {
	return strongReferenceCombinations(t.tx, minStrength, minFrequency, limit)
}
