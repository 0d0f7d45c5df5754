package store

import (
	"database/sql"
	"fmt"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx so each operation can be
// exposed on the Store for one-off callers and on Tx for phase transactions.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const bitColumns = `b.id, b.content, b.content_type, b.category, b.importance_score,
	COALESCE(b.source, ''), COALESCE(b.content_hash, ''), b.created_at, b.updated_at`

func scanBit(row interface{ Scan(...any) error }) (*LearningBit, error) {
	var b LearningBit
	err := row.Scan(&b.ID, &b.Content, &b.ContentType, &b.Category, &b.ImportanceScore,
		&b.Source, &b.ContentHash, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func insertBit(q querier, b *LearningBit) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	b.ImportanceScore = clampScore(b.ImportanceScore)

	_, err := q.Exec(`
		INSERT INTO learning_bits (id, content, content_type, category, importance_score, source, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Content, b.ContentType, b.Category, b.ImportanceScore, b.Source, b.ContentHash, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert learning bit: %w", err)
	}
	return nil
}

func getBit(q querier, id string) (*LearningBit, error) {
	row := q.QueryRow(`SELECT `+bitColumns+` FROM learning_bits b WHERE b.id = ?`, id)
	b, err := scanBit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning bit: %w", err)
	}
	return b, nil
}

func findBitByHash(q querier, hash string) (*LearningBit, error) {
	row := q.QueryRow(`SELECT `+bitColumns+` FROM learning_bits b WHERE b.content_hash = ? LIMIT 1`, hash)
	b, err := scanBit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find learning bit by hash: %w", err)
	}
	return b, nil
}

func countBits(q querier) (int, error) {
	var count int
	if err := q.QueryRow(`SELECT COUNT(*) FROM learning_bits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count learning bits: %w", err)
	}
	return count, nil
}

func updateBitImportance(q querier, id string, score float64) error {
	_, err := q.Exec(`
		UPDATE learning_bits SET importance_score = ?, updated_at = ? WHERE id = ?
	`, clampScore(score), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update importance: %w", err)
	}
	return nil
}

// recentBitsWithInboundCounts returns bits created after since, each annotated
// with its inbound cross-reference count, ordered by importance then inbound
// count, both descending.
func recentBitsWithInboundCounts(q querier, since time.Time, limit int) ([]LearningBit, error) {
	rows, err := q.Query(`
		SELECT `+bitColumns+`, COUNT(r.id) AS inbound
		FROM learning_bits b
		LEFT JOIN cross_references r ON r.target_bit_id = b.id
		WHERE b.created_at > ?
		GROUP BY b.id
		ORDER BY b.importance_score DESC, inbound DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bits: %w", err)
	}
	defer rows.Close()

	var bits []LearningBit
	for rows.Next() {
		var b LearningBit
		err := rows.Scan(&b.ID, &b.Content, &b.ContentType, &b.Category, &b.ImportanceScore,
			&b.Source, &b.ContentHash, &b.CreatedAt, &b.UpdatedAt, &b.InboundRefs)
		if err != nil {
			return nil, err
		}
		bits = append(bits, b)
	}
	return bits, rows.Err()
}

// bitsWithoutOutgoing returns bits above minImportance that have no outgoing
// cross-reference, most important first.
func bitsWithoutOutgoing(q querier, minImportance float64, limit int) ([]LearningBit, error) {
	rows, err := q.Query(`
		SELECT `+bitColumns+`
		FROM learning_bits b
		WHERE b.importance_score > ?
		AND NOT EXISTS (SELECT 1 FROM cross_references r WHERE r.source_bit_id = b.id)
		ORDER BY b.importance_score DESC
		LIMIT ?
	`, minImportance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlinked bits: %w", err)
	}
	defer rows.Close()
	return collectBits(rows)
}

// candidateBitsInCategory returns link candidates for a bit: same category,
// above minImportance, excluding the bit itself.
func candidateBitsInCategory(q querier, category, excludeID string, minImportance float64, limit int) ([]LearningBit, error) {
	rows, err := q.Query(`
		SELECT `+bitColumns+`
		FROM learning_bits b
		WHERE b.category = ? AND b.id != ? AND b.importance_score > ?
		ORDER BY b.importance_score DESC
		LIMIT ?
	`, category, excludeID, minImportance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate bits: %w", err)
	}
	defer rows.Close()
	return collectBits(rows)
}

func collectBits(rows *sql.Rows) ([]LearningBit, error) {
	var bits []LearningBit
	for rows.Next() {
		b, err := scanBit(rows)
		if err != nil {
			return nil, err
		}
		bits = append(bits, *b)
	}
	return bits, rows.Err()
}

// Store-level entry points

func (s *Store) InsertBit(b *LearningBit) error         { return insertBit(s.db, b) }
func (s *Store) GetBit(id string) (*LearningBit, error) { return getBit(s.db, id) }
func (s *Store) FindBitByHash(hash string) (*LearningBit, error) {
	return findBitByHash(s.db, hash)
}
func (s *Store) CountBits() (int, error) { return countBits(s.db) }
func (s *Store) UpdateBitImportance(id string, score float64) error {
	return updateBitImportance(s.db, id, score)
}

// Tx-level entry points used by consolidation phases

func (t *Tx) InsertBit(b *LearningBit) error { return insertBit(t.tx, b) }
func (t *Tx) GetBit(id string) (*LearningBit, error) { return getBit(t.tx, id) }
func (t *Tx) CountBits() (int, error)                { return countBits(t.tx) }
func (t *Tx) UpdateBitImportance(id string, score float64) error {
	return updateBitImportance(t.tx, id, score)
}
func (t *Tx) RecentBitsWithInboundCounts(since time.Time, limit int) ([]LearningBit, error) {
	return recentBitsWithInboundCounts(t.tx, since, limit)
}
func (t *Tx) BitsWithoutOutgoing(minImportance float64, limit int) ([]LearningBit, error) {
	return bitsWithoutOutgoing(t.tx, minImportance, limit)
}
func (t *Tx) CandidateBitsInCategory(category, excludeID string, minImportance float64, limit int) ([]LearningBit, error) {
	return candidateBitsInCategory(t.tx, category, excludeID, minImportance, limit)
}
