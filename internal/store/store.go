package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding the knowledge graph: learning bits,
// cross-references, the enhancement pipeline, and the dream system metrics.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the knowledge graph database
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "system", "knowledge.db")

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Tx is a scoped transaction against the store. Each consolidation phase
// opens its own Tx, reads fresh state, and commits independently. There is
// no atomicity across phases.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error. The error from fn is returned unchanged so callers can match
// on phase-specific failures.
func (s *Store) WithTx(fn func(*Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// migrate runs database migrations
func (s *Store) migrate() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Learning bits: short knowledge fragments with importance scores
	CREATE TABLE IF NOT EXISTS learning_bits (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		content_type TEXT NOT NULL,
		category TEXT NOT NULL,
		importance_score REAL DEFAULT 0.5,
		source TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_learning_bits_category ON learning_bits(category);
	CREATE INDEX IF NOT EXISTS idx_learning_bits_importance ON learning_bits(importance_score);
	CREATE INDEX IF NOT EXISTS idx_learning_bits_created ON learning_bits(created_at);

	-- Cross-references: typed weighted edges between learning bits
	CREATE TABLE IF NOT EXISTS cross_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_bit_id TEXT NOT NULL,
		target_bit_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		strength REAL DEFAULT 1.0,
		bidirectional BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_bit_id) REFERENCES learning_bits(id) ON DELETE CASCADE,
		FOREIGN KEY (target_bit_id) REFERENCES learning_bits(id) ON DELETE CASCADE,
		UNIQUE(source_bit_id, target_bit_id, relationship_type)
	);

	CREATE INDEX IF NOT EXISTS idx_cross_references_source ON cross_references(source_bit_id);
	CREATE INDEX IF NOT EXISTS idx_cross_references_target ON cross_references(target_bit_id);
	CREATE INDEX IF NOT EXISTS idx_cross_references_strength ON cross_references(strength);

	-- Enhancement pipeline: append-only work queue consumed downstream
	CREATE TABLE IF NOT EXISTS context_enhancement_pipeline (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trigger_type TEXT NOT NULL,
		source_id TEXT,
		target_id TEXT,
		relationship_type TEXT,
		enhancement_type TEXT,
		status TEXT DEFAULT 'pending',
		priority INTEGER DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_status ON context_enhancement_pipeline(status);
	CREATE INDEX IF NOT EXISTS idx_pipeline_trigger ON context_enhancement_pipeline(trigger_type);

	-- Dream system metrics: single authoritative counter record
	CREATE TABLE IF NOT EXISTS dream_system_metrics (
		id INTEGER PRIMARY KEY,
		dream_cycles INTEGER DEFAULT 0,
		cross_references_processed INTEGER DEFAULT 0,
		relationships_enhanced INTEGER DEFAULT 0,
		context_injections_generated INTEGER DEFAULT 0,
		knowledge_synthesis_events INTEGER DEFAULT 0,
		memory_consolidation_cycles INTEGER DEFAULT 0,
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO dream_system_metrics (id) VALUES (1);

	-- Record schema version
	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Run incremental migrations
	return s.runMigrations()
}

// runMigrations applies incremental schema changes
func (s *Store) runMigrations() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		version = 1 // Assume v1 if can't read
	}

	// Migration v2: Add content_hash to learning_bits for ingest deduplication
	if version < 2 {
		migrations := []string{
			"ALTER TABLE learning_bits ADD COLUMN content_hash TEXT DEFAULT ''",
			"CREATE INDEX IF NOT EXISTS idx_learning_bits_hash ON learning_bits(content_hash)",
		}
		for _, stmt := range migrations {
			// Ignore errors for columns that already exist
			s.db.Exec(stmt)
		}
		s.db.Exec("INSERT INTO schema_version (version) VALUES (2)")
	}

	// Migration v3: Composite index for the no-outgoing-reference scans used
	// by relationship enhancement and context optimization
	if version < 3 {
		log.Println("[store] Migrating to schema v3: idx_cross_references_source_type")
		s.db.Exec("CREATE INDEX IF NOT EXISTS idx_cross_references_source_type ON cross_references(source_bit_id, relationship_type)")
		s.db.Exec("INSERT INTO schema_version (version) VALUES (3)")
	}

	return nil
}

// Stats returns row counts for the main tables
func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)

	tables := []string{"learning_bits", "cross_references", "context_enhancement_pipeline"}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			return nil, err
		}
		stats[table] = count
	}

	return stats, nil
}

// Clear removes all data (for testing/reset). The metrics record is reset
// to zeros rather than deleted so engines can always reload it.
func (s *Store) Clear() error {
	tables := []string{"context_enhancement_pipeline", "cross_references", "learning_bits"}
	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err := s.db.Exec(`
		UPDATE dream_system_metrics SET
			dream_cycles = 0,
			cross_references_processed = 0,
			relationships_enhanced = 0,
			context_injections_generated = 0,
			knowledge_synthesis_events = 0,
			memory_consolidation_cycles = 0,
			last_updated = CURRENT_TIMESTAMP
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to reset metrics: %w", err)
	}
	return nil
}
