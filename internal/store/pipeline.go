package store

import (
	"fmt"
	"time"
)

func enqueueEnhancement(q querier, task *EnhancementTask) error {
	if task.Status == "" {
		task.Status = TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	res, err := q.Exec(`
		INSERT INTO context_enhancement_pipeline (trigger_type, source_id, target_id, relationship_type, enhancement_type, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.TriggerType, task.SourceID, task.TargetID, task.RelationshipType, task.EnhancementType, task.Status, task.Priority, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue enhancement task: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		task.ID = id
	}
	return nil
}

func scanTasks(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}) ([]EnhancementTask, error) {
	defer rows.Close()
	var tasks []EnhancementTask
	for rows.Next() {
		var t EnhancementTask
		err := rows.Scan(&t.ID, &t.TriggerType, &t.SourceID, &t.TargetID,
			&t.RelationshipType, &t.EnhancementType, &t.Status, &t.Priority, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const taskColumns = `id, trigger_type, COALESCE(source_id, ''), COALESCE(target_id, ''),
	COALESCE(relationship_type, ''), COALESCE(enhancement_type, ''), status, priority, created_at`

// pendingEnhancements is the downstream consumer's poll: oldest pending tasks
// first. The consolidation engine itself never reads the queue back.
func pendingEnhancements(q querier, limit int) ([]EnhancementTask, error) {
	rows, err := q.Query(`
		SELECT `+taskColumns+`
		FROM context_enhancement_pipeline
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, TaskPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	return scanTasks(rows)
}

func enhancementsByTrigger(q querier, trigger TriggerType, limit int) ([]EnhancementTask, error) {
	rows, err := q.Query(`
		SELECT `+taskColumns+`
		FROM context_enhancement_pipeline
		WHERE trigger_type = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, trigger, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by trigger: %w", err)
	}
	return scanTasks(rows)
}

func countEnhancements(q querier, status TaskStatus) (int, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM context_enhancement_pipeline WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Store-level entry points

func (s *Store) EnqueueEnhancement(task *EnhancementTask) error {
	return enqueueEnhancement(s.db, task)
}
func (s *Store) PendingEnhancements(limit int) ([]EnhancementTask, error) {
	return pendingEnhancements(s.db, limit)
}
func (s *Store) EnhancementsByTrigger(trigger TriggerType, limit int) ([]EnhancementTask, error) {
	return enhancementsByTrigger(s.db, trigger, limit)
}
func (s *Store) CountEnhancements(status TaskStatus) (int, error) {
	return countEnhancements(s.db, status)
}

// Tx-level entry points used by consolidation phases

func (t *Tx) EnqueueEnhancement(task *EnhancementTask) error {
	return enqueueEnhancement(t.tx, task)
}
