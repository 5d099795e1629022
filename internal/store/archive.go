package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cbergstrom/laddr/pkg/models"
)

// Archive is an optional SQLite-backed audit log behind the file store.
// The bounded per-agent history forgets old executions; the archive keeps
// every execution and every tier-progression entry for long-horizon
// auditing. All archive failures are reported to the store's logger and
// never affect run outcomes.
type Archive struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// OpenArchive opens (and migrates) the archive database at path, creating
// parent directories as needed. WAL mode is enabled for concurrent reads.
func OpenArchive(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	a := &Archive{conn: conn, path: path}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the archive database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.Close()
}

// Path returns the archive database file path.
func (a *Archive) Path() string {
	return a.path
}

func (a *Archive) migrate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.conn.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			input_summary TEXT,
			error TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			score REAL,
			cost REAL NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME,
			ended_at DATETIME,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_executions_agent ON executions(agent_id);

		CREATE TABLE IF NOT EXISTS progression (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			tier TEXT NOT NULL,
			success INTEGER NOT NULL,
			reason TEXT,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_progression_agent ON progression(agent_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate archive schema: %w", err)
	}
	return nil
}

// RecordExecution upserts one execution into the archive, so an entry
// archived at completion and again when trimmed stays a single row.
func (a *Archive) RecordExecution(agentID string, entry ExecutionHistoryEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var endedAt any
	if entry.EndedAt != nil {
		endedAt = entry.EndedAt.UTC()
	}
	var score any
	if entry.Score != nil {
		score = *entry.Score
	}

	_, err := a.conn.Exec(`
		INSERT INTO executions (id, agent_id, status, input_summary, error, success, score, cost, duration_ms, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			success = excluded.success,
			score = excluded.score,
			cost = excluded.cost,
			duration_ms = excluded.duration_ms,
			ended_at = excluded.ended_at
	`, entry.ID, agentID, string(entry.Status), entry.InputSummary, entry.Error,
		boolToInt(entry.Success), score, entry.Cost, entry.DurationMS,
		entry.StartedAt.UTC(), endedAt)
	if err != nil {
		return fmt.Errorf("archive execution %s: %w", entry.ID, err)
	}
	return nil
}

// RecordProgression appends tier-progression entries for one agent.
func (a *Archive) RecordProgression(agentID string, entries []models.TierProgressionEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin progression insert: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.Exec(
			`INSERT INTO progression (agent_id, stage, tier, success, reason) VALUES (?, ?, ?, ?, ?)`,
			agentID, e.Stage, string(e.Tier), boolToInt(e.Success), e.Reason,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive progression for stage %s: %w", e.Stage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progression insert: %w", err)
	}
	return nil
}

// CountExecutions returns how many executions the archive holds for an
// agent.
func (a *Archive) CountExecutions(agentID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int
	row := a.conn.QueryRow(`SELECT COUNT(*) FROM executions WHERE agent_id = ?`, agentID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count archived executions: %w", err)
	}
	return count, nil
}

// ProgressionSince returns progression entries for an agent recorded at or
// after the given time, oldest first.
func (a *Archive) ProgressionSince(agentID string, since time.Time) ([]models.TierProgressionEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.conn.Query(
		`SELECT stage, tier, success, reason FROM progression
		 WHERE agent_id = ? AND recorded_at >= ? ORDER BY seq`,
		agentID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query progression: %w", err)
	}
	defer rows.Close()

	var entries []models.TierProgressionEntry
	for rows.Next() {
		var e models.TierProgressionEntry
		var success int
		var tier string
		if err := rows.Scan(&e.Stage, &tier, &success, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan progression row: %w", err)
		}
		e.Tier = models.Tier(tier)
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
