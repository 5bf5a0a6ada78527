// SQLite-backed thinking history — the durable plug-in behind the
// thinkingStorage=sqlite configuration.
package thinking

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists reasoning artifacts in a local SQLite file. It applies
// the same per-agent and per-session bounds as MemoryStore.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlx.DB
}

// OpenSQLite opens or creates the store at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open thinking db: %w", err)
	}
	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate thinking db: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error { return s.conn.Close() }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS thinking (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		action TEXT NOT NULL,
		reasoning TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		raw_response TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_thinking_lookup ON thinking(session_id, agent_id, id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type thinkingRow struct {
	Action      string `db:"action"`
	Reasoning   string `db:"reasoning"`
	Prompt      string `db:"prompt"`
	RawResponse string `db:"raw_response"`
	TS          int64  `db:"ts"`
}

func (s *SQLiteStore) Store(sessionID, agentID string, p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		`INSERT INTO thinking (session_id, agent_id, action, reasoning, prompt, raw_response, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, agentID, p.Action, p.Reasoning, p.Prompt, p.RawResponse, p.Timestamp,
	)
	if err != nil {
		slog.Error("thinking insert failed", "error", err, "agent", agentID)
		return
	}

	// Trim the per-agent ring.
	_, err = s.conn.Exec(
		`DELETE FROM thinking WHERE session_id = ? AND agent_id = ? AND id NOT IN (
			SELECT id FROM thinking WHERE session_id = ? AND agent_id = ?
			ORDER BY id DESC LIMIT ?)`,
		sessionID, agentID, sessionID, agentID, MaxEntriesPerAgent,
	)
	if err != nil {
		slog.Error("thinking trim failed", "error", err, "agent", agentID)
	}

	s.evictSessionsLocked(sessionID)
}

// evictSessionsLocked drops the least recently written sessions beyond the
// session cap, never evicting the session that was just touched.
func (s *SQLiteStore) evictSessionsLocked(current string) {
	var stale []string
	err := s.conn.Select(&stale,
		`SELECT session_id FROM (
			SELECT session_id, MAX(ts) AS last FROM thinking GROUP BY session_id
		) ORDER BY last DESC LIMIT -1 OFFSET ?`,
		MaxSessions,
	)
	if err != nil {
		slog.Error("thinking session scan failed", "error", err)
		return
	}
	for _, id := range stale {
		if id == current {
			continue
		}
		if _, err := s.conn.Exec(`DELETE FROM thinking WHERE session_id = ?`, id); err != nil {
			slog.Error("thinking session evict failed", "error", err, "session", id)
		}
	}
}

func (s *SQLiteStore) History(sessionID, agentID string, limit int) []Process {
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []thinkingRow
	err := s.conn.Select(&rows,
		`SELECT action, reasoning, prompt, raw_response, ts FROM thinking
		 WHERE session_id = ? AND agent_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, agentID, limit,
	)
	if err != nil {
		slog.Error("thinking history query failed", "error", err, "agent", agentID)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	out := make([]Process, 0, len(rows))
	for _, r := range rows {
		out = append(out, Process{
			Action:      r.Action,
			Reasoning:   r.Reasoning,
			Prompt:      r.Prompt,
			RawResponse: r.RawResponse,
			Timestamp:   r.TS,
		})
	}
	return out
}

func (s *SQLiteStore) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Exec(`DELETE FROM thinking WHERE session_id = ?`, sessionID); err != nil {
		slog.Error("thinking session clear failed", "error", err, "session", sessionID)
	}
}

func (s *SQLiteStore) Count(sessionID, agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.conn.Get(&n,
		`SELECT COUNT(*) FROM thinking WHERE session_id = ? AND agent_id = ?`,
		sessionID, agentID,
	)
	if err != nil {
		slog.Error("thinking count query failed", "error", err, "agent", agentID)
		return 0
	}
	return n
}
