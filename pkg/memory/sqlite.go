package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/oba/pkg/message"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_session_id_id
    ON messages(session_id, id);
CREATE TABLE IF NOT EXISTS usage (
    session_id TEXT PRIMARY KEY,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    input_tokens_cached INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0.0,
    tool_costs REAL NOT NULL DEFAULT 0.0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite is the durable store: an embedded database in WAL mode that
// survives process restarts and concurrent readers. When the ephemeral clone
// is enabled, reads for a session already seen in this process are served
// from memory and the database is only hit on first load and on writes.
type SQLite struct {
	db     *sql.DB
	clone  *Ephemeral
	logger zerolog.Logger
}

// SQLiteOption customizes the store.
type SQLiteOption func(*SQLite)

// WithoutEphemeralClone disables the in-process read-through copy.
func WithoutEphemeralClone() SQLiteOption {
	return func(s *SQLite) { s.clone = nil }
}

// NewSQLite opens (creating if needed) the database at path. Pass ":memory:"
// for a throwaway database.
func NewSQLite(path string, logger zerolog.Logger, opts ...SQLiteOption) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, storeErr("open", "", fmt.Errorf("create data directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storeErr("open", "", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, storeErr("open", "", fmt.Errorf("enable WAL: %w", err))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, storeErr("open", "", fmt.Errorf("init schema: %w", err))
	}

	s := &SQLite{db: db, clone: NewEphemeral(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info().Str("path", path).Msg("Session store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns the session's messages in append order.
func (s *SQLite) Load(ctx context.Context, sessionID string) ([]message.Message, error) {
	if s.clone != nil {
		if msgs, _ := s.clone.Load(ctx, sessionID); len(msgs) > 0 {
			return msgs, nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, storeErr("load", sessionID, err)
	}
	defer rows.Close()

	var msgs []message.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, storeErr("load", sessionID, err)
		}
		msg, err := decodeMessage(payload)
		if err != nil {
			return nil, storeErr("load", sessionID, err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load", sessionID, err)
	}

	if s.clone != nil && len(msgs) > 0 {
		// First load of this session in this process: warm the clone with
		// the history and its usage so later reads stay in memory.
		usage, err := s.readUsage(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		_ = s.clone.Append(ctx, sessionID, msgs...)
		_ = s.clone.AddUsage(ctx, sessionID, usage)
	}

	return msgs, nil
}

// Append writes messages in one transaction so a crash never persists part
// of a batch.
func (s *SQLite) Append(ctx context.Context, sessionID string, msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("append", sessionID, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, payload) VALUES (?, ?);`)
	if err != nil {
		return storeErr("append", sessionID, err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		payload, err := encodeMessage(msg)
		if err != nil {
			return storeErr("append", sessionID, err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, payload); err != nil {
			return storeErr("append", sessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("append", sessionID, err)
	}

	if s.clone != nil {
		_ = s.clone.Append(ctx, sessionID, msgs...)
	}
	return nil
}

// Usage returns the session's accumulated usage.
func (s *SQLite) Usage(ctx context.Context, sessionID string) (message.Usage, error) {
	if s.clone != nil {
		if u, _ := s.clone.Usage(ctx, sessionID); !u.IsZero() {
			return u, nil
		}
	}
	return s.readUsage(ctx, sessionID)
}

func (s *SQLite) readUsage(ctx context.Context, sessionID string) (message.Usage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT input_tokens, input_tokens_cached, output_tokens, total_cost, tool_costs
		 FROM usage WHERE session_id = ?;`, sessionID)

	var u message.Usage
	err := row.Scan(&u.InputTokens, &u.InputTokensCached, &u.OutputTokens, &u.TotalCost, &u.ToolCosts)
	if err == sql.ErrNoRows {
		return message.Usage{}, nil
	}
	if err != nil {
		return message.Usage{}, storeErr("usage", sessionID, err)
	}
	return u, nil
}

// AddUsage folds a usage delta into the session's row.
func (s *SQLite) AddUsage(ctx context.Context, sessionID string, u message.Usage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage (session_id, input_tokens, input_tokens_cached, output_tokens, total_cost, tool_costs)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		     input_tokens = usage.input_tokens + excluded.input_tokens,
		     input_tokens_cached = usage.input_tokens_cached + excluded.input_tokens_cached,
		     output_tokens = usage.output_tokens + excluded.output_tokens,
		     total_cost = usage.total_cost + excluded.total_cost,
		     tool_costs = usage.tool_costs + excluded.tool_costs,
		     created_at = excluded.created_at;`,
		sessionID, u.InputTokens, u.InputTokensCached, u.OutputTokens, u.TotalCost, u.ToolCosts)
	if err != nil {
		return storeErr("add_usage", sessionID, err)
	}

	if s.clone != nil {
		_ = s.clone.AddUsage(ctx, sessionID, u)
	}
	return nil
}

// List returns summaries for every stored session.
func (s *SQLite) List(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at)
		 FROM messages GROUP BY session_id ORDER BY session_id;`)
	if err != nil {
		return nil, storeErr("list", "", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var summary SessionSummary
		var updatedAt string
		if err := rows.Scan(&summary.ID, &summary.Messages, &updatedAt); err != nil {
			return nil, storeErr("list", "", err)
		}
		// aggregate columns lose their declared type, so the driver hands
		// the timestamp back as text
		if ts, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
			summary.UpdatedAt = ts
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", "", err)
	}
	return summaries, nil
}
