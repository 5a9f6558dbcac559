// Package ledger persists a per-request accounting record to SQLite. Writes
// are best effort and never block or fail the request path.
package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed request record.
type Entry struct {
	RequestID    string
	Client       string
	Scenario     string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Outcome      string
	Duration     time.Duration
}

// Outcomes recorded per request.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// Ledger writes entries to a SQLite database. Safe to call on nil: a nil
// ledger drops every record, used when no path is configured.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	client TEXT NOT NULL,
	scenario TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_requests_request_id ON requests(request_id);
CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at);
`

// Open creates or opens the ledger database at path. An empty path returns a
// nil ledger.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Record inserts one entry. Failures are logged, not returned.
func (l *Ledger) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO requests (request_id, client, scenario, provider, model, input_tokens, output_tokens, outcome, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Client, e.Scenario, e.Provider, e.Model,
		e.InputTokens, e.OutputTokens, e.Outcome, e.Duration.Milliseconds(),
	)
	if err != nil {
		l.logger.Warn("ledger write failed", "request_id", e.RequestID, "error", err)
	}
}

// Close releases the database handle. Safe on nil.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}
