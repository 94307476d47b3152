package sqlite

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the sqlite database at path and creates the schema.
// WAL mode and a busy timeout let overlapping sweeps write to the ledger
// without surfacing SQLITE_BUSY.
func InitDB(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id             TEXT PRIMARY KEY,
		market         TEXT NOT NULL DEFAULT '',
		store_number   TEXT NOT NULL DEFAULT '',
		category       TEXT DEFAULT '',
		priority       TEXT DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		summary        TEXT DEFAULT '',
		customer_name  TEXT DEFAULT '',
		customer_email TEXT DEFAULT '',
		customer_phone TEXT DEFAULT '',
		escalated_at   DATETIME,
		sla_deadline   DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);

	CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL DEFAULT '',
		display_name TEXT DEFAULT '',
		role         TEXT DEFAULT '',
		manager_id   TEXT
	);

	CREATE TABLE IF NOT EXISTS executive_scopes (
		user_id            TEXT NOT NULL,
		market             TEXT NOT NULL,
		store_number       TEXT NOT NULL DEFAULT '',
		role               TEXT NOT NULL,
		notification_level TEXT NOT NULL DEFAULT 'all',
		PRIMARY KEY (user_id, market, store_number)
	);
	CREATE INDEX IF NOT EXISTS idx_scopes_market ON executive_scopes(market);

	CREATE TABLE IF NOT EXISTS notification_ledger (
		case_id TEXT NOT NULL,
		tier    TEXT NOT NULL,
		sent_at DATETIME NOT NULL,
		PRIMARY KEY (case_id, tier)
	);

	CREATE TABLE IF NOT EXISTS escalation_log (
		id         TEXT PRIMARY KEY,
		case_id    TEXT NOT NULL,
		from_state TEXT DEFAULT '',
		to_state   TEXT DEFAULT '',
		reason     TEXT DEFAULT '',
		logged_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_escalation_log_case ON escalation_log(case_id);

	CREATE TABLE IF NOT EXISTS channel_bindings (
		email     TEXT NOT NULL,
		channel   TEXT NOT NULL,
		handle    TEXT NOT NULL,
		cached_at DATETIME NOT NULL,
		PRIMARY KEY (email, channel)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Store implements the case, directory, ledger, audit and binding ports on
// one sqlite database.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}
