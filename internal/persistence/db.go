// Package persistence provides the SQLite action ledger and the archive of
// evicted sessions. Live sessions are never restored from it.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexwatt/internal/engine"
)

// ErrNoArchive is returned when no archive exists for a session.
var ErrNoArchive = errors.New("no archive for session")

// DB wraps a SQLite connection for the ledger.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		conn.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.dec.Close()
	db.enc.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		tile_id INTEGER NOT NULL,
		building TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		price REAL NOT NULL,
		impact REAL NOT NULL,
		energy_after REAL NOT NULL,
		environment_after REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS archives (
		session_id TEXT PRIMARY KEY,
		ticks INTEGER NOT NULL,
		energy REAL NOT NULL,
		environment REAL NOT NULL,
		closed_at INTEGER NOT NULL,
		snapshot_zst BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Action is one ledger row.
type Action struct {
	ID          int64   `db:"id" json:"id"`
	SessionID   string  `db:"session_id" json:"session_id"`
	Kind        string  `db:"kind" json:"kind"`
	TileID      int     `db:"tile_id" json:"tile_id"`
	Building    string  `db:"building" json:"building,omitempty"`
	Level       int     `db:"level" json:"level,omitempty"`
	Price       float64 `db:"price" json:"price"`
	Impact      float64 `db:"impact" json:"impact"`
	Energy      float64 `db:"energy_after" json:"energy_after"`
	Environment float64 `db:"environment_after" json:"environment_after"`
	CreatedAt   int64   `db:"created_at" json:"created_at"` // Unix milliseconds
}

// RecordAction appends a successful action to the ledger.
func (db *DB) RecordAction(sessionID string, r engine.Receipt, at time.Time) error {
	_, err := db.conn.NamedExec(`INSERT INTO actions
		(session_id, kind, tile_id, building, level, price, impact, energy_after, environment_after, created_at)
		VALUES (:session_id, :kind, :tile_id, :building, :level, :price, :impact, :energy_after, :environment_after, :created_at)`,
		Action{
			SessionID:   sessionID,
			Kind:        string(r.Action),
			TileID:      r.TileID,
			Building:    r.Building,
			Level:       r.Level,
			Price:       r.Price,
			Impact:      r.Impact,
			Energy:      r.Energy,
			Environment: r.Environment,
			CreatedAt:   at.UnixMilli(),
		})
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// RecentActions returns up to limit actions for a session, newest first.
func (db *DB) RecentActions(sessionID string, limit int) ([]Action, error) {
	actions := []Action{}
	err := db.conn.Select(&actions,
		`SELECT id, session_id, kind, tile_id, building, level, price, impact,
			energy_after, environment_after, created_at
		FROM actions WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	return actions, err
}

// ActionCounts returns how many actions of each kind a session recorded.
func (db *DB) ActionCounts(sessionID string) (map[string]int, error) {
	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT kind, COUNT(*) AS n FROM actions WHERE session_id = ? GROUP BY kind",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}

// ArchiveSession stores a compressed final snapshot of an evicted session.
func (db *DB) ArchiveSession(sessionID string, snap engine.Snapshot, at time.Time) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	blob := db.enc.EncodeAll(raw, nil)

	_, err = db.conn.Exec(`INSERT OR REPLACE INTO archives
		(session_id, ticks, energy, environment, closed_at, snapshot_zst)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, snap.Ticks, snap.Energy, snap.EnvironmentBar, at.UnixMilli(), blob,
	)
	if err != nil {
		return fmt.Errorf("insert archive %s: %w", sessionID, err)
	}
	slog.Debug("session archived", "session", sessionID, "raw_bytes", len(raw), "zst_bytes", len(blob))
	return nil
}

// LoadArchive returns the archived snapshot of a session.
func (db *DB) LoadArchive(sessionID string) (engine.Snapshot, error) {
	var blob []byte
	err := db.conn.Get(&blob, "SELECT snapshot_zst FROM archives WHERE session_id = ?", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Snapshot{}, fmt.Errorf("%w: %s", ErrNoArchive, sessionID)
		}
		return engine.Snapshot{}, err
	}

	raw, err := db.dec.DecodeAll(blob, nil)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("decompress archive %s: %w", sessionID, err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode archive %s: %w", sessionID, err)
	}
	return snap, nil
}

// SaveMeta stores a key-value pair in ledger metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO ledger_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM ledger_meta WHERE key = ?", key)
	return value, err
}
