package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"crowdalpha/internal/types"
)

// SQLiteStore keeps one row per fingerprint, so an add touches only its own row.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "cache/thesis_cache.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS thesis_cache (
		fingerprint TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`)
	return err
}

func (s *SQLiteStore) Load() (map[string]json.RawMessage, error) {
	rows, err := s.db.Query(`SELECT fingerprint, result FROM thesis_cache`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	raw := make(map[string]json.RawMessage)
	for rows.Next() {
		var fp, result string
		if err := rows.Scan(&fp, &result); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		raw[fp] = json.RawMessage(result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}

// Save inserts the pending rows in one transaction. Rows already present are kept.
func (s *SQLiteStore) Save(entries map[string]types.ThesisResult, pending []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO thesis_cache (fingerprint, result)
		VALUES (?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, fp := range pending {
		result, ok := entries[fp]
		if !ok {
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(fp, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Reset() error {
	_, err := s.db.Exec(`DELETE FROM thesis_cache`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
