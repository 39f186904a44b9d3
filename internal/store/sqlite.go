package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"
)

// SQLiteStore persists client state in a single table, partitioned by scope
// (the backend origin) so two backends never see each other's credentials.
type SQLiteStore struct {
	db    *sql.DB
	scope string
}

func NewSQLiteStore(dataSourceName string, scope string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	store := &SQLiteStore{db: db, scope: scope}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS client_state (
        scope TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (scope, key)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM client_state WHERE scope = ? AND key = ?", s.scope, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(err, "failed to read %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetMany(values map[string]string) error {
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO client_state (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
            ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare state upsert")
		}
		defer stmt.Close()

		now := time.Now()
		for k, v := range values {
			if _, err := stmt.Exec(s.scope, k, v, now); err != nil {
				return errors.Wrapf(err, "failed to write %s", k)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(keys ...string) error {
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM client_state WHERE scope = ? AND key = ?")
		if err != nil {
			return errors.Wrap(err, "failed to prepare state delete")
		}
		defer stmt.Close()

		for _, k := range keys {
			if _, err := stmt.Exec(s.scope, k); err != nil {
				return errors.Wrapf(err, "failed to delete %s", k)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
