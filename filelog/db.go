package filelog

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a Log kept in an SQLite database. Changes are written as they are
// made so Save has nothing to do.
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the SQLite log in file
func NewDB(file string) (*DB, error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS file (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, stem TEXT NOT NULL, modified INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS file_stem ON file (stem)"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db: db,
	}, nil
}

// HasFileBeenModified implements Log
func (db *DB) HasFileBeenModified(file string) bool {
	var logged int64
	switch err := db.db.QueryRow("SELECT modified FROM file WHERE name = ?", file).Scan(&logged); err {
	case nil:
		current, err := modTime(file)
		if err != nil {
			return true
		}
		return logged < current
	default:
		return true
	}
}

// UpdateOrAddFile implements Log
func (db *DB) UpdateOrAddFile(file string) (bool, error) {
	t, err := modTime(file)
	if err != nil {
		return false, err
	}

	var id int64
	switch err := db.db.QueryRow("SELECT id FROM file WHERE name = ?", file).Scan(&id); err {
	case sql.ErrNoRows:
		if _, err := db.db.Exec("INSERT INTO file (name, stem, modified) VALUES (?, ?, ?)", file, stem(file), t); err != nil {
			return false, err
		}
		return true, nil
	case nil:
		if _, err := db.db.Exec("UPDATE file SET modified = ? WHERE id = ?", t, id); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, err
	}
}

// DeleteFile implements Log
func (db *DB) DeleteFile(file string, ignoreExtension bool) error {
	if !ignoreExtension {
		_, err := db.db.Exec("DELETE FROM file WHERE name = ?", file)
		return err
	}

	_, err := db.db.Exec("DELETE FROM file WHERE id = (SELECT id FROM file WHERE stem = ? ORDER BY id LIMIT 1)", stem(file))
	return err
}

// Save implements Log
func (db *DB) Save() error {
	return nil
}

// Close implements Log
func (db *DB) Close() error {
	return db.db.Close()
}

// Len returns the number of files in the log
func (db *DB) Len() (int, error) {
	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM file").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
