package storage

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// OpenPostgres connects the result archive and makes sure its table exists.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureResultsTable(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
