// Package db stores cleaned training listings and encoder fit runs in
// SQLite for the fit_encoder tool.
package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nyhousing/pipeline"
)

var database *sql.DB

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS listings (
        id INTEGER PRIMARY KEY,
        brokertitle VARCHAR(200),
        type VARCHAR(50),
        beds INTEGER,
        bath REAL,
        propertysqft REAL,
        sublocality VARCHAR(50),
        price REAL,
        fit_run_id INTEGER
    );
    CREATE TABLE IF NOT EXISTS fit_runs (
        id INTEGER PRIMARY KEY,
        created_at DATETIME,
        rows_total INTEGER,
        rows_kept INTEGER,
        model_timestamp VARCHAR(20),
        UNIQUE(model_timestamp)
    );
    `
	_, err = database.Exec(query)
	return err
}

// Close closes the database.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// RecordFitRun logs one encoder fit and returns its id.
func RecordFitRun(modelTimestamp string, rowsTotal, rowsKept int) (int64, error) {
	if database == nil {
		return 0, errors.New("database not initialized")
	}
	_, err := database.Exec(
		`INSERT INTO fit_runs (created_at, rows_total, rows_kept, model_timestamp)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(model_timestamp) DO UPDATE SET
             created_at=excluded.created_at,
             rows_total=excluded.rows_total,
             rows_kept=excluded.rows_kept`,
		time.Now(), rowsTotal, rowsKept, modelTimestamp,
	)
	if err != nil {
		return 0, err
	}

	// LastInsertId is not reliable on the conflict path; the unique
	// timestamp identifies the row either way.
	var id int64
	err = database.QueryRow(
		`SELECT id FROM fit_runs WHERE model_timestamp = ?`, modelTimestamp,
	).Scan(&id)
	return id, err
}

// SaveListings inserts the cleaned listings a fit run was computed from.
func SaveListings(fitRunID int64, listings []pipeline.Listing) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	tx, err := database.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO listings (brokertitle, type, beds, bath, propertysqft, sublocality, price, fit_run_id)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		if _, err := stmt.Exec(l.BrokerTitle, l.PropertyType, l.Beds, l.Bath, l.SquareFeet, l.SubLocality, l.Price, fitRunID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CountListings returns how many listings are stored for a fit run.
func CountListings(fitRunID int64) (int, error) {
	if database == nil {
		return 0, errors.New("database not initialized")
	}
	var count int
	err := database.QueryRow(`SELECT COUNT(*) FROM listings WHERE fit_run_id = ?`, fitRunID).Scan(&count)
	return count, err
}
