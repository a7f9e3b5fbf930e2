package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// InsertRecord stores r at the given position. A reused id yields an error wrapping
// dilemma.ErrDuplicateID.
func InsertRecord(db DBExecutor, position int64, r dilemma.Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id must be non-empty")
	}
	if strings.TrimSpace(r.Dilemma) == "" {
		return fmt.Errorf("record %q: dilemma must be non-empty", r.ID)
	}
	_, err := db.Exec(
		`INSERT INTO dilemmas (id, position, dilemma, option, result, map, evaluation) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, position, r.Dilemma, r.Option, r.Result, r.Map, r.Evaluation,
	)
	if err != nil {
		if isUniqueConstraintErr(err) && recordExists(db, r.ID) {
			return fmt.Errorf("insert record %q: %w", r.ID, dilemma.ErrDuplicateID)
		}
		return fmt.Errorf("insert record %q: %w", r.ID, err)
	}
	return nil
}

func recordExists(db DBExecutor, id string) bool {
	var one int
	return db.QueryRow(`SELECT 1 FROM dilemmas WHERE id = ?`, id).Scan(&one) == nil
}

// NextPosition returns the position after the last stored record.
func NextPosition(db DBExecutor) (int64, error) {
	var pos sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(position) FROM dilemmas`).Scan(&pos); err != nil {
		return 0, err
	}
	if !pos.Valid {
		return 0, nil
	}
	return pos.Int64 + 1, nil
}

// LoadRecords returns every stored record in position order.
func LoadRecords(db DBExecutor) ([]dilemma.Record, error) {
	rows, err := db.Query(`SELECT id, dilemma, option, result, map, evaluation FROM dilemmas ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dilemma.Record
	for rows.Next() {
		var r dilemma.Record
		if err := rows.Scan(&r.ID, &r.Dilemma, &r.Option, &r.Result, &r.Map, &r.Evaluation); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountRecords returns the number of stored records.
func CountRecords(db DBExecutor) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM dilemmas`).Scan(&n)
	return n, err
}

// RecordImport logs that a file was imported and returns the import id.
func RecordImport(db DBExecutor, path, format string, count int) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("path must be non-empty")
	}
	if count < 0 {
		return 0, fmt.Errorf("record count must not be negative, got %d", count)
	}
	res, err := db.Exec(
		`INSERT INTO imports (path, format, record_count, imported_at) VALUES (?, ?, ?, ?)`,
		path, format, count, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}
	return res.LastInsertId()
}

// ListImports returns import provenance rows, oldest first.
func ListImports(db DBExecutor) ([]Import, error) {
	rows, err := db.Query(`SELECT id, path, format, record_count, imported_at FROM imports ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Import
	for rows.Next() {
		var im Import
		if err := rows.Scan(&im.ID, &im.Path, &im.Format, &im.RecordCount, &im.ImportedAt); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsDuplicateID reports whether err came from a reused record id.
func IsDuplicateID(err error) bool {
	return errors.Is(err, dilemma.ErrDuplicateID)
}
