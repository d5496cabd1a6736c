package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/monzosync/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// tableRe guards the table name, which is configuration data interpolated
// into SQL.
var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const columns = "id, date, timestamp, description, amount, currency, category, notes, decline_reason, decline, tags, source, lunch_money_id"

// Store is the local transaction database: the long-lived record of which
// transaction ids have been seen, with what field values, and which Lunch
// Money id each was assigned on upload.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("setting up migrate driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating iofs source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("setting up migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SelectAll returns every persisted transaction in the table.
func (s *Store) SelectAll(table string) ([]models.StoredTransaction, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf("SELECT %s FROM %s", columns, table))
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []models.StoredTransaction
	for rows.Next() {
		row, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (models.StoredTransaction, error) {
	var (
		row          models.StoredTransaction
		amount       string
		lunchMoneyID sql.NullInt64
	)
	err := rows.Scan(
		&row.ID, &row.Date, &row.Timestamp, &row.Description,
		&amount, &row.Currency, &row.Category, &row.Notes,
		&row.DeclineReason, &row.Decline, &row.Tags, &row.Source,
		&lunchMoneyID,
	)
	if err != nil {
		return models.StoredTransaction{}, fmt.Errorf("scanning transaction: %w", err)
	}

	row.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return models.StoredTransaction{}, fmt.Errorf("parsing stored amount %q: %w", amount, err)
	}
	if lunchMoneyID.Valid {
		row.LunchMoneyID = &lunchMoneyID.Int64
	}
	return row, nil
}

// Insert writes the given rows. Amounts are stored as their decimal string
// representation so no precision is lost on the round trip.
func (s *Store) Insert(table string, rows []models.StoredTransaction) error {
	if err := checkTable(table); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", table, columns))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var lunchMoneyID any
		if row.LunchMoneyID != nil {
			lunchMoneyID = *row.LunchMoneyID
		}
		_, err := stmt.Exec(
			row.ID, row.Date, row.Timestamp, row.Description,
			row.Amount.String(), row.Currency, row.Category, row.Notes,
			row.DeclineReason, row.Decline, row.Tags, row.Source,
			lunchMoneyID,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting transaction %q: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the rows with the given ids.
func (s *Store) Delete(table string, ids []string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders), args...)
	if err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}
	return nil
}

// LunchMoneyID returns the sink-assigned id recorded for a transaction, or
// nil when none has been recorded yet. An unknown transaction id also
// returns nil.
func (s *Store) LunchMoneyID(table, externalID string) (*int64, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var id sql.NullInt64
	err := s.db.QueryRow(fmt.Sprintf("SELECT lunch_money_id FROM %s WHERE id = ?", table), externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying lunch money id for %q: %w", externalID, err)
	}
	if !id.Valid {
		return nil, nil
	}
	return &id.Int64, nil
}

// SetLunchMoneyID records the sink-assigned id for a transaction after a
// successful upload.
func (s *Store) SetLunchMoneyID(table, externalID string, lunchMoneyID int64) error {
	if err := checkTable(table); err != nil {
		return err
	}

	res, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET lunch_money_id = ? WHERE id = ?", table), lunchMoneyID, externalID)
	if err != nil {
		return fmt.Errorf("recording lunch money id for %q: %w", externalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no stored transaction with id %q", externalID)
	}
	return nil
}

func checkTable(table string) error {
	if !tableRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}
