package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/seantiz/cellbook/internal/model"

	_ "modernc.org/sqlite"
)

const createCellsTable = `
CREATE TABLE IF NOT EXISTS cells (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    code      TEXT,
    output    TEXT,
    variables TEXT,
    faulted   INTEGER NOT NULL DEFAULT 0,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// addFaultedColumn upgrades logs created before the faulted flag existed.
const addFaultedColumn = `ALTER TABLE cells ADD COLUMN faulted INTEGER NOT NULL DEFAULT 0`

const cellColumns = `id, code, output, variables, faulted, timestamp`

// ErrNotFound is returned when a cell is not found.
var ErrNotFound = errors.New("cell not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// appendMu serialises Append so ids stay strictly increasing with no gaps.
	appendMu sync.Mutex
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and turns the
	// pool into a queue for writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createCellsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cells table: %w", err)
	}

	if err := migrateFaulted(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts a new cell. The timestamp is assigned here, not by the caller.
func (s *SQLiteStore) Append(ctx context.Context, code, output string, vars model.Variables, faulted bool) (int64, error) {
	if vars == nil {
		vars = model.Variables{}
	}
	encoded, err := sonic.MarshalString(vars)
	if err != nil {
		return 0, fmt.Errorf("%w: encode variables: %w", ErrStorage, err)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin append tx: %w", ErrStorage, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO cells (code, output, variables, faulted, timestamp) VALUES (?, ?, ?, ?, ?)`,
		code, output, encoded, faulted, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert cell: %w", ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read cell id: %w", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit cell: %w", ErrStorage, err)
	}
	return id, nil
}

// ListAll returns every cell ordered by ascending id. Each call re-reads the log.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.Cell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cellColumns+` FROM cells ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list cells: %w", ErrStorage, err)
	}
	defer rows.Close()

	var cells []model.Cell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate cells: %w", ErrStorage, err)
	}

	return cells, nil
}

// GetCell retrieves a cell by id.
func (s *SQLiteStore) GetCell(ctx context.Context, id int64) (*model.Cell, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cellColumns+` FROM cells WHERE id = ?`, id,
	)
	c, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LastVariables decodes the variables of the highest-id cell.
func (s *SQLiteStore) LastVariables(ctx context.Context) (model.Variables, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT variables FROM cells ORDER BY id DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Variables{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get last variables: %w", ErrStorage, err)
	}
	return decodeVariables(raw)
}

// Stats returns aggregate figures over the whole log.
func (s *SQLiteStore) Stats(ctx context.Context) (*CellStats, error) {
	stats := &CellStats{}

	var lastID sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(id) FROM cells`,
	).Scan(&stats.Total, &lastID); err != nil {
		return nil, fmt.Errorf("%w: count cells: %w", ErrStorage, err)
	}
	if !lastID.Valid {
		return stats, nil
	}
	stats.LastID = lastID.Int64

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cells WHERE faulted != 0`,
	).Scan(&stats.Faulted); err != nil {
		return nil, fmt.Errorf("%w: count faulted cells: %w", ErrStorage, err)
	}

	var last time.Time
	if err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM cells WHERE id = ?`, stats.LastID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("%w: get last timestamp: %w", ErrStorage, err)
	}
	stats.LastRunAt = &last

	return stats, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCell(r rowScanner) (*model.Cell, error) {
	var (
		c      model.Cell
		code   sql.NullString
		output sql.NullString
		raw    sql.NullString
		ts     sql.NullTime
	)
	if err := r.Scan(&c.ID, &code, &output, &raw, &c.Faulted, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan cell: %w", ErrStorage, err)
	}
	c.Code = code.String
	c.Output = output.String
	if ts.Valid {
		c.Timestamp = ts.Time
	}

	vars, err := decodeVariables(raw)
	if err != nil {
		return nil, err
	}
	c.Variables = vars
	return &c, nil
}

// decodeVariables turns a stored JSON column into a snapshot. NULL, empty and
// "null" values all decode to an empty, non-nil snapshot.
func decodeVariables(raw sql.NullString) (model.Variables, error) {
	vars := model.Variables{}
	if !raw.Valid || raw.String == "" {
		return vars, nil
	}
	if err := sonic.UnmarshalString(raw.String, &vars); err != nil {
		return nil, fmt.Errorf("%w: decode variables: %w", ErrStorage, err)
	}
	if vars == nil {
		vars = model.Variables{}
	}
	return vars, nil
}

// migrateFaulted adds the faulted column when an older log lacks it.
func migrateFaulted(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info('cells')`)
	if err != nil {
		return fmt.Errorf("inspect cells table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect cells table: %w", err)
		}
		if name == "faulted" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect cells table: %w", err)
	}
	rows.Close()

	if _, err := db.Exec(addFaultedColumn); err != nil {
		return fmt.Errorf("add faulted column: %w", err)
	}
	return nil
}
