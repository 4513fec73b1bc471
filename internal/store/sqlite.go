package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// SQLiteStore implements Store on a single SQLite file using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and configures WAL mode.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fail("open", eris.Wrapf(err, "create directory %s", dir))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fail("open", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fail("open", eris.Wrapf(err, "exec %s", pragma))
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceAll discards the previous snapshot and stores c in its place.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, c *dataset.Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("replace", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(SnapshotTable)); err != nil {
		return fail("replace", eris.Wrap(err, "drop snapshot"))
	}
	cols := c.Columns()
	if len(cols) == 0 {
		return fail("replace", tx.Commit())
	}
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for j, col := range cols {
		defs[j] = quote(col.Name) + " " + sqlType(col.Kind)
		names[j] = col.Name
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quote(SnapshotTable)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return fail("replace", eris.Wrap(err, "create snapshot"))
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(SnapshotTable, names))
	if err != nil {
		return fail("replace", eris.Wrap(err, "prepare insert"))
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i := 0; i < c.Len(); i++ {
		for j, col := range cols {
			args[j] = cellValue(col.Kind, c.Text(i, col.Name), c.Number(i, col.Name))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fail("replace", eris.Wrapf(err, "insert row %d", i+1))
		}
	}
	return fail("replace", tx.Commit())
}

// AppendLog appends every row of v stamped with ts and runID. Columns the log
// has not seen before are added; existing rows are never touched.
func (s *SQLiteStore) AppendLog(ctx context.Context, v *dataset.View, ts time.Time, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("append log", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// the stamp columns are owned by the log
	var cols []string
	for _, name := range v.Columns() {
		if !strings.EqualFold(name, ColCreatedAt) && !strings.EqualFold(name, ColRunID) {
			cols = append(cols, name)
		}
	}

	existing, err := tableColumns(ctx, tx, LogTable)
	if err != nil {
		return fail("append log", err)
	}
	if len(existing) == 0 {
		defs := make([]string, 0, len(cols)+2)
		for _, name := range cols {
			k, _ := v.Kind(name)
			defs = append(defs, quote(name)+" "+sqlType(k))
		}
		defs = append(defs, quote(ColCreatedAt)+" TEXT", quote(ColRunID)+" TEXT")
		if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quote(LogTable)+" ("+strings.Join(defs, ", ")+")"); err != nil {
			return fail("append log", eris.Wrap(err, "create log"))
		}
	}
	// SQLite matches identifiers case-insensitively; reuse the logged spelling.
	have := make(map[string]string, len(existing))
	for _, name := range existing {
		have[strings.ToLower(name)] = name
	}
	target := make([]string, len(cols))
	for j, name := range cols {
		if logged, ok := have[strings.ToLower(name)]; ok {
			target[j] = logged
			continue
		}
		target[j] = name
		if len(existing) == 0 {
			continue
		}
		k, _ := v.Kind(name)
		if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quote(LogTable)+" ADD COLUMN "+quote(name)+" "+sqlType(k)); err != nil {
			return fail("append log", eris.Wrapf(err, "add column %s", name))
		}
		have[strings.ToLower(name)] = name
	}

	names := append(append([]string(nil), target...), ColCreatedAt, ColRunID)
	stmt, err := tx.PrepareContext(ctx, insertSQL(LogTable, names))
	if err != nil {
		return fail("append log", eris.Wrap(err, "prepare insert"))
	}
	defer stmt.Close()

	stamp := ts.Format(TimestampLayout)
	args := make([]any, len(names))
	for i := 0; i < v.Len(); i++ {
		for j, name := range cols {
			k, _ := v.Kind(name)
			args[j] = cellValue(k, v.Text(i, name), v.Number(i, name))
		}
		args[len(cols)] = stamp
		args[len(cols)+1] = runID
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fail("append log", eris.Wrapf(err, "insert row %d", i+1))
		}
	}
	return fail("append log", tx.Commit())
}

// Snapshot returns the stored dataset, re-validated with no extra required
// columns.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*dataset.Collection, error) {
	cols, err := tableColumns(ctx, s.db, SnapshotTable)
	if err != nil {
		return nil, fail("snapshot", err)
	}
	if len(cols) == 0 {
		return nil, ErrNoSnapshot
	}
	rows, err := readAll(ctx, s.db, SnapshotTable, cols)
	if err != nil {
		return nil, fail("snapshot", err)
	}
	c, err := dataset.Validate(&dataset.RawTable{Name: SnapshotTable, Columns: cols, Rows: rows}, nil)
	if err != nil {
		return nil, fail("snapshot", err)
	}
	return c, nil
}

// LogCount returns the number of log rows; zero when the log does not exist.
func (s *SQLiteStore) LogCount(ctx context.Context) (int, error) {
	cols, err := tableColumns(ctx, s.db, LogTable)
	if err != nil || len(cols) == 0 {
		return 0, fail("log count", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(LogTable)).Scan(&n); err != nil {
		return 0, fail("log count", err)
	}
	return n, nil
}

// ReadLog returns every log row in insertion order.
func (s *SQLiteStore) ReadLog(ctx context.Context) (*LogRows, error) {
	cols, err := tableColumns(ctx, s.db, LogTable)
	if err != nil {
		return nil, fail("read log", err)
	}
	if len(cols) == 0 {
		return &LogRows{}, nil
	}
	rows, err := readAll(ctx, s.db, LogTable, cols)
	if err != nil {
		return nil, fail("read log", err)
	}
	return &LogRows{Columns: cols, Rows: rows}, nil
}

// Runs lists appended runs, oldest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	cols, err := tableColumns(ctx, s.db, LogTable)
	if err != nil || len(cols) == 0 {
		return nil, fail("runs", err)
	}
	q := "SELECT " + quote(ColRunID) + ", " + quote(ColCreatedAt) + ", COUNT(*) FROM " + quote(LogTable) +
		" GROUP BY " + quote(ColRunID) + ", " + quote(ColCreatedAt) + " ORDER BY MIN(rowid)"
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fail("runs", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var id, at sql.NullString
		var r Run
		if err := rows.Scan(&id, &at, &r.Records); err != nil {
			return nil, fail("runs", err)
		}
		r.ID, r.CreatedAt = id.String, at.String
		out = append(out, r)
	}
	return out, fail("runs", rows.Err())
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// tableColumns returns the column names of table in declaration order, or
// nil when the table does not exist.
func tableColumns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, eris.Wrapf(err, "table info %s", table)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "scan column name")
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func readAll(ctx context.Context, q querier, table string, cols []string) ([][]string, error) {
	quoted := make([]string, len(cols))
	for j, c := range cols {
		quoted[j] = quote(c)
	}
	rows, err := q.QueryContext(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+quote(table)+" ORDER BY rowid")
	if err != nil {
		return nil, eris.Wrapf(err, "select %s", table)
	}
	defer rows.Close()

	var out [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for j := range vals {
		ptrs[j] = &vals[j]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "scan %s", table)
		}
		row := make([]string, len(cols))
		for j, v := range vals {
			row[j] = text(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(TimestampLayout)
	}
	return ""
}

func sqlType(k dataset.Kind) string {
	if k == dataset.KindNumeric {
		return "REAL"
	}
	return "TEXT"
}

// cellValue maps a cell to its column storage class; missing numbers are NULL.
func cellValue(k dataset.Kind, s string, x float64) any {
	if k == dataset.KindNumeric {
		if math.IsNaN(x) {
			return nil
		}
		return x
	}
	return s
}

func insertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for j, c := range cols {
		quoted[j] = quote(c)
		marks[j] = "?"
	}
	return "INSERT INTO " + quote(table) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
