package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/seen/internal/domain"
)

//go:embed schema.sql
var schema string

// SQLite stores seen entries in a SQLite database
type SQLite struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new SQLite store with the given database path.
// Transactions take the write lock up front so that Insert's duplicate
// check and write cannot interleave with another writer.
func New(dbPath string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the number of stored entries
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen_entry").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

const entryColumns = `
	SELECT e.id, e.title, e.task, e.reason, e.added, e.local,
	       f.id, f.field, f.value, f.added
	FROM seen_entry e
	LEFT JOIN seen_field f ON f.seen_entry_id = e.id`

// Search returns entries matching the filter, ordered by id
func (s *SQLite) Search(ctx context.Context, filter domain.Filter) ([]domain.Entry, error) {
	var conds []string
	var args []any

	if filter.Local != nil {
		conds = append(conds, "e.local = ?")
		args = append(args, *filter.Local)
	}
	if filter.Value != "" {
		// instr is case sensitive, unlike LIKE
		conds = append(conds, `EXISTS (
			SELECT 1 FROM seen_field m
			WHERE m.seen_entry_id = e.id AND instr(m.value, ?) > 0)`)
		args = append(args, filter.Value)
	}

	query := entryColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.id, f.id"

	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return entries, nil
}

// Get retrieves an entry by ID with its fields
func (s *SQLite) Get(ctx context.Context, id int64) (*domain.Entry, error) {
	entries, err := s.queryEntries(ctx, entryColumns+" WHERE e.id = ? ORDER BY f.id", id)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.NotFoundError{ID: id}
	}
	return &entries[0], nil
}

// queryEntries runs a query over entryColumns and folds the joined field rows
// into their entries. Rows must be grouped by entry id.
func (s *SQLite) queryEntries(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			e          domain.Entry
			reason     sql.NullString
			fieldID    sql.NullInt64
			fieldName  sql.NullString
			fieldValue sql.NullString
			fieldAdded sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Task, &reason, &e.Added, &e.Local,
			&fieldID, &fieldName, &fieldValue, &fieldAdded); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if n := len(entries); n == 0 || entries[n-1].ID != e.ID {
			e.Reason = reason.String
			e.Fields = []domain.Field{}
			entries = append(entries, e)
		}
		if fieldID.Valid {
			last := &entries[len(entries)-1]
			last.Fields = append(last.Fields, domain.Field{
				ID:      fieldID.Int64,
				Field:   fieldName.String,
				Value:   fieldValue.String,
				Added:   fieldAdded.Time,
				EntryID: e.ID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// FindDuplicate returns the oldest field whose value is one of values
func (s *SQLite) FindDuplicate(ctx context.Context, values []string, local *bool) (*domain.Field, error) {
	f, err := findDuplicate(ctx, s.db, values, local)
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	return f, nil
}

func findDuplicate(ctx context.Context, q queryer, values []string, local *bool) (*domain.Field, error) {
	if len(values) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, 0, len(values)+1)
	for _, v := range values {
		args = append(args, v)
	}

	query := `
		SELECT f.id, f.field, f.value, f.added, f.seen_entry_id
		FROM seen_field f
		JOIN seen_entry e ON e.id = f.seen_entry_id
		WHERE f.value IN (` + placeholders + `)`
	if local != nil {
		query += " AND e.local = ?"
		args = append(args, *local)
	}
	query += " ORDER BY f.id LIMIT 1"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var f domain.Field
	if err := rows.Scan(&f.ID, &f.Field, &f.Value, &f.Added, &f.EntryID); err != nil {
		return nil, fmt.Errorf("scan field: %w", err)
	}
	return &f, nil
}

// Insert creates a new entry with its fields unless one of the values is
// already seen in the entry's locality scope
func (s *SQLite) Insert(ctx context.Context, in domain.NewEntry) (*domain.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	dup, err := findDuplicate(ctx, tx, in.Fields.Values(), &in.Local)
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	if dup != nil {
		return nil, domain.DuplicateEntryError{Value: dup.Value, Existing: *dup}
	}

	now := time.Now().UTC()
	var reason any
	if in.Reason != "" {
		reason = in.Reason
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO seen_entry (title, task, reason, added, local) VALUES (?, ?, ?, ?, ?)",
		in.Title, in.Task, reason, now, in.Local,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	entry := &domain.Entry{
		ID:     id,
		Title:  in.Title,
		Task:   in.Task,
		Reason: in.Reason,
		Added:  now,
		Local:  in.Local,
		Fields: make([]domain.Field, 0, len(in.Fields)),
	}

	for _, name := range in.Fields.Names() {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO seen_field (seen_entry_id, field, value, added) VALUES (?, ?, ?, ?)",
			id, name, in.Fields[name], now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert field %s: %w", name, err)
		}
		fieldID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert field %s: %w", name, err)
		}
		entry.Fields = append(entry.Fields, domain.Field{
			ID:      fieldID,
			Field:   name,
			Value:   in.Fields[name],
			Added:   now,
			EntryID: id,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return entry, nil
}

// Delete removes an entry and its fields
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM seen_field WHERE seen_entry_id = ?", id); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM seen_entry WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return domain.NotFoundError{ID: id}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
