package outcome

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps one row per task id. Put is an upsert; GetAndConsume is
// a single DELETE ... RETURNING, so the read-and-remove is atomic even with
// several gateway processes polling the same id.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return err
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run outcome migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, out Outcome) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcomes (task_id, user_request, status, result_json, error, finished_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
	user_request = excluded.user_request,
	status = excluded.status,
	result_json = excluded.result_json,
	error = excluded.error,
	finished_at = excluded.finished_at
`, out.TaskID, out.UserRequest, out.Status, nullIfEmpty(string(out.Result)), nullIfEmpty(out.Error), out.FinishedAt)
	return err
}

func (s *SQLiteStore) GetAndConsume(ctx context.Context, taskID string) (Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
DELETE FROM outcomes
WHERE task_id = ?
RETURNING task_id, user_request, status, result_json, error, finished_at
`, taskID)

	var out Outcome
	var status string
	var resultJSON sql.NullString
	var errMsg sql.NullString
	if err := row.Scan(&out.TaskID, &out.UserRequest, &status, &resultJSON, &errMsg, &out.FinishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, err
	}
	out.Status = Status(status)
	if resultJSON.Valid {
		out.Result = []byte(resultJSON.String)
	}
	out.Error = errMsg.String
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
