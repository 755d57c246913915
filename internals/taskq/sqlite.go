package taskq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteConfig struct {
	Path         string
	DB           *sql.DB
	QueueName    string
	RetryDelay   func(attempts int) time.Duration
	RetryMax     int
	PollInterval time.Duration
}

// SQLiteBackend keeps the queue in a single sqlite table. Pending rows are
// claimed with an UPDATE ... RETURNING so concurrent workers never see the
// same delivery. A signal channel wakes the local Dequeue loop early; the
// poll interval covers tasks enqueued by other processes.
type SQLiteBackend struct {
	mu     sync.Mutex
	db     *sql.DB
	signal chan struct{}
	cfg    SQLiteConfig
	stmts  *queueStatements
}

func NewSQLite(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.DB == nil && cfg.Path == "" {
		return nil, errors.New("sqlite backend requires a db or path")
	}

	db := cfg.DB
	if db == nil {
		opened, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := opened.Ping(); err != nil {
			return nil, err
		}
		db = opened
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "task_queue"
	}
	if err := validateQueueName(cfg.QueueName); err != nil {
		return nil, err
	}

	backend := &SQLiteBackend{
		db:     db,
		signal: make(chan struct{}, 1),
		cfg:    cfg,
	}

	if err := backend.init(); err != nil {
		return nil, err
	}
	stmts, err := prepareQueueStatements(backend.db, backend.cfg.QueueName)
	if err != nil {
		return nil, err
	}
	backend.stmts = stmts

	return backend, nil
}

func (b *SQLiteBackend) init() error {
	if _, err := b.db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return err
	}
	if _, err := b.db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		return err
	}
	_, err := b.db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	payload BLOB,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	available_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_%s_dequeue ON %s(status, available_at, created_at ASC);
`, b.cfg.QueueName, b.cfg.QueueName, b.cfg.QueueName))
	return err
}

func (b *SQLiteBackend) Enqueue(ctx context.Context, id string, payload []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if id == "" {
		return errors.New("task id is required")
	}

	now := time.Now().UTC().UnixNano()
	if err := b.stmts.insert(ctx, id, payload, now); err != nil {
		return err
	}

	b.signalTask()
	return nil
}

func (b *SQLiteBackend) Dequeue(ctx context.Context) (*Message, error) {
	timer := time.NewTimer(b.cfg.PollInterval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		msg, err := b.tryDequeue(ctx)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.signal:
		case <-timer.C:
		}
	}
}

func (b *SQLiteBackend) tryDequeue(ctx context.Context) (*Message, error) {
	now := time.Now().UTC().UnixNano()
	return b.stmts.dequeue(ctx, now)
}

func (b *SQLiteBackend) Ack(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := time.Now().UTC().UnixNano()
	rows, err := b.stmts.ack(ctx, now, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return nil
}

func (b *SQLiteBackend) Nack(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	attempts, err := b.stmts.retrySelect(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownTask, id)
		}
		return err
	}

	attempts++
	now := time.Now().UTC().UnixNano()
	if b.cfg.RetryMax >= 0 && attempts > b.cfg.RetryMax {
		if err := b.stmts.retryFail(ctx, tx, now, id); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		return ErrRetriesExceeded
	}

	availableAt := now
	if b.cfg.RetryDelay != nil {
		if delay := b.cfg.RetryDelay(attempts); delay > 0 {
			availableAt = time.Now().UTC().Add(delay).UnixNano()
		}
	}

	if err := b.stmts.retryPending(ctx, tx, attempts, availableAt, now, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	b.signalTask()
	return nil
}

func (b *SQLiteBackend) Close() error {
	if b.stmts != nil {
		b.stmts.Close()
	}
	if b.cfg.DB != nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) signalTask() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

type queueStatements struct {
	stmtInsert       *sql.Stmt
	stmtDequeue      *sql.Stmt
	stmtAck          *sql.Stmt
	stmtRetrySelect  *sql.Stmt
	stmtRetryFail    *sql.Stmt
	stmtRetryPending *sql.Stmt
}

func prepareQueueStatements(db *sql.DB, queueName string) (*queueStatements, error) {
	insertSQL := fmt.Sprintf(`
INSERT INTO %s (id, payload, status, attempts, available_at, created_at, updated_at, completed_at)
VALUES (?, ?, 'pending', 0, ?, ?, ?, NULL)
`, queueName)
	dequeueSQL := fmt.Sprintf(`
WITH next AS (
 SELECT id
 FROM %s
 WHERE status = 'pending' AND available_at <= ?
 ORDER BY created_at ASC
 LIMIT 1
)
UPDATE %s
SET status = 'in_flight', updated_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, payload, attempts
`, queueName, queueName)
	ackSQL := fmt.Sprintf(`
UPDATE %s
SET status = 'completed', updated_at = ?, completed_at = ?
WHERE id = ? AND status = 'in_flight'
`, queueName)
	retrySelectSQL := fmt.Sprintf(`
SELECT attempts
FROM %s
WHERE id = ? AND status = 'in_flight'
`, queueName)
	retryFailSQL := fmt.Sprintf(`
UPDATE %s
SET status = 'failed', updated_at = ?
WHERE id = ?
`, queueName)
	retryPendingSQL := fmt.Sprintf(`
UPDATE %s
SET status = 'pending', attempts = ?, available_at = ?, updated_at = ?
WHERE id = ?
`, queueName)

	var err error
	stmts := &queueStatements{}
	stmts.stmtInsert, err = db.Prepare(insertSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}
	stmts.stmtDequeue, err = db.Prepare(dequeueSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}
	stmts.stmtAck, err = db.Prepare(ackSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}
	stmts.stmtRetrySelect, err = db.Prepare(retrySelectSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}
	stmts.stmtRetryFail, err = db.Prepare(retryFailSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}
	stmts.stmtRetryPending, err = db.Prepare(retryPendingSQL)
	if err != nil {
		stmts.Close()
		return nil, err
	}

	return stmts, nil
}

func (s *queueStatements) Close() {
	if s == nil {
		return
	}
	for _, stmt := range []*sql.Stmt{s.stmtInsert, s.stmtDequeue, s.stmtAck, s.stmtRetrySelect, s.stmtRetryFail, s.stmtRetryPending} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (s *queueStatements) insert(ctx context.Context, id string, payload []byte, now int64) error {
	_, err := s.stmtInsert.ExecContext(ctx, id, payload, now, now, now)
	return err
}

func (s *queueStatements) dequeue(ctx context.Context, now int64) (*Message, error) {
	row := s.stmtDequeue.QueryRowContext(ctx, now, now)
	var msg Message
	if err := row.Scan(&msg.ID, &msg.Payload, &msg.Attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (s *queueStatements) ack(ctx context.Context, now int64, id string) (int64, error) {
	res, err := s.stmtAck.ExecContext(ctx, now, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *queueStatements) retrySelect(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	row := tx.StmtContext(ctx, s.stmtRetrySelect).QueryRowContext(ctx, id)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *queueStatements) retryFail(ctx context.Context, tx *sql.Tx, now int64, id string) error {
	_, err := tx.StmtContext(ctx, s.stmtRetryFail).ExecContext(ctx, now, id)
	return err
}

func (s *queueStatements) retryPending(ctx context.Context, tx *sql.Tx, attempts int, availableAt int64, now int64, id string) error {
	_, err := tx.StmtContext(ctx, s.stmtRetryPending).ExecContext(ctx, attempts, availableAt, now, id)
	return err
}

var queueNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateQueueName(name string) error {
	if name == "" {
		return errors.New("queue name is required")
	}
	if !queueNamePattern.MatchString(name) {
		return fmt.Errorf("invalid queue name: %s", name)
	}
	return nil
}
