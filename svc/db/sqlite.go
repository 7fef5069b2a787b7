package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/Hemasri-01/pastebin/pkg/domain"
)

var ErrCircuitOpen = errors.New("database circuit breaker open")

const (
	circuitClosed      = 0
	circuitOpen        = 1
	circuitHalfOpen    = 2
	maxFailures        = 5
	cooldownSeconds    = 30
	minResponseTime    = 50 * time.Millisecond
	responseTimeJitter = 20 * time.Millisecond
)

const (
	defaultMaxOpenConns = 100
	defaultMaxIdleConns = 10
	defaultQueryTimeout = 5 * time.Second
)

// SQLite is the durable paste store. All instants cross this boundary as
// caller-supplied arguments; the store itself never reads the wall clock
// for visibility decisions.
type SQLite struct {
	db            *sql.DB
	failures      int32
	circuitState  int32
	circuitOpened int64
	queryTimeout  time.Duration
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func NewSQLite(path string) (*SQLite, error) {
	return NewSQLiteWithConfig(path, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewSQLiteWithConfig(path string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &SQLite{
		db:           db,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}

func (s *SQLite) checkCircuit() error {
	state := atomic.LoadInt32(&s.circuitState)
	switch state {
	case circuitClosed:
		return nil
	case circuitOpen:
		opened := atomic.LoadInt64(&s.circuitOpened)
		if time.Now().Unix()-opened >= cooldownSeconds {
			if atomic.CompareAndSwapInt32(&s.circuitState, circuitOpen, circuitHalfOpen) {
				return nil
			}
		}
		return ErrCircuitOpen
	case circuitHalfOpen:
		return nil
	default:
		return nil
	}
}

func (s *SQLite) recordError(err error) {
	if err == nil {
		atomic.StoreInt32(&s.failures, 0)
		atomic.StoreInt32(&s.circuitState, circuitClosed)
		return
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return
	}
	failures := atomic.AddInt32(&s.failures, 1)
	if atomic.LoadInt32(&s.circuitState) == circuitHalfOpen {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
		atomic.StoreInt32(&s.failures, 0)
		return
	}
	if failures >= maxFailures && atomic.LoadInt32(&s.circuitState) == circuitClosed {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
	}
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	_, err = s.db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	_, err = s.db.Exec("PRAGMA synchronous=FULL")
	if err != nil {
		return errors.Wrap(err, "set synchronous mode")
	}
	query := `
	CREATE TABLE IF NOT EXISTS pastes (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		remaining_views INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON pastes(expires_at);
	`
	_, err = s.db.Exec(query)
	return err
}

// normalizeResponseTime pads read/write latency with jitter so that
// missing, expired, and exhausted pastes stay indistinguishable through
// timing as well as through the response body.
func normalizeResponseTime(start time.Time) {
	elapsed := time.Since(start)
	var jitterNanos int64
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		jitterNanos = int64(responseTimeJitter)
	} else {
		jitterNanos = int64(binary.BigEndian.Uint64(b[:]) % uint64(responseTimeJitter))
	}
	target := minResponseTime + time.Duration(jitterNanos)
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
}

func millis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func fromCount(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func (s *SQLite) Create(ctx context.Context, p *domain.Paste) error {
	start := time.Now()
	defer normalizeResponseTime(start)
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var views sql.NullInt64
	if p.RemainingViews != nil {
		views = sql.NullInt64{Int64: *p.RemainingViews, Valid: true}
	}
	q := `
	INSERT INTO pastes (id, content, created_at, expires_at, remaining_views)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(queryCtx, q,
		p.ID, p.Content, p.CreatedAt.UnixMilli(), millis(p.ExpiresAt), views,
	)
	s.recordError(err)
	return errors.Wrap(err, "db create")
}

// Get returns the raw record without applying visibility rules; callers
// decide availability against their own resolved instant.
func (s *SQLite) Get(ctx context.Context, id string) (*domain.Paste, error) {
	start := time.Now()
	defer normalizeResponseTime(start)
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	SELECT id, content, created_at, expires_at, remaining_views
	FROM pastes WHERE id = ?
	`
	var (
		p         domain.Paste
		createdMs int64
		expiresMs sql.NullInt64
		views     sql.NullInt64
	)
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(
		&p.ID, &p.Content, &createdMs, &expiresMs, &views,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get")
	}
	p.CreatedAt = time.UnixMilli(createdMs).UTC()
	p.ExpiresAt = fromMillis(expiresMs)
	p.RemainingViews = fromCount(views)
	return &p, nil
}

// ConsumeView is the atomic read-and-decrement. The expiry check, view
// check, and decrement execute as one UPDATE, so concurrent consumers of
// the same id are serialized by SQLite's single-writer lock and a view
// can never be double-spent. NULL remaining_views (unlimited) pass the
// guard and stay NULL through the decrement.
func (s *SQLite) ConsumeView(ctx context.Context, id string, now time.Time) (*domain.View, error) {
	start := time.Now()
	defer normalizeResponseTime(start)
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	UPDATE pastes
	SET remaining_views = remaining_views - 1
	WHERE id = ?
	  AND (expires_at IS NULL OR expires_at > ?)
	  AND (remaining_views IS NULL OR remaining_views > 0)
	RETURNING content, remaining_views, expires_at
	`
	var (
		v         domain.View
		views     sql.NullInt64
		expiresMs sql.NullInt64
	)
	err := s.db.QueryRowContext(queryCtx, q, id, now.UnixMilli()).Scan(
		&v.Content, &views, &expiresMs,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db consume")
	}
	v.RemainingViews = fromCount(views)
	v.ExpiresAt = fromMillis(expiresMs)
	return &v, nil
}

func (s *SQLite) Exists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	defer normalizeResponseTime(start)
	if err := s.checkCircuit(); err != nil {
		return false, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var exists int
	q := `SELECT 1 FROM pastes WHERE id = ? LIMIT 1`
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	s.recordError(err)
	if err != nil {
		return false, errors.Wrap(err, "exists check failed")
	}
	return exists == 1, nil
}

// CleanupExpired removes rows that are logically deleted: past their
// expiry or out of views. Correctness never depends on this running;
// every read path enforces the same rules.
func (s *SQLite) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	totalDeleted := 0
	maxIterations := 10000
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		result, err := s.db.ExecContext(queryCtx, `
			DELETE FROM pastes
			WHERE id IN (
				SELECT id FROM pastes
				WHERE expires_at <= ? OR remaining_views = 0
				LIMIT 100
			)
		`, now.UnixMilli())
		cancel()
		s.recordError(err)
		if err != nil {
			return totalDeleted, errors.Wrap(err, "cleanup batch failed")
		}
		deleted, _ := result.RowsAffected()
		totalDeleted += int(deleted)
		if deleted == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	if totalDeleted == maxIterations*100 {
		return totalDeleted, errors.New("cleanup hit iteration limit, more records may exist")
	}
	return totalDeleted, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
