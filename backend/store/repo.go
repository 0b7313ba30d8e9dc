package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AccessEvent is one served request.
type AccessEvent struct {
	ID         uuid.UUID     `json:"id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Status     int           `json:"status"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"duration"`
	RemoteAddr string        `json:"remote_addr"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SaveAccessEvent inserts ev.
func SaveAccessEvent(ctx context.Context, pool *pgxpool.Pool, ev AccessEvent) error {
	_, err := pool.Exec(ctx, `
	INSERT INTO access_events (id, method, path, status, bytes, duration_us, remote_addr, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.Method, ev.Path, ev.Status, ev.Bytes, ev.Duration.Microseconds(), ev.RemoteAddr, ev.CreatedAt)
	return errors.Wrap(err, "insert access event")
}

// GetRecentAccessEvents returns the newest events first.
func GetRecentAccessEvents(ctx context.Context, pool *pgxpool.Pool, limit int) ([]AccessEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := pool.Query(ctx, `
	SELECT id, method, path, status, bytes, duration_us, remote_addr, created_at
	FROM access_events
	ORDER BY created_at DESC
	LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query access events")
	}
	defer rows.Close()

	var out []AccessEvent
	for rows.Next() {
		var ev AccessEvent
		var us int64
		if err := rows.Scan(&ev.ID, &ev.Method, &ev.Path, &ev.Status, &ev.Bytes, &us, &ev.RemoteAddr, &ev.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan access event")
		}
		ev.Duration = time.Duration(us) * time.Microsecond
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Recorder persists access events to Postgres.
type Recorder struct {
	pool    *pgxpool.Pool
	log     *zap.Logger
	timeout time.Duration
}

func NewRecorder(pool *pgxpool.Pool, log *zap.Logger) *Recorder {
	return &Recorder{pool: pool, log: log, timeout: 2 * time.Second}
}

// Record saves ev. Failures are logged, never returned to the request path.
func (r *Recorder) Record(ev AccessEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := SaveAccessEvent(ctx, r.pool, ev); err != nil {
		r.log.Warn("access event not stored", zap.Stringer("id", ev.ID), zap.Error(err))
	}
}
