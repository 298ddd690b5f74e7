package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSampleSQL = `INSERT INTO supply_samples (
        bucket_ts,
        token,
        observed_supply,
        threshold,
        encoded,
        status,
        error
    ) VALUES (
        $1,$2,$3::numeric,$4::numeric,$5,$6,$7
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        token           = EXCLUDED.token,
        observed_supply = EXCLUDED.observed_supply,
        threshold       = EXCLUDED.threshold,
        encoded         = EXCLUDED.encoded,
        status          = EXCLUDED.status,
        error           = EXCLUDED.error;`

	sampleColumns = `id,
        bucket_ts,
        token,
        observed_supply::text,
        threshold::text,
        encoded,
        status,
        error,
        created_at`

	listSamplesBetweenSQL = `SELECT ` + sampleColumns + `
    FROM supply_samples
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT ` + sampleColumns + `
    FROM supply_samples
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM supply_samples;`

	alertColumns = `id, sample_ts, token, old_supply::text, new_supply::text, threshold::text, payload, channels, created_at`

	insertAlertSQL = `INSERT INTO supply_alerts (
        sample_ts,
        token,
        old_supply,
        new_supply,
        threshold,
        payload,
        channels
    ) VALUES (
        $1,$2,$3::numeric,$4::numeric,$5::numeric,$6,$7
    )
    ON CONFLICT (sample_ts) DO UPDATE
    SET token      = EXCLUDED.token,
        old_supply = EXCLUDED.old_supply,
        new_supply = EXCLUDED.new_supply,
        threshold  = EXCLUDED.threshold,
        payload    = EXCLUDED.payload,
        channels   = EXCLUDED.channels
    RETURNING ` + alertColumns + `;`

	listRecentAlertsSQL = `SELECT ` + alertColumns + `
    FROM supply_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM supply_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for supply sample persistence.
type SampleStore interface {
	UpsertSample(ctx context.Context, sample SupplySample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]SupplySample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]SupplySample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to supply samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// A failed unlock is released with the connection.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSample persists or updates a supply sample.
func (s *Store) UpsertSample(ctx context.Context, sample SupplySample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertSampleSQL,
		sample.Bucket,
		sample.Token,
		numericArg(sample.ObservedSupply),
		numericArg(sample.Threshold),
		sample.Encoded,
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert supply sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, oldest first.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]SupplySample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]SupplySample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SampleTS,
		alert.Token,
		numericArg(alert.OldSupply),
		numericArg(alert.NewSupply),
		numericArg(alert.Threshold),
		alert.Payload,
		channels,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]SupplySample, error) {
	samples := make([]SupplySample, 0, capacity)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanSample(row pgx.Row) (SupplySample, error) {
	var (
		sample       SupplySample
		supplyStr    sql.NullString
		thresholdStr sql.NullString
		errMsg       sql.NullString
	)

	if err := row.Scan(
		&sample.ID,
		&sample.Bucket,
		&sample.Token,
		&supplyStr,
		&thresholdStr,
		&sample.Encoded,
		&sample.Status,
		&errMsg,
		&sample.CreatedAt,
	); err != nil {
		return SupplySample{}, err
	}

	var err error
	if sample.ObservedSupply, err = parseNumeric(supplyStr); err != nil {
		return SupplySample{}, fmt.Errorf("parse observed supply: %w", err)
	}
	if sample.Threshold, err = parseNumeric(thresholdStr); err != nil {
		return SupplySample{}, fmt.Errorf("parse threshold: %w", err)
	}
	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}
	return sample, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec                          AlertRecord
		oldStr, newStr, thresholdStr sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.Token,
		&oldStr,
		&newStr,
		&thresholdStr,
		&rec.Payload,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.OldSupply, err = parseNumeric(oldStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse old supply: %w", err)
	}
	if rec.NewSupply, err = parseNumeric(newStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse new supply: %w", err)
	}
	if rec.Threshold, err = parseNumeric(thresholdStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold: %w", err)
	}
	return rec, nil
}

func numericArg(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func parseNumeric(v sql.NullString) (*big.Int, error) {
	if !v.Valid {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(v.String, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", v.String)
	}
	return value, nil
}
