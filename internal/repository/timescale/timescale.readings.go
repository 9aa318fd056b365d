// FilePath: server/watchdog/internal/repository/timescale/timescale.readings.go
package timescale

import (
	"context"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
)

type ReadingRepo struct {
	TimeScaleBaseRepo
}

func NewReadingRepository(db database.DB) (*ReadingRepo, error) {
	repo := &ReadingRepo{TimeScaleBaseRepo: TimeScaleBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *ReadingRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			time TIMESTAMPTZ NOT NULL,
			device_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			battery DOUBLE PRECISION
		)`,
		`SELECT create_hypertable('readings', 'time', if_not_exists => TRUE)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_location_time ON readings (location_id, time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_time ON readings (device_id, time DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}
	return nil
}

const readingColumns = `time, device_id, location_id, temperature, humidity, battery`

// GetLocationReadingsSince returns readings with time strictly after since,
// oldest first.
func (r *ReadingRepo) GetLocationReadingsSince(ctx context.Context, locationID string, since time.Time) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE location_id = $1 AND time > $2
		ORDER BY time ASC`

	readings := []models.Reading{}
	if err := r.db.GetDB().SelectContext(ctx, &readings, query, locationID, since); err != nil {
		return nil, errors.NewDatabaseError("failed to get location readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) GetLocationReadings(ctx context.Context, locationID string, start, end time.Time) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE location_id = $1 AND time BETWEEN $2 AND $3
		ORDER BY time ASC`

	readings := []models.Reading{}
	if err := r.db.GetDB().SelectContext(ctx, &readings, query, locationID, start, end); err != nil {
		return nil, errors.NewDatabaseError("failed to get location readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) GetDeviceReadings(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE device_id = $1 AND time BETWEEN $2 AND $3
		ORDER BY time ASC`

	readings := []models.Reading{}
	if err := r.db.GetDB().SelectContext(ctx, &readings, query, deviceID, start, end); err != nil {
		return nil, errors.NewDatabaseError("failed to get device readings", err)
	}
	return readings, nil
}

// GetLatestReadings returns the newest reading per device. Devices that never
// reported are absent from the map.
func (r *ReadingRepo) GetLatestReadings(ctx context.Context, deviceIDs []string) (map[string]*models.Reading, error) {
	latest := make(map[string]*models.Reading, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return latest, nil
	}

	query := `SELECT ` + readingColumns + ` FROM (
			SELECT ` + readingColumns + `,
				ROW_NUMBER() OVER (PARTITION BY device_id ORDER BY time DESC) AS rn
			FROM readings
			WHERE device_id = ANY($1)
		) ranked
		WHERE rn = 1`

	readings := []models.Reading{}
	if err := r.db.GetDB().SelectContext(ctx, &readings, query, pq.Array(deviceIDs)); err != nil {
		return nil, errors.NewDatabaseError("failed to get latest readings", err)
	}
	for i := range readings {
		latest[readings[i].DeviceID] = &readings[i]
	}
	return latest, nil
}

// DeleteOldData removes readings older than before.
func (r *ReadingRepo) DeleteOldData(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM readings WHERE time < $1`, before)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete old readings", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[TimescaleDB] Deleted %d readings older than %v", rows, before)
	return rows, nil
}
