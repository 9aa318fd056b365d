// FilePath: server/watchdog/internal/repository/postgres/postgres.device.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

type DeviceRepo struct {
	PostgresBaseRepo
}

func NewDeviceRepository(db database.DB) *DeviceRepo {
	return &DeviceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

const deviceColumns = `id, location_id, name, model, retired, exclude_from_inactivity,
	inactivity_minutes, battery_ok_level, created_at, updated_at`

func (r *DeviceRepo) Create(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (
			id, location_id, name, model, retired, exclude_from_inactivity,
			inactivity_minutes, battery_ok_level, created_at, updated_at
		) VALUES (
			:id, :location_id, :name, :model, :retired, :exclude_from_inactivity,
			:inactivity_minutes, :battery_ok_level, :created_at, :updated_at
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, device); err != nil {
		return wrapWriteError(err, "device")
	}
	return nil
}

func (r *DeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	device := &models.Device{}
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	if err := r.db.GetDB().GetContext(ctx, device, query, id); err != nil {
		return nil, wrapGetError(err, "device")
	}
	return device, nil
}

func (r *DeviceRepo) Update(ctx context.Context, device *models.Device) error {
	query := `
		UPDATE devices SET
			location_id = :location_id,
			name = :name,
			model = :model,
			retired = :retired,
			exclude_from_inactivity = :exclude_from_inactivity,
			inactivity_minutes = :inactivity_minutes,
			battery_ok_level = :battery_ok_level,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, device)
	if err != nil {
		return wrapWriteError(err, "device")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return notFound("device")
	}

	return nil
}

func (r *DeviceRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM devices WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete device", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return notFound("device")
	}
	return nil
}

func (r *DeviceRepo) List(ctx context.Context, filters models.DeviceFilters) ([]models.Device, error) {
	var conditions []string
	var args []interface{}
	if filters.LocationID != "" {
		args = append(args, filters.LocationID)
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if !filters.IncludeRetired {
		conditions = append(conditions, "retired = FALSE")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	devices := []models.Device{}
	if err := r.db.GetDB().SelectContext(ctx, &devices, query, args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list devices", err)
	}
	return devices, nil
}
