// FilePath: server/watchdog/internal/repository/postgres/postgres.leak_device.go
package postgres

import (
	"context"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

type LeakDeviceRepo struct {
	PostgresBaseRepo
}

func NewLeakDeviceRepository(db database.DB) *LeakDeviceRepo {
	return &LeakDeviceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *LeakDeviceRepo) Get(ctx context.Context, id string) (*models.LeakDevice, error) {
	device := &models.LeakDevice{}
	query := `SELECT * FROM leak_devices WHERE id = $1`

	if err := r.db.GetDB().GetContext(ctx, device, query, id); err != nil {
		return nil, wrapGetError(err, "leak device")
	}
	return device, nil
}

// GetLeakDevices returns every leak sensor, retired ones included.
func (r *LeakDeviceRepo) GetLeakDevices(ctx context.Context) ([]models.LeakDevice, error) {
	devices := []models.LeakDevice{}
	query := `SELECT * FROM leak_devices ORDER BY name`

	if err := r.db.GetDB().SelectContext(ctx, &devices, query); err != nil {
		return nil, errors.NewDatabaseError("failed to list leak devices", err)
	}
	return devices, nil
}
