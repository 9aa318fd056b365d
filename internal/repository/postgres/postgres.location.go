// FilePath: server/watchdog/internal/repository/postgres/postgres.location.go
package postgres

import (
	"context"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

type LocationRepo struct {
	PostgresBaseRepo
}

func NewLocationRepository(db database.DB) *LocationRepo {
	return &LocationRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *LocationRepo) Get(ctx context.Context, id string) (*models.Location, error) {
	location := &models.Location{}
	query := `SELECT * FROM locations WHERE id = $1`

	if err := r.db.GetDB().GetContext(ctx, location, query, id); err != nil {
		return nil, wrapGetError(err, "location")
	}
	return location, nil
}

// GetLocations returns every location ordered by name.
func (r *LocationRepo) GetLocations(ctx context.Context) ([]models.Location, error) {
	locations := []models.Location{}
	query := `SELECT * FROM locations ORDER BY name`

	err := r.db.GetDB().SelectContext(ctx, &locations, query)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list locations", err)
	}
	return locations, nil
}
