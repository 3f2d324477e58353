package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the read contract for catalog products. The catalog is
// authored upstream; this service only prices against it.
type Repository interface {
	// FindByID retrieves a product with its schedules and pickups.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
}
