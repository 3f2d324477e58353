package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline-tours/service-payments/internal/domain"
	bookingDomain "github.com/harborline-tours/service-payments/internal/domain/booking"
	catalogDomain "github.com/harborline-tours/service-payments/internal/domain/catalog"
)

// ProductModel is the GORM persistence model for the products table.
type ProductModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Kind      string    `gorm:"type:varchar(10);not null"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (ProductModel) TableName() string {
	return "products"
}

// ScheduleModel is one departure row with its current prices. Recurring tour
// dates are expanded into these rows by the upstream catalog sync.
type ScheduleModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ProductID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Departs         time.Time `gorm:"type:timestamptz;not null"`
	AdultPriceCents int64     `gorm:"not null"`
	ChildPriceCents int64     `gorm:"not null;default:0"`
	Capacity        int       `gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM.
func (ScheduleModel) TableName() string {
	return "product_schedules"
}

// PickupModel is a pickup point with its flat surcharge.
type PickupModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ProductID      uuid.UUID `gorm:"type:uuid;index;not null"`
	Name           string    `gorm:"type:varchar(255);not null"`
	SurchargeCents int64     `gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM.
func (PickupModel) TableName() string {
	return "product_pickups"
}

// CatalogRepositoryImpl is the GORM-based implementation of catalog.Repository.
type CatalogRepositoryImpl struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new GORM-based catalog repository.
func NewCatalogRepository(db *gorm.DB) *CatalogRepositoryImpl {
	return &CatalogRepositoryImpl{db: db}
}

// FindByID retrieves a product with its schedules and pickups.
func (r *CatalogRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*catalogDomain.Product, error) {
	var product ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Product", id.String())
		}
		return nil, err
	}

	var scheduleModels []ScheduleModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Order("departs ASC").Find(&scheduleModels).Error; err != nil {
		return nil, err
	}

	var pickupModels []PickupModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Order("name ASC").Find(&pickupModels).Error; err != nil {
		return nil, err
	}

	schedules := make([]catalogDomain.Schedule, len(scheduleModels))
	for i, s := range scheduleModels {
		schedules[i] = catalogDomain.Schedule{
			ID:              s.ID,
			Departs:         s.Departs,
			AdultPriceCents: s.AdultPriceCents,
			ChildPriceCents: s.ChildPriceCents,
			Capacity:        s.Capacity,
		}
	}

	pickups := make([]catalogDomain.Pickup, len(pickupModels))
	for i, p := range pickupModels {
		pickups[i] = catalogDomain.Pickup{
			ID:             p.ID,
			Name:           p.Name,
			SurchargeCents: p.SurchargeCents,
		}
	}

	return catalogDomain.Reconstitute(
		product.ID,
		bookingDomain.Kind(product.Kind),
		product.Name,
		product.Currency,
		product.Active,
		schedules,
		pickups,
	), nil
}
