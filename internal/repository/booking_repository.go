package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline-tours/service-payments/internal/domain"
	bookingDomain "github.com/harborline-tours/service-payments/internal/domain/booking"
)

// BookingModel is the GORM persistence model for the bookings table. The
// pricing snapshot is flattened into columns so it stays frozen with the row.
type BookingModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Reference            string     `gorm:"type:varchar(20);uniqueIndex;not null"`
	Kind                 string     `gorm:"type:varchar(10);not null"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending'"`
	CustomerID           uuid.UUID  `gorm:"type:uuid;index;not null"`
	ProductID            uuid.UUID  `gorm:"type:uuid;not null"`
	ScheduleID           uuid.UUID  `gorm:"type:uuid;not null"`
	PickupID             *uuid.UUID `gorm:"type:uuid"`
	Departs              time.Time  `gorm:"type:timestamptz;not null"`
	Adults               int        `gorm:"not null"`
	Children             int        `gorm:"not null;default:0"`
	AdultPriceCents      int64      `gorm:"not null"`
	ChildPriceCents      int64      `gorm:"not null;default:0"`
	AdultTotalCents      int64      `gorm:"not null"`
	ChildTotalCents      int64      `gorm:"not null;default:0"`
	PickupSurchargeCents int64      `gorm:"not null;default:0"`
	TotalCents           int64      `gorm:"not null"`
	Currency             string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Version              int64      `gorm:"not null;default:1"`
	CreatedAt            time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt            time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingRepositoryImpl is the GORM-based implementation of booking.Repository.
type BookingRepositoryImpl struct {
	db *gorm.DB
}

// NewBookingRepository creates a new GORM-based booking repository.
func NewBookingRepository(db *gorm.DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

// FindByID retrieves a booking by its unique ID.
func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, err
	}
	return toBookingDomain(&model), nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *BookingRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total)

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toBookingDomain(&models[i])
	}
	return bookings, total, nil
}

// Save persists a new booking aggregate.
func (r *BookingRepositoryImpl) Save(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing booking with optimistic locking.
func (r *BookingRepositoryImpl) Update(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	previousVersion := b.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// toBookingDomain maps a BookingModel to the domain Booking aggregate.
func toBookingDomain(model *BookingModel) *bookingDomain.Booking {
	return bookingDomain.Reconstitute(
		model.ID,
		model.Reference,
		bookingDomain.Kind(model.Kind),
		bookingDomain.Status(model.Status),
		model.CustomerID,
		model.ProductID,
		model.ScheduleID,
		model.PickupID,
		model.Departs,
		model.Adults,
		model.Children,
		bookingDomain.Pricing{
			AdultPriceCents:      model.AdultPriceCents,
			ChildPriceCents:      model.ChildPriceCents,
			AdultTotalCents:      model.AdultTotalCents,
			ChildTotalCents:      model.ChildTotalCents,
			PickupSurchargeCents: model.PickupSurchargeCents,
			TotalCents:           model.TotalCents,
			Currency:             model.Currency,
		},
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// toBookingModel maps a domain Booking aggregate to a BookingModel.
func toBookingModel(b *bookingDomain.Booking) *BookingModel {
	pricing := b.Pricing()
	return &BookingModel{
		ID:                   b.ID(),
		Reference:            b.Reference(),
		Kind:                 string(b.Kind()),
		Status:               string(b.Status()),
		CustomerID:           b.CustomerID(),
		ProductID:            b.ProductID(),
		ScheduleID:           b.ScheduleID(),
		PickupID:             b.PickupID(),
		Departs:              b.Departs(),
		Adults:               b.Adults(),
		Children:             b.Children(),
		AdultPriceCents:      pricing.AdultPriceCents,
		ChildPriceCents:      pricing.ChildPriceCents,
		AdultTotalCents:      pricing.AdultTotalCents,
		ChildTotalCents:      pricing.ChildTotalCents,
		PickupSurchargeCents: pricing.PickupSurchargeCents,
		TotalCents:           pricing.TotalCents,
		Currency:             pricing.Currency,
		Version:              b.Version(),
		CreatedAt:            b.CreatedAt(),
		UpdatedAt:            b.UpdatedAt(),
	}
}
