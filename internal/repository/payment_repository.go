package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	paymentDomain "github.com/harborline-tours/service-payments/internal/domain/payment"
)

// PaymentModel is the GORM persistence model for the booking_payments table.
type PaymentModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	BookingID             uuid.UUID `gorm:"type:uuid;index;not null"`
	BookingKind           string    `gorm:"type:varchar(10);not null"`
	Purpose               string    `gorm:"type:varchar(20);not null;default:'booking'"`
	AmountCents           int64     `gorm:"not null"`
	Currency              string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Status                string    `gorm:"type:varchar(20);not null;default:'pending'"`
	RefundStatus          string    `gorm:"type:varchar(20);not null;default:'not_refunded'"`
	RefundedAmountCents   int64     `gorm:"not null;default:0"`
	StripePaymentIntentID string    `gorm:"type:varchar(255);index"`
	StripeRefundID        string    `gorm:"type:varchar(255)"`
	RefundReceiptURL      string    `gorm:"type:text"`
	Notes                 string    `gorm:"type:text"`
	Version               int64     `gorm:"not null;default:1"`
	CreatedAt             time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt             time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string {
	return "booking_payments"
}

// PaymentRepositoryImpl is the GORM-based implementation of payment.Repository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// FindByID retrieves a payment by its unique ID.
func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", id.String())
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindByIntentID retrieves a payment by its gateway payment-intent ID.
func (r *PaymentRepositoryImpl) FindByIntentID(ctx context.Context, paymentIntentID string) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", paymentIntentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", paymentIntentID)
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindCompletedByBooking retrieves all completed payments for a booking,
// most recent first.
func (r *PaymentRepositoryImpl) FindCompletedByBooking(ctx context.Context, bookingID uuid.UUID, kind booking.Kind) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND booking_kind = ? AND status = ?", bookingID, string(kind), string(paymentDomain.StatusCompleted)).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total)

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, total, nil
}

// GetRefundStats returns aggregate refund statistics (admin).
func (r *PaymentRepositoryImpl) GetRefundStats(ctx context.Context) (int64, int64, map[string]int64, error) {
	var totalCollected int64
	r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusCompleted)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&totalCollected)

	var totalRefunded int64
	r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusCompleted)).
		Select("COALESCE(SUM(refunded_amount_cents), 0)").
		Scan(&totalRefunded)

	type statusCount struct {
		RefundStatus string
		Count        int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("refund_status, count(*) as count").
		Group("refund_status").
		Find(&results).Error; err != nil {
		return 0, 0, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.RefundStatus] = sc.Count
	}
	return totalCollected, totalRefunded, counts, nil
}

// Save persists a new payment aggregate.
func (r *PaymentRepositoryImpl) Save(ctx context.Context, p *paymentDomain.Payment) error {
	model := toPaymentModel(p)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing payment with optimistic locking.
// The conditional version match is what prevents two concurrent refund
// requests from both marking the same payment's refund pending.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, p *paymentDomain.Payment) error {
	model := toPaymentModel(p)
	previousVersion := p.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}

	return nil
}

// toPaymentDomain maps a PaymentModel to the domain Payment aggregate.
func toPaymentDomain(model *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		model.ID,
		model.BookingID,
		booking.Kind(model.BookingKind),
		paymentDomain.Purpose(model.Purpose),
		model.AmountCents,
		model.Currency,
		paymentDomain.Status(model.Status),
		paymentDomain.RefundStatus(model.RefundStatus),
		model.RefundedAmountCents,
		model.StripePaymentIntentID,
		model.StripeRefundID,
		model.RefundReceiptURL,
		model.Notes,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// toPaymentModel maps a domain Payment aggregate to a PaymentModel.
func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                    p.ID(),
		BookingID:             p.BookingID(),
		BookingKind:           string(p.BookingKind()),
		Purpose:               string(p.Purpose()),
		AmountCents:           p.AmountCents(),
		Currency:              p.Currency(),
		Status:                string(p.Status()),
		RefundStatus:          string(p.RefundStatus()),
		RefundedAmountCents:   p.RefundedAmountCents(),
		StripePaymentIntentID: p.StripePaymentIntentID(),
		StripeRefundID:        p.StripeRefundID(),
		RefundReceiptURL:      p.RefundReceiptURL(),
		Notes:                 p.Notes(),
		Version:               p.Version(),
		CreatedAt:             p.CreatedAt(),
		UpdatedAt:             p.UpdatedAt(),
	}
}
