package repository

import (
	"context"

	"insurance-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Payment, error)

	// MarkSuccess conditionally flips PENDING -> SUCCESS, storing the gateway
	// transaction id and raw payload. Reports whether this call performed the
	// flip, so a duplicate webhook delivery is a detectable no-op.
	MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID string, rawPayload datatypes.JSON) (bool, error)
	// MarkFailed conditionally flips PENDING -> FAILED.
	MarkFailed(ctx context.Context, id uuid.UUID, rawPayload datatypes.JSON) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return GetDB(ctx, r.db).Create(p).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := GetDB(ctx, r.db).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var p model.Payment
	if err := GetDB(ctx, r.db).First(&p, "gateway_order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := GetDB(ctx, r.db).Where("application_id = ?", applicationID).
		Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID string, rawPayload datatypes.JSON) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":               model.PaymentStatusSuccess,
			"gateway_txn_id":       gatewayTxnID,
			"raw_callback_payload": rawPayload,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, rawPayload datatypes.JSON) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":               model.PaymentStatusFailed,
			"raw_callback_payload": rawPayload,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
