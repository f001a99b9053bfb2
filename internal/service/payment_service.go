package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	"github.com/Azizbek961/crm-edu-crm/pkg/config"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type paymentFeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.FeeRecord, error)
}

// PaymentService issues Snap payment links for pending fees. Disabled
// unless the gateway is configured.
type PaymentService struct {
	fees    paymentFeeRepository
	client  snap.Client
	enabled bool
	logger  *zap.Logger
}

// NewPaymentService creates an instance of PaymentService.
func NewPaymentService(fees paymentFeeRepository, cfg config.PaymentsConfig, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PaymentService{fees: fees, enabled: cfg.Enabled && cfg.ServerKey != "", logger: logger}
	if s.enabled {
		env := midtrans.Sandbox
		if cfg.Production {
			env = midtrans.Production
		}
		s.client.New(cfg.ServerKey, env)
	}
	return s
}

// Enabled reports whether payment links can be issued.
func (s *PaymentService) Enabled() bool {
	return s.enabled
}

// CreateLink generates a Snap payment page for an unpaid fee.
func (s *PaymentService) CreateLink(ctx context.Context, feeID string) (*models.PaymentLink, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment links are not enabled")
	}

	fee, err := s.fees.FindByID(ctx, feeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	if fee.Status == models.FeeStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fee is already paid")
	}

	orderID := fmt.Sprintf("fee-%s-%d", fee.ID, time.Now().Unix())
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: int64(fee.Amount),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: fee.StudentName,
		},
	}

	resp, snapErr := s.client.CreateTransaction(req)
	if snapErr != nil {
		s.logger.Sugar().Errorw("failed to create payment transaction", "fee_id", fee.ID, "order_id", orderID, "error", snapErr)
		return nil, appErrors.Wrap(snapErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment link")
	}

	return &models.PaymentLink{
		FeeID:       fee.ID,
		OrderID:     orderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		Amount:      fee.Amount,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
