// Package payment integrates the card-payment gateway: server-side order
// creation and signature verification, and the client-side checkout flow
// built on top of those two endpoints.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PresetAmounts are the quick-pick donation amounts offered by the form.
var PresetAmounts = []int64{100, 250, 500, 1000, 2500}

// Store is the persistence the payment flow needs.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	CreatePaymentOrder(ctx context.Context, o *models.PaymentOrder) error
	CompletePaymentOrder(ctx context.Context, orderID, paymentID string, d *models.Donation) (*models.PaymentOrder, bool, error)
}

// CheckoutRequest is what the donor submits to start a card payment.
type CheckoutRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	DonorName  string          `json:"donor_name"`
	DonorEmail string          `json:"donor_email"`
	CampaignID string          `json:"campaign_id"`
}

// CheckoutOrder is everything the checkout widget needs. Amount is in paise.
type CheckoutOrder struct {
	KeyID    string `json:"keyId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"orderId"`
}

// VerifyRequest carries the checkout widget's success callback fields.
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyResult reports the outcome of a verified payment.
type VerifyResult struct {
	Order   *models.PaymentOrder `json:"order"`
	Applied bool                 `json:"applied"` // false when the order was already paid
}

// Service creates gateway orders and reconciles verified payments into the
// donation ledger.
type Service struct {
	gateway Gateway
	store   Store
}

// NewService creates a payment service. A nil gateway leaves card payments
// disabled; every call then returns ErrNotConfigured.
func NewService(gateway Gateway, store Store) *Service {
	return &Service{gateway: gateway, store: store}
}

// Enabled reports whether a gateway is configured.
func (s *Service) Enabled() bool {
	return s.gateway != nil
}

// CreateOrder validates the request, creates a gateway order and records it
// locally so the verify callback can be reconciled.
func (s *Service) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutOrder, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	amount := req.Amount.Round(2)
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(models.MaxAmount) {
		return nil, ErrAmountTooLarge
	}

	if req.CampaignID != "" {
		c, err := s.store.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("load campaign: %w", err)
		}
		if c == nil || !c.IsPublic() {
			return nil, ErrCampaignUnavailable
		}
	}

	notes := map[string]string{"purpose": "donation"}
	if req.CampaignID != "" {
		notes["campaign_id"] = req.CampaignID
	}
	if req.DonorName != "" {
		notes["donor_name"] = req.DonorName
	}

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   database.ToPaise(amount),
		Currency: "INR",
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.CreatePaymentOrder(ctx, &models.PaymentOrder{
		ID:         order.ID,
		CampaignID: req.CampaignID,
		Amount:     amount,
		Currency:   order.Currency,
		DonorName:  strings.TrimSpace(req.DonorName),
		DonorEmail: strings.TrimSpace(req.DonorEmail),
	}); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	log.Printf("payment: created order %s for ₹%s", order.ID, amount)
	return &CheckoutOrder{
		KeyID:    s.gateway.KeyID(),
		Amount:   order.Amount,
		Currency: order.Currency,
		OrderID:  order.ID,
	}, nil
}

// Verify checks the callback signature and, when valid, records the
// donation. Replaying a verified callback is harmless.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		log.Printf("payment: signature mismatch for order %s", req.OrderID)
		return nil, ErrVerificationFailed
	}

	order, applied, err := s.store.CompletePaymentOrder(ctx, req.OrderID, req.PaymentID, &models.Donation{
		Method: models.MethodRazorpay,
	})
	if errors.Is(err, database.ErrOrderNotFound) {
		return nil, ErrVerificationFailed
	}
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}

	if applied {
		log.Printf("payment: order %s paid (payment %s)", order.ID, req.PaymentID)
	}
	return &VerifyResult{Order: order, Applied: applied}, nil
}
