// Package payment creates checkout sessions and reconciles gateway webhooks
// into credit grants.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/catalog"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/metrics"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/payment/creem"
)

var (
	ErrUnknownProduct       = errors.New("unknown product")
	ErrProductNotConfigured = errors.New("product not configured in gateway")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrMalformedEvent       = errors.New("malformed webhook payload")
)

// TransactionStore is the persistence contract for purchase transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.PaymentTransaction) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.PaymentTransaction, error)
	// Complete atomically transitions pending -> completed and reports whether
	// this call performed the transition.
	Complete(ctx context.Context, checkoutID string) (bool, error)
}

// CreditGranter is the slice of the ledger reconciliation needs.
type CreditGranter interface {
	Grant(ctx context.Context, deviceID string, credits int) error
}

// CheckoutCreator abstracts the gateway client for tests.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req creem.CheckoutRequest) (*creem.Checkout, error)
}

type Service struct {
	log           *slog.Logger
	transactions  TransactionStore
	ledger        CreditGranter
	gateway       CheckoutCreator
	productIDs    map[string]string
	webhookSecret string
	metrics       *metrics.Metrics
}

func NewService(log *slog.Logger, transactions TransactionStore, ledger CreditGranter, gateway CheckoutCreator, productIDs map[string]string, webhookSecret string, m *metrics.Metrics) *Service {
	return &Service{
		log:           log,
		transactions:  transactions,
		ledger:        ledger,
		gateway:       gateway,
		productIDs:    productIDs,
		webhookSecret: webhookSecret,
		metrics:       m,
	}
}

type CheckoutResult struct {
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckout opens a gateway session for the product and records the
// pending transaction against its checkout id.
func (s *Service) CreateCheckout(ctx context.Context, sku, deviceID, successURL, cancelURL string) (*CheckoutResult, error) {
	product, ok := catalog.ProductBySKU(sku)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, sku)
	}
	gatewayProductID, ok := s.productIDs[sku]
	if !ok || gatewayProductID == "" {
		return nil, fmt.Errorf("%w: %s", ErrProductNotConfigured, sku)
	}
	if cancelURL == "" {
		cancelURL = successURL
	}

	checkout, err := s.gateway.CreateCheckout(ctx, creem.CheckoutRequest{
		ProductID:  gatewayProductID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]any{
			"device_id":  deviceID,
			"product_id": sku,
			"tokens":     product.Credits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	tx := &models.PaymentTransaction{
		CheckoutID:     checkout.ID,
		DeviceID:       deviceID,
		ProductSKU:     sku,
		AmountCents:    product.PriceCents,
		Currency:       "USD",
		Status:         models.StatusPending,
		CreditsGranted: product.Credits,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	s.log.Info("checkout created", "checkout_id", checkout.ID, "sku", sku, "device_id", deviceID)
	return &CheckoutResult{CheckoutID: checkout.ID, CheckoutURL: checkout.CheckoutURL}, nil
}
