package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/metrics"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/payment/creem"
)

type fakeTxStore struct {
	mu  sync.Mutex
	txs map[string]*models.PaymentTransaction
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{txs: map[string]*models.PaymentTransaction{}}
}

func (f *fakeTxStore) Create(_ context.Context, tx *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *tx
	f.txs[tx.CheckoutID] = &copied
	return nil
}

func (f *fakeTxStore) FindByCheckoutID(_ context.Context, checkoutID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[checkoutID]
	if !ok {
		return nil, nil
	}
	copied := *tx
	return &copied, nil
}

func (f *fakeTxStore) Complete(_ context.Context, checkoutID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[checkoutID]
	if !ok || tx.Status != models.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	tx.Status = models.StatusCompleted
	tx.CompletedAt = &now
	return true, nil
}

type fakeGranter struct {
	grants map[string]int
}

func (f *fakeGranter) Grant(_ context.Context, deviceID string, credits int) error {
	if f.grants == nil {
		f.grants = map[string]int{}
	}
	f.grants[deviceID] += credits
	return nil
}

type fakeGateway struct {
	checkout *creem.Checkout
	err      error
	lastReq  creem.CheckoutRequest
}

func (f *fakeGateway) CreateCheckout(_ context.Context, req creem.CheckoutRequest) (*creem.Checkout, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}

func newTestService(store TransactionStore, granter CreditGranter, gateway CheckoutCreator, secret string) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	productIDs := map[string]string{"basic": "prod_basic", "standard": "prod_standard", "pro": "prod_pro"}
	return NewService(log, store, granter, gateway, productIDs, secret, metrics.New(prometheus.NewRegistry()))
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	svc := newTestService(newFakeTxStore(), &fakeGranter{}, &fakeGateway{}, "whsec_test")
	payload := []byte(`{"type":"checkout.completed"}`)

	assert.True(t, svc.VerifySignature(payload, sign("whsec_test", payload)))
	assert.False(t, svc.VerifySignature(payload, sign("wrong-secret", payload)))
	assert.False(t, svc.VerifySignature(payload, ""))
	assert.False(t, svc.VerifySignature(payload, "deadbeef"))
}

func TestVerifySignatureSkippedWithoutSecret(t *testing.T) {
	svc := newTestService(newFakeTxStore(), &fakeGranter{}, &fakeGateway{}, "")
	assert.True(t, svc.VerifySignature([]byte("anything"), ""))
}

func TestParseEventRejectsBadJSON(t *testing.T) {
	_, err := ParseEvent([]byte("not json"))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func seedPending(t *testing.T, store *fakeTxStore, checkoutID string) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.PaymentTransaction{
		CheckoutID:     checkoutID,
		DeviceID:       "device-2",
		ProductSKU:     "basic",
		AmountCents:    499,
		Currency:       "USD",
		Status:         models.StatusPending,
		CreditsGranted: 10,
	}))
}

func TestApplyEventGrantsExactlyOnce(t *testing.T) {
	store := newFakeTxStore()
	granter := &fakeGranter{}
	svc := newTestService(store, granter, &fakeGateway{}, "whsec_test")
	seedPending(t, store, "ch_1")
	ctx := context.Background()

	event := &Event{Type: "checkout.completed", Data: EventData{ID: "ch_1"}}
	require.NoError(t, svc.ApplyEvent(ctx, event))
	assert.Equal(t, 10, granter.grants["device-2"])

	tx, err := store.FindByCheckoutID(ctx, "ch_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	require.NotNil(t, tx.CompletedAt)

	// Redelivery is a no-op: remaining stays at 10, not 20.
	require.NoError(t, svc.ApplyEvent(ctx, event))
	assert.Equal(t, 10, granter.grants["device-2"])
}

func TestApplyEventConcurrentRedelivery(t *testing.T) {
	store := newFakeTxStore()
	granter := &fakeGranter{}
	svc := newTestService(store, granter, &fakeGateway{}, "")
	seedPending(t, store, "ch_1")

	event := &Event{Type: "checkout.completed", Data: EventData{ID: "ch_1"}}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.ApplyEvent(context.Background(), event)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, granter.grants["device-2"])
}

func TestApplyEventMetadataOverridesStoredValues(t *testing.T) {
	store := newFakeTxStore()
	granter := &fakeGranter{}
	svc := newTestService(store, granter, &fakeGateway{}, "")
	seedPending(t, store, "ch_1")

	event := &Event{Type: "checkout.completed", Data: EventData{
		ID:       "ch_1",
		Metadata: EventMetadata{DeviceID: "device-other", Credits: 30},
	}}
	require.NoError(t, svc.ApplyEvent(context.Background(), event))
	assert.Equal(t, 30, granter.grants["device-other"])
	assert.Zero(t, granter.grants["device-2"])
}

func TestApplyEventUnknownCheckoutIsNoOp(t *testing.T) {
	granter := &fakeGranter{}
	svc := newTestService(newFakeTxStore(), granter, &fakeGateway{}, "")

	event := &Event{Type: "checkout.completed", Data: EventData{ID: "ch_missing"}}
	require.NoError(t, svc.ApplyEvent(context.Background(), event))
	assert.Empty(t, granter.grants)
}

func TestApplyEventIgnoresOtherTypes(t *testing.T) {
	store := newFakeTxStore()
	granter := &fakeGranter{}
	svc := newTestService(store, granter, &fakeGateway{}, "")
	seedPending(t, store, "ch_1")

	for _, typ := range []string{"checkout.created", "refund.created", "subscription.updated"} {
		require.NoError(t, svc.ApplyEvent(context.Background(), &Event{Type: typ, Data: EventData{ID: "ch_1"}}))
	}
	assert.Empty(t, granter.grants)
}

func TestApplyEventNeverResurrectsFailed(t *testing.T) {
	store := newFakeTxStore()
	granter := &fakeGranter{}
	svc := newTestService(store, granter, &fakeGateway{}, "")
	require.NoError(t, store.Create(context.Background(), &models.PaymentTransaction{
		CheckoutID:     "ch_failed",
		DeviceID:       "device-2",
		ProductSKU:     "basic",
		Status:         models.StatusFailed,
		CreditsGranted: 10,
	}))

	event := &Event{Type: "checkout.completed", Data: EventData{ID: "ch_failed"}}
	require.NoError(t, svc.ApplyEvent(context.Background(), event))
	assert.Empty(t, granter.grants)

	tx, err := store.FindByCheckoutID(context.Background(), "ch_failed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, tx.Status)
}

func TestCreateCheckoutRecordsPendingTransaction(t *testing.T) {
	store := newFakeTxStore()
	gateway := &fakeGateway{checkout: &creem.Checkout{ID: "ch_new", CheckoutURL: "https://pay.example/ch_new"}}
	svc := newTestService(store, &fakeGranter{}, gateway, "")

	result, err := svc.CreateCheckout(context.Background(), "standard", "device-9", "https://app.example/success", "")
	require.NoError(t, err)
	assert.Equal(t, "ch_new", result.CheckoutID)
	assert.Equal(t, "https://pay.example/ch_new", result.CheckoutURL)

	assert.Equal(t, "prod_standard", gateway.lastReq.ProductID)
	assert.Equal(t, "https://app.example/success", gateway.lastReq.CancelURL, "cancel url falls back to success url")
	assert.Equal(t, "device-9", gateway.lastReq.Metadata["device_id"])
	assert.Equal(t, 30, gateway.lastReq.Metadata["tokens"])

	tx, err := store.FindByCheckoutID(context.Background(), "ch_new")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, 999, tx.AmountCents)
	assert.Equal(t, 30, tx.CreditsGranted)
}

func TestCreateCheckoutErrors(t *testing.T) {
	svc := newTestService(newFakeTxStore(), &fakeGranter{}, &fakeGateway{err: errors.New("dial tcp: timeout")}, "")
	ctx := context.Background()

	_, err := svc.CreateCheckout(ctx, "mega", "device-9", "https://app.example/success", "")
	require.ErrorIs(t, err, ErrUnknownProduct)

	unconfigured := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), newFakeTxStore(), &fakeGranter{}, &fakeGateway{}, map[string]string{}, "", metrics.New(prometheus.NewRegistry()))
	_, err = unconfigured.CreateCheckout(ctx, "basic", "device-9", "https://app.example/success", "")
	require.ErrorIs(t, err, ErrProductNotConfigured)

	_, err = svc.CreateCheckout(ctx, "basic", "device-9", "https://app.example/success", "")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}
