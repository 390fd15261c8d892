package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Event is a parsed gateway webhook notification. Only checkout.completed
// events have an effect; everything else is accepted as a no-op so new gateway
// event types never break delivery.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	ID       string        `json:"id"`
	Metadata EventMetadata `json:"metadata"`
}

type EventMetadata struct {
	DeviceID string `json:"device_id"`
	Credits  int    `json:"tokens"`
}

// VerifySignature checks the HMAC-SHA256 hex digest of the raw payload against
// the gateway signature header, in constant time. When no webhook secret is
// configured verification is skipped entirely; that trust-all mode is only
// meant for local development.
func (s *Service) VerifySignature(payload []byte, signature string) bool {
	if s.webhookSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ParseEvent decodes the raw webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &event, nil
}

// ApplyEvent reconciles a verified event. It grants credits at most once per
// transaction: redelivered webhooks, unknown checkout ids and already-failed
// transactions all no-op without error, because the gateway only needs an ack.
func (s *Service) ApplyEvent(ctx context.Context, event *Event) error {
	if event.Type != "checkout.completed" {
		return nil
	}

	tx, err := s.transactions.FindByCheckoutID(ctx, event.Data.ID)
	if err != nil {
		return fmt.Errorf("find transaction: %w", err)
	}
	if tx == nil {
		s.log.Warn("webhook for unknown checkout", "checkout_id", event.Data.ID)
		return nil
	}

	transitioned, err := s.transactions.Complete(ctx, tx.CheckoutID)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	if !transitioned {
		s.log.Info("webhook replay ignored", "checkout_id", tx.CheckoutID, "status", tx.Status)
		return nil
	}

	deviceID := event.Data.Metadata.DeviceID
	if deviceID == "" {
		deviceID = tx.DeviceID
	}
	credits := event.Data.Metadata.Credits
	if credits <= 0 {
		credits = tx.CreditsGranted
	}

	if err := s.ledger.Grant(ctx, deviceID, credits); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}

	s.metrics.PaymentSuccess.WithLabelValues(tx.ProductSKU).Inc()
	s.metrics.PaymentRevenueCents.Add(float64(tx.AmountCents))
	s.log.Info("payment completed", "checkout_id", tx.CheckoutID, "device_id", deviceID, "credits", credits)
	return nil
}
