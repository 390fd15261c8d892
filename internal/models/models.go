package models

import "time"

// AccessChannel is the entitlement path a synthesis request was admitted on.
type AccessChannel string

const (
	ChannelFreeTrial AccessChannel = "free_trial"
	ChannelPaid      AccessChannel = "paid"
	ChannelDenied    AccessChannel = "denied"
)

// TransactionStatus tracks the lifecycle of a checkout. The only legal
// transition is pending -> completed (or pending -> failed); a failed
// transaction is never resurrected.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

type CreditAccount struct {
	ID           int64
	DeviceID     string
	TotalGranted int
	TotalUsed    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a CreditAccount) Remaining() int {
	return a.TotalGranted - a.TotalUsed
}

type FreeTrial struct {
	ID        int64
	DeviceID  string
	Consumed  bool
	CreatedAt time.Time
}

type PaymentTransaction struct {
	ID             int64
	CheckoutID     string
	DeviceID       string
	ProductSKU     string
	AmountCents    int
	Currency       string
	Status         TransactionStatus
	CreditsGranted int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// VoiceGeneration is an append-only audit row for a successful synthesis.
type VoiceGeneration struct {
	ID         int64
	DeviceID   string
	VoiceID    string
	Provider   string
	TextLength int
	AudioURL   string
	CreatedAt  time.Time
}
