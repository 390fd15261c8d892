package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters incremented by the core services. Constructing
// against an explicit registerer keeps tests isolated from the default registry.
type Metrics struct {
	PaymentSuccess      *prometheus.CounterVec
	PaymentRevenueCents prometheus.Counter
	CreditsConsumed     prometheus.Counter
	FreeTrialUsed       prometheus.Counter
	TTSGenerations      *prometheus.CounterVec
	CharactersProcessed *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentSuccess: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_success_total",
				Help: "Successful payments",
			},
			[]string{"product_sku"},
		),
		PaymentRevenueCents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_revenue_cents_total",
				Help: "Total revenue in cents",
			},
		),
		CreditsConsumed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_consumed_total",
				Help: "Total paid credits consumed",
			},
		),
		FreeTrialUsed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "free_trial_used_total",
				Help: "Free trial usage count",
			},
		),
		TTSGenerations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tts_generations_total",
				Help: "Total TTS generations",
			},
			[]string{"provider", "voice_id"},
		),
		CharactersProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tts_characters_processed_total",
				Help: "Total characters processed",
			},
			[]string{"provider"},
		),
	}
}
