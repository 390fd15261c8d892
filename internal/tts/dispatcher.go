package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/ledger"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/metrics"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
)

const (
	maxTextLength    = 5000
	previewMaxLength = 100
	minSpeed         = 0.5
	maxSpeed         = 2.0
)

// Entitlements is the slice of the ledger the dispatcher needs.
type Entitlements interface {
	CheckAccess(ctx context.Context, deviceID string) (ledger.Access, error)
	Debit(ctx context.Context, deviceID string) error
}

// Recorder persists the audit row for a successful synthesis.
type Recorder interface {
	Record(ctx context.Context, gen *models.VoiceGeneration) error
}

// Dispatcher validates synthesis requests, consults the ledger, invokes the
// selected provider and records the outcome.
type Dispatcher struct {
	log          *slog.Logger
	providers    *Registry
	entitlements Entitlements
	recorder     Recorder
	metrics      *metrics.Metrics
	timeout      time.Duration
}

func NewDispatcher(log *slog.Logger, providers *Registry, entitlements Entitlements, recorder Recorder, m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:          log,
		providers:    providers,
		entitlements: entitlements,
		recorder:     recorder,
		metrics:      m,
		timeout:      timeout,
	}
}

// Result describes a completed synthesis.
type Result struct {
	AudioURL       string
	Provider       string
	Voice          string
	CharactersUsed int
	Channel        models.AccessChannel
}

// Dispatch runs the full metered synthesis flow. The entitlement check happens
// before any provider call so a denied device never causes external spend; a
// paid credit is debited only after the provider succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID, text, voiceSelector string, speed float64) (*Result, error) {
	providerName, voice, err := parseSelector(voiceSelector)
	if err != nil {
		return nil, err
	}
	if err := validateInput(text, speed); err != nil {
		return nil, err
	}

	access, err := d.entitlements.CheckAccess(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if !access.Allowed {
		return nil, ErrInsufficientCredit
	}

	artifact, err := d.synthesize(ctx, providerName, voice, text, speed)
	if err != nil {
		return nil, err
	}

	if access.Channel == models.ChannelPaid {
		if err := d.entitlements.Debit(ctx, deviceID); err != nil {
			return nil, fmt.Errorf("debit after synthesis: %w", err)
		}
	}

	chars := utf8.RuneCountInString(text)
	gen := &models.VoiceGeneration{
		DeviceID:   deviceID,
		VoiceID:    voiceSelector,
		Provider:   providerName,
		TextLength: chars,
		AudioURL:   artifact.URL,
	}
	if err := d.recorder.Record(ctx, gen); err != nil {
		d.log.Error("failed to record generation", "device_id", deviceID, "err", err)
	}

	d.metrics.TTSGenerations.WithLabelValues(providerName, voice).Inc()
	d.metrics.CharactersProcessed.WithLabelValues(providerName).Add(float64(chars))

	return &Result{
		AudioURL:       artifact.URL,
		Provider:       providerName,
		Voice:          voice,
		CharactersUsed: chars,
		Channel:        access.Channel,
	}, nil
}

// Preview synthesizes the first 100 characters without touching entitlement
// state. Previews are unmetered and leave no audit row.
func (d *Dispatcher) Preview(ctx context.Context, text, voiceSelector string, speed float64) (*Result, error) {
	providerName, voice, err := parseSelector(voiceSelector)
	if err != nil {
		return nil, err
	}
	if err := validateInput(text, speed); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) > previewMaxLength {
		text = string(runes[:previewMaxLength])
	}

	artifact, err := d.synthesize(ctx, providerName, voice, text, speed)
	if err != nil {
		return nil, err
	}
	return &Result{
		AudioURL:       artifact.URL,
		Provider:       providerName,
		Voice:          voice,
		CharactersUsed: utf8.RuneCountInString(text),
	}, nil
}

func (d *Dispatcher) synthesize(ctx context.Context, providerName, voice, text string, speed float64) (*Artifact, error) {
	provider, ok := d.providers.Lookup(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	if !provider.HasVoice(voice) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, voice)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	artifact, err := provider.Synthesize(ctx, text, voice, speed)
	if err != nil {
		d.log.Error("synthesis failed", "provider", providerName, "voice", voice, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	return artifact, nil
}

func parseSelector(selector string) (provider, voice string, err error) {
	parts := strings.SplitN(selector, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSelector, selector)
	}
	return parts[0], parts[1], nil
}

func validateInput(text string, speed float64) error {
	length := utf8.RuneCountInString(text)
	if length < 1 || length > maxTextLength {
		return fmt.Errorf("%w: text length %d", ErrInvalidInput, length)
	}
	if speed < minSpeed || speed > maxSpeed {
		return fmt.Errorf("%w: speed %.2f", ErrInvalidInput, speed)
	}
	return nil
}
