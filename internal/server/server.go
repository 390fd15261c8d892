// Package server exposes the HTTP API: synthesis, voices, payments, credit
// status, metrics and generated-audio serving.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/catalog"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/ledger"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/payment"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/tts"
)

const deviceHeader = "X-Device-Id"

// Dispatcher is the synthesis entrypoint the server routes to.
type Dispatcher interface {
	Dispatch(ctx context.Context, deviceID, text, voiceSelector string, speed float64) (*tts.Result, error)
	Preview(ctx context.Context, text, voiceSelector string, speed float64) (*tts.Result, error)
}

// Entitlements is the read-only ledger surface for the status endpoint.
type Entitlements interface {
	Status(ctx context.Context, deviceID string) (ledger.Status, error)
}

// Payments handles checkout creation and webhook reconciliation.
type Payments interface {
	CreateCheckout(ctx context.Context, sku, deviceID, successURL, cancelURL string) (*payment.CheckoutResult, error)
	VerifySignature(payload []byte, signature string) bool
	ApplyEvent(ctx context.Context, event *payment.Event) error
}

// VoiceLister exposes the local engine's full voice catalog.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]catalog.Voice, error)
}

type Server struct {
	addr       string
	appName    string
	log        *slog.Logger
	dispatcher Dispatcher
	ledger     Entitlements
	payments   Payments
	edgeVoices VoiceLister
	audioDir   string
	gatherer   prometheus.Gatherer
	router     *chi.Mux
}

func New(addr, appName string, log *slog.Logger, dispatcher Dispatcher, entitlements Entitlements, payments Payments, edgeVoices VoiceLister, audioDir string, corsOrigins []string, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", deviceHeader},
		MaxAge:         300,
	}))

	s := &Server{
		addr:       addr,
		appName:    appName,
		log:        log,
		dispatcher: dispatcher,
		ledger:     entitlements,
		payments:   payments,
		edgeVoices: edgeVoices,
		audioDir:   audioDir,
		gatherer:   gatherer,
		router:     r,
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/audio/*", http.StripPrefix("/audio/", http.FileServer(http.Dir(audioDir))))

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/tts/generate", s.handleGenerate)
		api.Post("/tts/preview", s.handlePreview)
		api.Get("/voices/", s.handleListVoices)
		api.Get("/voices/all", s.handleAllEdgeVoices)
		api.Get("/tokens/status", s.handleCreditStatus)
		api.Post("/payment/checkout", s.handleCheckout)
		api.Post("/payment/webhook", s.handleWebhook)
		api.Get("/payment/products", s.handleListProducts)
	})

	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to " + s.appName + " API",
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": s.appName,
	})
}

type ttsRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

type ttsResponse struct {
	Success        bool   `json:"success"`
	AudioURL       string `json:"audio_url,omitempty"`
	Provider       string `json:"provider"`
	VoiceID        string `json:"voice_id"`
	CharactersUsed int    `json:"characters_used"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get(deviceHeader)
	if deviceID == "" {
		s.detailError(w, http.StatusUnprocessableEntity, "X-Device-Id header required")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.detailError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	result, err := s.dispatcher.Dispatch(r.Context(), deviceID, req.Text, req.VoiceID, req.Speed)
	if err != nil {
		s.dispatchError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ttsResponse{
		Success:        true,
		AudioURL:       result.AudioURL,
		Provider:       result.Provider,
		VoiceID:        result.Voice,
		CharactersUsed: result.CharactersUsed,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.detailError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	result, err := s.dispatcher.Preview(r.Context(), req.Text, req.VoiceID, req.Speed)
	if err != nil {
		s.dispatchError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"audio_url":  result.AudioURL,
		"is_preview": true,
	})
}

// dispatchError maps the synthesis failure taxonomy onto distinct status codes.
func (s *Server) dispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tts.ErrMalformedSelector),
		errors.Is(err, tts.ErrUnknownProvider),
		errors.Is(err, tts.ErrUnknownVoice):
		s.detailError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tts.ErrInvalidInput):
		s.detailError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, tts.ErrInsufficientCredit):
		s.detailError(w, http.StatusPaymentRequired, "No tokens remaining. Please purchase more to continue.")
	case errors.Is(err, tts.ErrSynthesisFailed):
		s.detailError(w, http.StatusInternalServerError, "Failed to generate audio. Please try again.")
	default:
		s.log.Error("dispatch failed", "err", err)
		s.detailError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	voices := catalog.Voices(catalog.Filter{
		Provider: query.Get("provider"),
		Language: query.Get("language"),
		Gender:   query.Get("gender"),
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"voices":    voices,
		"total":     len(voices),
		"providers": catalog.ProviderCounts(voices),
	})
}

// handleAllEdgeVoices serves the engine's complete catalog, falling back to
// the curated set when the engine cannot be queried.
func (s *Server) handleAllEdgeVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.edgeVoices.ListVoices(r.Context())
	if err != nil {
		s.log.Warn("edge voice listing failed, serving curated set", "err", err)
		voices = catalog.Voices(catalog.Filter{Provider: "Edge TTS"})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"voices": voices,
		"total":  len(voices),
	})
}

func (s *Server) handleCreditStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get(deviceHeader)
	if deviceID == "" {
		s.detailError(w, http.StatusUnprocessableEntity, "X-Device-Id header required")
		return
	}

	status, err := s.ledger.Status(r.Context(), deviceID)
	if err != nil {
		s.log.Error("credit status failed", "err", err)
		s.detailError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

type checkoutRequest struct {
	ProductID  string `json:"product_id"`
	DeviceID   string `json:"device_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.detailError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.DeviceID == "" || req.SuccessURL == "" {
		s.detailError(w, http.StatusUnprocessableEntity, "product_id, device_id and success_url required")
		return
	}

	result, err := s.payments.CreateCheckout(r.Context(), req.ProductID, req.DeviceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownProduct):
			s.detailError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, payment.ErrProductNotConfigured):
			s.detailError(w, http.StatusInternalServerError, "Product not configured in Creem")
		default:
			s.log.Error("checkout failed", "err", err)
			s.detailError(w, http.StatusInternalServerError, "Failed to create checkout")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.detailError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !s.payments.VerifySignature(body, r.Header.Get("creem-signature")) {
		s.detailError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		s.detailError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := s.payments.ApplyEvent(r.Context(), event); err != nil {
		s.log.Error("webhook apply failed", "err", err)
		s.detailError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	type productView struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Tokens         int     `json:"tokens"`
		Price          float64 `json:"price"`
		PriceFormatted string  `json:"price_formatted"`
	}
	var views []productView
	for _, p := range catalog.Products() {
		views = append(views, productView{
			ID:             p.SKU,
			Name:           p.Name,
			Tokens:         p.Credits,
			Price:          float64(p.PriceCents) / 100,
			PriceFormatted: fmt.Sprintf("$%.2f", float64(p.PriceCents)/100),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) detailError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
