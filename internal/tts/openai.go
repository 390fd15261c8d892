package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/catalog"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/storage"
)

// OpenAIProvider synthesizes speech through the OpenAI audio API behind the
// llm-proxy and stores the returned MP3 payload.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	store      *storage.Store
	log        *slog.Logger
}

func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration, store *storage.Store, log *slog.Logger) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		store: store,
		log:   log,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) HasVoice(voice string) bool {
	return catalog.IsOpenAIVoice(voice)
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice string, speed float64) (*Artifact, error) {
	payload := map[string]any{
		"model":           "tts-1",
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
		"speed":           speed,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post speech request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.log.Error("openai tts failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		return nil, fmt.Errorf("openai tts: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	url, err := p.store.SaveBytes(ctx, rawBody, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	return &Artifact{URL: url}, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
