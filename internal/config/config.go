package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and supporting services.
type Config struct {
	AppName        string
	Debug          bool
	ListenAddr     string
	MySQLDSN       string
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Hosted TTS provider (OpenAI via llm-proxy).
	LLMProxyURL string
	LLMProxyKey string

	// Local TTS provider.
	EdgeTTSCommand string

	// Creem payment gateway.
	CreemBaseURL       string
	CreemAPIKey        string
	CreemWebhookSecret string
	CreemProductIDs    map[string]string

	// Generated audio storage.
	AudioDir        string
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// S3Enabled reports whether generated audio should be published to object storage.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	loadEnvFile()

	const defaultCreemBaseURL = "https://api.creem.io"
	const defaultLLMProxyURL = "https://llm-proxy.densematrix.ai"

	cfg := Config{
		AppName:        getEnv("APP_NAME", "AI Voiceover SaaS"),
		Debug:          getBool("DEBUG", false),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8000"),
		RequestTimeout: time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		LLMProxyURL:    normalizeBaseURL(getEnv("LLM_PROXY_URL", defaultLLMProxyURL), defaultLLMProxyURL),
		LLMProxyKey:    os.Getenv("LLM_PROXY_KEY"),
		EdgeTTSCommand: getEnv("EDGE_TTS_COMMAND", "edge-tts"),

		CreemBaseURL:       normalizeBaseURL(getEnv("CREEM_BASE_URL", defaultCreemBaseURL), defaultCreemBaseURL),
		CreemAPIKey:        os.Getenv("CREEM_API_KEY"),
		CreemWebhookSecret: os.Getenv("CREEM_WEBHOOK_SECRET"),

		AudioDir:        getEnv("AUDIO_DIR", "audio_output"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:        getEnv("S3_PREFIX", "audio"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")

	productIDs, err := parseProductIDs(getEnv("CREEM_PRODUCT_IDS", "{}"))
	if err != nil {
		return Config{}, err
	}
	cfg.CreemProductIDs = productIDs

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.S3Enabled() {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// parseProductIDs converts the CREEM_PRODUCT_IDS JSON blob (sku -> gateway product id)
// into a typed map once at startup.
func parseProductIDs(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}
	ids := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("parse CREEM_PRODUCT_IDS: %w", err)
	}
	return ids, nil
}

// normalizeBaseURL makes sure configured endpoints carry a scheme and no trailing slash.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}
	return strings.TrimRight(parsed.String(), "/")
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err == nil {
			return
		}
	}
}
