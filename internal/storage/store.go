// Package storage persists generated audio artifacts. Files always land in a
// local directory (served under /audio/); when S3 is configured they are also
// published to object storage and the public URL is returned instead.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type Config struct {
	Dir           string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

type Store struct {
	cfg    Config
	client *s3.Client
}

func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = "audio_output"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	store := &Store{cfg: cfg}
	if cfg.Bucket == "" {
		return store, nil
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "audio"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	store.cfg = cfg
	store.client = s3.New(options)
	return store, nil
}

// Dir is the local directory artifacts are written into.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// NewFile allocates a fresh artifact filename and its absolute path, for
// engines that write their output to disk themselves.
func (s *Store) NewFile(contentType string) (string, string) {
	name := uuid.NewString() + extensionFromContentType(contentType)
	return filepath.Join(s.cfg.Dir, name), name
}

// SaveBytes writes an audio payload and returns its public URL.
func (s *Store) SaveBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no audio data to save")
	}

	filePath, name := s.NewFile(contentType)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return s.Publish(ctx, name, contentType)
}

// Publish resolves the public URL of a locally written artifact, uploading it
// to object storage when configured.
func (s *Store) Publish(ctx context.Context, name, contentType string) (string, error) {
	if s.client == nil {
		return "/audio/" + name, nil
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.Dir, name))
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	key := s.objectKey(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func (s *Store) objectKey(name string) string {
	now := time.Now().UTC()
	prefix := strings.Trim(s.cfg.Prefix, "/")
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), name)
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
