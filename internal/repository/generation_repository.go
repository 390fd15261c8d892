package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Record(ctx context.Context, gen *models.VoiceGeneration) error {
	const query = `
INSERT INTO voice_generations (device_id, voice_id, provider, text_length, audio_url)
VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, gen.DeviceID, gen.VoiceID, gen.Provider, gen.TextLength, gen.AudioURL); err != nil {
		return fmt.Errorf("insert voice generation: %w", err)
	}
	return nil
}

func (r *GenerationRepository) CountForDevice(ctx context.Context, deviceID string) (int, error) {
	const query = `SELECT COUNT(*) FROM voice_generations WHERE device_id = ?`
	row := r.db.QueryRowContext(ctx, query, deviceID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count voice generations: %w", err)
	}
	return count, nil
}
