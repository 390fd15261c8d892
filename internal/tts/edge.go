package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/catalog"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/storage"
)

// EdgeProvider drives the free edge-tts engine as a subprocess. Success is
// judged by whether the engine produced a non-empty output file.
type EdgeProvider struct {
	command string
	store   *storage.Store
	log     *slog.Logger

	mu     sync.Mutex
	voices []catalog.Voice
}

func NewEdgeProvider(command string, store *storage.Store, log *slog.Logger) *EdgeProvider {
	if command == "" {
		command = "edge-tts"
	}
	return &EdgeProvider{command: command, store: store, log: log}
}

func (p *EdgeProvider) Name() string { return "edge" }

// HasVoice accepts any non-empty voice; the engine carries its own catalog and
// rejects unknown voices at synthesis time.
func (p *EdgeProvider) HasVoice(voice string) bool {
	return voice != ""
}

func (p *EdgeProvider) Synthesize(ctx context.Context, text, voice string, speed float64) (*Artifact, error) {
	filePath, name := p.store.NewFile("audio/mpeg")

	cmd := exec.CommandContext(ctx, p.command,
		"--text", text,
		"--voice", voice,
		"--rate", rateFromSpeed(speed),
		"--write-media", filePath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		p.log.Error("edge-tts failed", "voice", voice, "err", err, "output", truncateBody(output))
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("edge-tts: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("edge-tts produced no output for voice %s", voice)
	}

	url, err := p.store.Publish(ctx, name, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("publish audio: %w", err)
	}
	return &Artifact{URL: url}, nil
}

// ListVoices returns the engine's complete voice catalog, several hundred
// entries across locales. The engine is asked once; the parsed list is cached
// for the process lifetime since the catalog only changes between releases.
func (p *EdgeProvider) ListVoices(ctx context.Context) ([]catalog.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.voices != nil {
		return p.voices, nil
	}

	output, err := exec.CommandContext(ctx, p.command, "--list-voices").Output()
	if err != nil {
		return nil, fmt.Errorf("edge-tts list voices: %w", err)
	}
	voices := parseEdgeVoiceList(output)
	if len(voices) == 0 {
		return nil, fmt.Errorf("edge-tts returned no voices")
	}
	p.voices = voices
	return voices, nil
}

// parseEdgeVoiceList reads the engine's tabular --list-voices output. Each data
// row starts with the voice short name (e.g. en-US-GuyNeural) followed by the
// gender; header and separator rows carry no locale-shaped first column.
func parseEdgeVoiceList(output []byte) []catalog.Voice {
	var voices []catalog.Voice
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		locale := localeFromVoiceName(name)
		if locale == "" {
			continue
		}
		voices = append(voices, catalog.Voice{
			ID:        "edge:" + name,
			Name:      friendlyVoiceName(name),
			Provider:  "Edge TTS",
			Gender:    strings.ToLower(fields[1]),
			Language:  strings.SplitN(locale, "-", 2)[0],
			Locale:    locale,
			Available: true,
		})
	}
	return voices
}

func localeFromVoiceName(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 3 || len(parts[0]) < 2 || len(parts[1]) < 2 {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

// friendlyVoiceName extracts the display name from the short name, e.g.
// "en-US-GuyNeural" -> "Guy".
func friendlyVoiceName(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 3 {
		return name
	}
	return strings.TrimSuffix(parts[2], "Neural")
}

// rateFromSpeed converts the 0.5..2.0 speed multiplier into the engine's
// signed percentage form, e.g. 1.25 -> "+25%".
func rateFromSpeed(speed float64) string {
	return fmt.Sprintf("%+d%%", int((speed-1)*100))
}
