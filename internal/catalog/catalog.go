// Package catalog holds the static voice and product catalogs. Nothing here
// mutates state; the data mirrors what the checkout and synthesis paths sell.
package catalog

import "strings"

type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Gender      string `json:"gender"`
	Language    string `json:"language"`
	Locale      string `json:"locale"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
}

// Filter narrows the voice list; empty fields match everything.
type Filter struct {
	Provider string
	Language string
	Gender   string
}

type openAIVoice struct {
	id          string
	name        string
	gender      string
	description string
}

var openAIVoices = []openAIVoice{
	{"alloy", "Alloy", "neutral", "Balanced and versatile"},
	{"echo", "Echo", "male", "Clear and confident"},
	{"fable", "Fable", "female", "Warm and expressive"},
	{"onyx", "Onyx", "male", "Deep and authoritative"},
	{"nova", "Nova", "female", "Friendly and upbeat"},
	{"shimmer", "Shimmer", "female", "Soft and soothing"},
}

type edgeVoice struct {
	id       string
	name     string
	gender   string
	language string
	locale   string
}

var edgeVoices = []edgeVoice{
	{"en-US-GuyNeural", "Guy", "male", "English", "en-US"},
	{"en-US-JennyNeural", "Jenny", "female", "English", "en-US"},
	{"en-US-AriaNeural", "Aria", "female", "English", "en-US"},
	{"en-GB-SoniaNeural", "Sonia", "female", "English", "en-GB"},
	{"en-GB-RyanNeural", "Ryan", "male", "English", "en-GB"},
	{"zh-CN-XiaoxiaoNeural", "Xiaoxiao", "female", "Chinese", "zh-CN"},
	{"zh-CN-YunxiNeural", "Yunxi", "male", "Chinese", "zh-CN"},
	{"ja-JP-NanamiNeural", "Nanami", "female", "Japanese", "ja-JP"},
	{"ja-JP-KeitaNeural", "Keita", "male", "Japanese", "ja-JP"},
	{"ko-KR-SunHiNeural", "Sun-Hi", "female", "Korean", "ko-KR"},
	{"ko-KR-InJoonNeural", "InJoon", "male", "Korean", "ko-KR"},
	{"de-DE-KatjaNeural", "Katja", "female", "German", "de-DE"},
	{"de-DE-ConradNeural", "Conrad", "male", "German", "de-DE"},
	{"fr-FR-DeniseNeural", "Denise", "female", "French", "fr-FR"},
	{"fr-FR-HenriNeural", "Henri", "male", "French", "fr-FR"},
	{"es-ES-ElviraNeural", "Elvira", "female", "Spanish", "es-ES"},
	{"es-ES-AlvaroNeural", "Alvaro", "male", "Spanish", "es-ES"},
	{"pt-BR-FranciscaNeural", "Francisca", "female", "Portuguese", "pt-BR"},
	{"it-IT-ElsaNeural", "Elsa", "female", "Italian", "it-IT"},
	{"ru-RU-SvetlanaNeural", "Svetlana", "female", "Russian", "ru-RU"},
	{"hi-IN-SwaraNeural", "Swara", "female", "Hindi", "hi-IN"},
	{"ar-SA-ZariyahNeural", "Zariyah", "female", "Arabic", "ar-SA"},
}

// Voices returns the combined voice catalog, optionally filtered.
func Voices(f Filter) []Voice {
	voices := make([]Voice, 0, len(openAIVoices)+len(edgeVoices))
	for _, v := range openAIVoices {
		voices = append(voices, Voice{
			ID:          "openai:" + v.id,
			Name:        v.name,
			Provider:    "OpenAI",
			Gender:      v.gender,
			Language:    "English",
			Locale:      "en-US",
			Description: v.description,
			Available:   true,
		})
	}
	for _, v := range edgeVoices {
		voices = append(voices, Voice{
			ID:          "edge:" + v.id,
			Name:        v.name,
			Provider:    "Edge TTS",
			Gender:      v.gender,
			Language:    v.language,
			Locale:      v.locale,
			Description: v.language + " voice",
			Available:   true,
		})
	}

	filtered := voices[:0]
	for _, v := range voices {
		if f.Provider != "" && !strings.EqualFold(v.Provider, f.Provider) {
			continue
		}
		if f.Language != "" && !strings.Contains(strings.ToLower(v.Language), strings.ToLower(f.Language)) {
			continue
		}
		if f.Gender != "" && !strings.EqualFold(v.Gender, f.Gender) {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered
}

// ProviderCounts tallies voices per provider for the list response.
func ProviderCounts(voices []Voice) map[string]int {
	counts := map[string]int{}
	for _, v := range voices {
		counts[v.Provider]++
	}
	return counts
}

// IsOpenAIVoice reports whether name is in the enumerated OpenAI voice set.
// Edge voices are not enumerated here; the engine validates them itself.
func IsOpenAIVoice(name string) bool {
	for _, v := range openAIVoices {
		if v.id == name {
			return true
		}
	}
	return false
}

type Product struct {
	SKU        string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"tokens"`
	PriceCents int    `json:"-"`
}

var products = []Product{
	{SKU: "basic", Name: "Basic Pack", Credits: 10, PriceCents: 499},
	{SKU: "standard", Name: "Standard Pack", Credits: 30, PriceCents: 999},
	{SKU: "pro", Name: "Pro Pack", Credits: 100, PriceCents: 1999},
}

func Products() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

func ProductBySKU(sku string) (Product, bool) {
	for _, p := range products {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}
