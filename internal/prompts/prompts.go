// Package prompts holds the prompt helpers that work without the remote API:
// per-model length limits and the local fallbacks used when a remote prompt
// call fails.
package prompts

import (
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"personastudio/internal/apiclient"
)

// DefaultLimit applies to image models without a known limit.
const DefaultLimit = 512

// DefaultPersonaPrompt replaces an empty prompt when enhancing locally.
const DefaultPersonaPrompt = "A charismatic AI influencer, photorealistic, professional lighting, modern aesthetic"

var modelLimits = map[string]int{
	"titan-g1":    512,
	"titan-g2":    512,
	"nova-canvas": 1000,
	"sdxl":        1000,
}

var surprisePrompts = []string{
	"A confident tech entrepreneur in a modern office setting, showcasing the latest innovation",
	"An elegant fashion model at a luxury rooftop party, golden hour lighting",
	"A fitness influencer in a minimalist gym, natural morning light streaming through windows",
	"A creative artist in a bright studio space, surrounded by colorful artwork",
	"A professional chef in a modern kitchen, artfully presenting a gourmet dish",
	"A travel blogger at a scenic overlook, casual adventure outfit with mountain backdrop",
	"A lifestyle influencer in a cozy coffee shop, laptop open, warm ambient lighting",
	"A sustainability advocate in a urban garden, surrounded by lush plants and greenery",
}

// PersonaIdeas are short persona starters offered by the studio.
var PersonaIdeas = []string{
	"A confident lifestyle influencer in their 20s with warm smile",
	"Tech-savvy influencer with modern style and approachable personality",
	"Fashion-forward influencer with creative expression and bold style",
	"Fitness enthusiast influencer with energetic and motivating presence",
	"Travel blogger influencer with adventurous spirit and friendly demeanor",
	"Business mentor influencer with professional appearance and wisdom",
}

var enhancementWords = []string{
	"photorealistic", "professional lighting", "high quality", "detailed",
	"cinematic", "portrait style", "modern aesthetic", "clean background",
	"studio lighting", "sharp focus", "vibrant colors",
}

// Picker returns a number in [0, n). Nil means math/rand/v2.
type Picker func(n int) int

func (p Picker) pick(n int) int {
	if p == nil {
		return rand.IntN(n)
	}
	return p(n)
}

// CharacterLimit is the maximum prompt length accepted by model.
func CharacterLimit(model string) int {
	if n, ok := modelLimits[strings.ToLower(strings.TrimSpace(model))]; ok {
		return n
	}
	return DefaultLimit
}

// Truncate cuts prompt to at most limit bytes, backing off to the last space
// so no word is split.
func Truncate(prompt string, limit int) string {
	if limit <= 0 || len(prompt) <= limit {
		return prompt
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(prompt[cut]) {
		cut--
	}
	head := prompt[:cut]
	if i := strings.LastIndexByte(head, ' '); i > 0 {
		head = head[:i]
	}
	return strings.TrimRight(head, " ")
}

// ForModel truncates prompt to the limit of model.
func ForModel(prompt, model string) string {
	return Truncate(prompt, CharacterLimit(model))
}

func Surprise(p Picker) string {
	return surprisePrompts[p.pick(len(surprisePrompts))]
}

func PersonaIdea(p Picker) string {
	return PersonaIdeas[p.pick(len(PersonaIdeas))]
}

// LocalEnhance appends three distinct style keywords to prompt. An empty
// prompt becomes DefaultPersonaPrompt.
func LocalEnhance(prompt string, p Picker) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return DefaultPersonaPrompt
	}
	words := append([]string(nil), enhancementWords...)
	picked := make([]string, 0, 3)
	for len(picked) < 3 && len(words) > 0 {
		i := p.pick(len(words))
		picked = append(picked, words[i])
		words = append(words[:i], words[i+1:]...)
	}
	return prompt + ", " + strings.Join(picked, ", ")
}

// FeatureFallback folds the selected character features into base when the
// remote character prompt is unavailable, e.g. "base, Age: 26-35, Hair Style: Long".
func FeatureFallback(base string, features apiclient.CharacterFeatures) string {
	title := cases.Title(language.English)
	parts := make([]string, 0, 14)
	for _, kv := range features.Pairs() {
		label := title.String(strings.ReplaceAll(kv[0], "_", " "))
		parts = append(parts, label+": "+kv[1])
	}
	base = strings.TrimSpace(base)
	if len(parts) == 0 {
		return base
	}
	if base == "" {
		return strings.Join(parts, ", ")
	}
	return base + ", " + strings.Join(parts, ", ")
}
