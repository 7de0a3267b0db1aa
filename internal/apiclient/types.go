package apiclient

import "personastudio/internal/domain"

// MergeRequest places two images side by side on a fixed canvas.
type MergeRequest struct {
	LeftURL      string `json:"left_url"`
	RightURL     string `json:"right_url"`
	TargetWidth  int    `json:"target_width"`
	TargetHeight int    `json:"target_height"`
}

type MergeResponse struct {
	Success     bool   `json:"success"`
	MergedImage string `json:"merged_image"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Error       string `json:"error,omitempty"`
}

// EditRequest asks the diffusion editor to transform InputImage per Prompt.
type EditRequest struct {
	InputImage      string `json:"input_image"`
	Prompt          string `json:"prompt"`
	LLMModel        string `json:"llm_model,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	Seed            *int   `json:"seed,omitempty"`
	SafetyTolerance *int   `json:"safety_tolerance,omitempty"`
	OutputFormat    string `json:"output_format,omitempty"`
}

// EditResponse mirrors the edit endpoint. Success must be checked by the caller.
type EditResponse struct {
	Success         bool   `json:"success"`
	Image           string `json:"image"`
	Prompt          string `json:"prompt"`
	OriginalPrompt  string `json:"original_prompt"`
	OptimizedPrompt string `json:"optimized_prompt"`
	Model           string `json:"model"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	RequestID       string `json:"request_id"`
	Error           string `json:"error,omitempty"`
}

type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	LLMModel string `json:"llm_model,omitempty"`
}

type GenerateResponse struct {
	Success        bool   `json:"success"`
	Image          string `json:"image"`
	Prompt         string `json:"prompt"`
	OriginalPrompt string `json:"original_prompt"`
	EnhancedPrompt string `json:"enhanced_prompt"`
	WasEnhanced    bool   `json:"was_enhanced"`
	GenerationID   string `json:"generation_id"`
	Error          string `json:"error,omitempty"`
}

type EnhanceRequest struct {
	Prompt   string `json:"prompt"`
	LLMModel string `json:"llm_model,omitempty"`
}

type EnhanceResponse struct {
	OriginalPrompt string `json:"original_prompt"`
	EnhancedPrompt string `json:"enhanced_prompt"`
}

type OptimizeResponse struct {
	OriginalPrompt  string `json:"original_prompt"`
	OptimizedPrompt string `json:"optimized_prompt"`
}

// CharacterFeatures are the character-builder selections. Empty fields are
// left to the model.
type CharacterFeatures struct {
	Age             string `json:"age,omitempty" yaml:"age,omitempty"`
	Gender          string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Ethnicity       string `json:"ethnicity,omitempty" yaml:"ethnicity,omitempty"`
	BodyType        string `json:"body_type,omitempty" yaml:"body_type,omitempty"`
	HairStyle       string `json:"hair_style,omitempty" yaml:"hair_style,omitempty"`
	HairColor       string `json:"hair_color,omitempty" yaml:"hair_color,omitempty"`
	Expression      string `json:"expression,omitempty" yaml:"expression,omitempty"`
	Personality     string `json:"personality,omitempty" yaml:"personality,omitempty"`
	ConfidenceLevel string `json:"confidence_level,omitempty" yaml:"confidence_level,omitempty"`
	FashionStyle    string `json:"fashion_style,omitempty" yaml:"fashion_style,omitempty"`
	OverallVibe     string `json:"overall_vibe,omitempty" yaml:"overall_vibe,omitempty"`
	Background      string `json:"background,omitempty" yaml:"background,omitempty"`
	LightingStyle   string `json:"lighting_style,omitempty" yaml:"lighting_style,omitempty"`
	PhotoType       string `json:"photo_type,omitempty" yaml:"photo_type,omitempty"`
}

// Pairs returns the non-empty features as ordered key/value pairs.
func (f CharacterFeatures) Pairs() [][2]string {
	all := [][2]string{
		{"age", f.Age},
		{"gender", f.Gender},
		{"ethnicity", f.Ethnicity},
		{"body_type", f.BodyType},
		{"hair_style", f.HairStyle},
		{"hair_color", f.HairColor},
		{"expression", f.Expression},
		{"personality", f.Personality},
		{"confidence_level", f.ConfidenceLevel},
		{"fashion_style", f.FashionStyle},
		{"overall_vibe", f.OverallVibe},
		{"background", f.Background},
		{"lighting_style", f.LightingStyle},
		{"photo_type", f.PhotoType},
	}
	out := all[:0]
	for _, kv := range all {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	return out
}

type CharacterPromptRequest struct {
	BasePrompt        string            `json:"base_prompt"`
	LLMModel          string            `json:"llm_model,omitempty"`
	CharacterFeatures CharacterFeatures `json:"character_features"`
}

type CharacterPromptResponse struct {
	CharacterFeatures CharacterFeatures `json:"character_features"`
	BasePrompt        string            `json:"base_prompt"`
	GeneratedPrompt   string            `json:"generated_prompt"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	AWSBedrockAvailable bool   `json:"aws_bedrock_available"`
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ModelsResponse struct {
	TextModels  []ModelInfo `json:"text_models"`
	ImageModels []ModelInfo `json:"image_models"`
}

type generationListResponse struct {
	Success     bool                `json:"success"`
	Generations []domain.Generation `json:"generations"`
	LastKey     string              `json:"last_key"`
	Count       int                 `json:"count"`
	Error       string              `json:"error,omitempty"`
}
