package domain

// ImageModelKontext tags generations produced by the persona studio edit step.
const ImageModelKontext = "flux-kontext-pro"

// Generation is a persisted generation record as returned by the storage backend.
type Generation struct {
	ID             string         `json:"generation_id"`
	UserID         string         `json:"user_id,omitempty"`
	UserEmail      string         `json:"user_email,omitempty"`
	Prompt         string         `json:"prompt"`
	EnhancedPrompt string         `json:"enhanced_prompt,omitempty"`
	ImageModel     string         `json:"image_model"`
	LLMModel       string         `json:"llm_model,omitempty"`
	ImageURL       string         `json:"image_url"`
	ImageKey       string         `json:"image_key,omitempty"`
	CharacterData  map[string]any `json:"character_data,omitempty"`
	IsPublic       bool           `json:"is_public"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	Status         string         `json:"status,omitempty"`
}

// GenerationPage is one page of a cursor-paginated generation listing.
type GenerationPage struct {
	Items      []Generation `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
	Count      int          `json:"count"`
}

// GenerationStats summarises a user's gallery.
type GenerationStats struct {
	TotalGenerations int    `json:"total_generations"`
	UserID           string `json:"user_id"`
}

// ExcludeImageModel drops generations produced by model.
func ExcludeImageModel(items []Generation, model string) []Generation {
	out := make([]Generation, 0, len(items))
	for _, item := range items {
		if item.ImageModel == model {
			continue
		}
		out = append(out, item)
	}
	return out
}
