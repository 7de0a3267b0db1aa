package studio

import "strings"

// CompositeSuffix tells the editor how to combine the side-by-side canvas.
const CompositeSuffix = "Make the person on the left wear or use the item on the right. " +
	"Create a cohesive, natural-looking image where the AI model is showcasing the product."

// BuildInstruction appends the compositing directive to the user's prompt.
func BuildInstruction(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return CompositeSuffix
	}
	return prompt + ". " + CompositeSuffix
}

// imagePayload strips a data URL down to its base64 payload. References that
// are not data URLs pass through unchanged.
func imagePayload(ref string) string {
	if !strings.HasPrefix(ref, "data:") {
		return ref
	}
	if _, payload, ok := strings.Cut(ref, ","); ok {
		return payload
	}
	return ref
}
