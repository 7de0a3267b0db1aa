package studio

import (
	"strings"
	"time"

	"personastudio/internal/domain"
)

// ProductSummary describes the held product without its bytes.
type ProductSummary struct {
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

// Snapshot is a point-in-time copy of a sequence's state.
type Snapshot struct {
	Run         int                      `json:"run"`
	Status      domain.RunStatus         `json:"status"`
	Persona     *domain.PersonaSelection `json:"persona,omitempty"`
	Product     *ProductSummary          `json:"product,omitempty"`
	Prompt      string                   `json:"prompt"`
	MergedImage string                   `json:"merged_image,omitempty"`
	FinalImage  string                   `json:"final_image,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Saved       *domain.SavedGeneration  `json:"saved,omitempty"`
	Running     bool                     `json:"in_flight"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// InFlight reports whether a remote step is underway.
func (s Snapshot) InFlight() bool {
	return s.Status == domain.RunMergingImages || s.Status == domain.RunGeneratingFinal
}

// HasStarted is false only before the first start or after a reset.
func (s Snapshot) HasStarted() bool {
	return s.Status != domain.RunIdle
}

// CanStart mirrors the start preconditions so callers can enable or disable
// the trigger without attempting it.
func (s Snapshot) CanStart() bool {
	if s.Running {
		return false
	}
	if s.Status != domain.RunIdle && s.Status != domain.RunFailed {
		return false
	}
	return s.Persona != nil && s.Product != nil && strings.TrimSpace(s.Prompt) != ""
}

// StepLabel is a short progress caption for the current step.
func (s Snapshot) StepLabel() string {
	switch s.Status {
	case domain.RunMergingImages:
		return "Merging images..."
	case domain.RunGeneratingFinal:
		return "Generating with FLUX..."
	case domain.RunComplete:
		return "Complete"
	case domain.RunFailed:
		return "Failed"
	default:
		return ""
	}
}
