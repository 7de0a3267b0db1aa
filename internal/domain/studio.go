package domain

import (
	"encoding/base64"
	"errors"
	"strings"
)

const defaultProductMIME = "image/png"

// PersonaSelection is the chosen AI persona, taken from the user's own
// generations or the public marketplace.
type PersonaSelection struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt,omitempty"`
	Model    string `json:"model,omitempty"`
}

// PersonaFromGeneration converts a gallery record into a selectable persona.
func PersonaFromGeneration(g Generation) PersonaSelection {
	return PersonaSelection{ID: g.ID, ImageURL: g.ImageURL, Prompt: g.Prompt, Model: g.ImageModel}
}

// ProductAsset is an uploaded product image held in memory.
type ProductAsset struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the asset as an inline data URL.
func (p ProductAsset) DataURL() string {
	mime := strings.TrimSpace(p.MIMEType)
	if mime == "" {
		mime = defaultProductMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// ParseDataURL decodes a base64 data URL into a ProductAsset.
func ParseDataURL(ref string) (ProductAsset, error) {
	mime, payload, ok := SplitDataURL(ref)
	if !ok {
		return ProductAsset{}, errors.New("not a base64 data url")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ProductAsset{}, err
	}
	return ProductAsset{MIMEType: mime, Data: data}, nil
}

// SplitDataURL returns the media type and base64 payload of a data URL.
func SplitDataURL(ref string) (mime, payload string, ok bool) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "data:") {
		return "", "", false
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return "", "", false
	}
	mime = strings.TrimSuffix(header, ";base64")
	if mime == "" {
		mime = defaultProductMIME
	}
	return mime, payload, true
}

// RunStatus is the lifecycle state of a studio run.
type RunStatus string

const (
	RunIdle            RunStatus = "idle"
	RunMergingImages   RunStatus = "merging_images"
	RunGeneratingFinal RunStatus = "generating_final"
	RunComplete        RunStatus = "complete"
	RunFailed          RunStatus = "failed"
)

// SavedGeneration identifies the gallery record written after a completed run.
type SavedGeneration struct {
	ID        string `json:"generation_id"`
	ImageURL  string `json:"image_url"`
	CreatedAt string `json:"created_at,omitempty"`
}
