package domain

import "strings"

// User is the signed-in identity as seen by the studio.
type User struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// UnlimitedGenerations marks Privileges.MaxGenerationsPerMonth as unbounded.
const UnlimitedGenerations = -1

// Privileges describes what an account is allowed to do.
type Privileges struct {
	IsJudge                bool `json:"is_judge"`
	UnlimitedGenerations   bool `json:"unlimited_generations"`
	PriorityProcessing     bool `json:"priority_processing"`
	AccessToAllModels      bool `json:"access_to_all_models"`
	MaxGenerationsPerMonth int  `json:"max_generations_per_month"`
	MaxResolution          int  `json:"max_resolution"`
}

// StandardPrivileges is the default allowance for regular accounts.
func StandardPrivileges() Privileges {
	return Privileges{MaxGenerationsPerMonth: 5, MaxResolution: 512}
}

// ElevatedPrivileges is the allowance for judges and other allow-listed accounts.
func ElevatedPrivileges() Privileges {
	return Privileges{
		IsJudge:                true,
		UnlimitedGenerations:   true,
		PriorityProcessing:     true,
		AccessToAllModels:      true,
		MaxGenerationsPerMonth: UnlimitedGenerations,
		MaxResolution:          1024,
	}
}

// ClampResolution limits a requested edge length to the account maximum.
func (p Privileges) ClampResolution(size int) int {
	if size <= 0 || p.MaxResolution <= 0 {
		return p.MaxResolution
	}
	if size > p.MaxResolution {
		return p.MaxResolution
	}
	return size
}

// NormalizeEmail lowercases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
