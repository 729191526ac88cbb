package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the freelancer profile row
type Profile struct {
	UserID             uuid.UUID  `json:"user_id"`
	FullName           string     `json:"full_name,omitempty"`
	Headline           string     `json:"headline,omitempty"`
	About              string     `json:"about,omitempty"`
	Embedding          []float32  `json:"embedding,omitempty"`
	EmbeddingUpdatedAt *time.Time `json:"embedding_updated_at,omitempty"`
}

// Skill is a profile skill with optional years of experience
type Skill struct {
	Name  string   `json:"name"`
	Years *float64 `json:"years,omitempty"`
}

// Experience is a single work history entry
type Experience struct {
	Title       string     `json:"title,omitempty"`
	Company     string     `json:"company,omitempty"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// Preference holds rate preferences and the ranking tightness parameter
type Preference struct {
	HourlyRateMin *float64 `json:"hourly_rate_min,omitempty"`
	HourlyRateMax *float64 `json:"hourly_rate_max,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Tightness     *float64 `json:"tightness,omitempty"`
}

// ProfileBundle groups every row the context builder reads for one user.
// Profile and Preference are nil when the user has no such row.
type ProfileBundle struct {
	Profile     *Profile     `json:"profile,omitempty"`
	Skills      []Skill      `json:"skills,omitempty"`
	Experiences []Experience `json:"experiences,omitempty"`
	Preference  *Preference  `json:"preference,omitempty"`
}

// Tightness returns the user's tightness preference, if any
func (b *ProfileBundle) Tightness() *float64 {
	if b == nil || b.Preference == nil {
		return nil
	}
	return b.Preference.Tightness
}
