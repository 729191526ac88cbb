// Package types provides type definitions for structured data used throughout the job-ranker system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Budget types
const (
	BudgetHourly = "hourly"
	BudgetFixed  = "fixed"
)

// Seniority levels produced by enrichment
const (
	SeniorityJunior = "junior"
	SeniorityMid    = "mid"
	SenioritySenior = "senior"
)

// Job represents a scraped job posting in a team's pool
type Job struct {
	ID              uuid.UUID `json:"id"`
	TeamID          uuid.UUID `json:"team_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Skills          []string  `json:"skills,omitempty"`
	Seniority       *string   `json:"seniority,omitempty"`
	BudgetType      string    `json:"budget_type,omitempty"`
	HourlyMin       *float64  `json:"hourly_min,omitempty"`
	HourlyMax       *float64  `json:"hourly_max,omitempty"`
	FixedMin        *float64  `json:"fixed_min,omitempty"`
	FixedMax        *float64  `json:"fixed_max,omitempty"`
	ClientRating    *float64  `json:"client_rating,omitempty"`
	ClientHires     *int      `json:"client_hires,omitempty"`
	PaymentVerified bool      `json:"payment_verified"`
	Embedding       []float32 `json:"embedding,omitempty"`

	AISeniority     *string `json:"ai_seniority,omitempty"`
	AISummary       *string `json:"ai_summary,omitempty"`
	AIDescriptionMD *string `json:"ai_description_md,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// JobEnrichment is the set of AI-derived fields written back onto a job
type JobEnrichment struct {
	Seniority           string `json:"ai_seniority"`
	Summary             string `json:"ai_summary"`
	DescriptionMarkdown string `json:"ai_description_md"`
}

// JobMatch is one row returned by the vector similarity search
type JobMatch struct {
	JobID      uuid.UUID `json:"job_id"`
	Similarity float64   `json:"similarity"`
}

// IsValidSeniority reports whether s is one of the enrichment seniority levels
func IsValidSeniority(s string) bool {
	switch s {
	case SeniorityJunior, SeniorityMid, SenioritySenior:
		return true
	}
	return false
}

// EmbeddingText returns the text embedded for the job: title plus the first
// maxChars characters of the description.
func (j *Job) EmbeddingText(maxChars int) string {
	return j.Title + "\n" + TruncateRunes(j.Description, maxChars)
}

// TruncatedDescription returns at most maxChars characters of the description.
func (j *Job) TruncatedDescription(maxChars int) string {
	return TruncateRunes(j.Description, maxChars)
}

// IsEnriched reports whether all AI-derived fields are populated
func (j *Job) IsEnriched() bool {
	return j.AISeniority != nil && j.AISummary != nil && j.AIDescriptionMD != nil
}

// BudgetSummary formats the budget shape for prompts
func (j *Job) BudgetSummary() string {
	switch j.BudgetType {
	case BudgetHourly:
		if r := formatRange(j.HourlyMin, j.HourlyMax); r != "" {
			return "Hourly " + r + "/hr"
		}
		return "Hourly (rate not specified)"
	case BudgetFixed:
		if r := formatRange(j.FixedMin, j.FixedMax); r != "" {
			return "Fixed " + r
		}
		return "Fixed (amount not specified)"
	}
	return "Not specified"
}

// ClientSummary formats the client reputation signals for prompts
func (j *Job) ClientSummary() string {
	var parts []string
	if j.ClientRating != nil {
		parts = append(parts, fmt.Sprintf("rating %.1f", *j.ClientRating))
	}
	if j.ClientHires != nil {
		parts = append(parts, fmt.Sprintf("%d hires", *j.ClientHires))
	}
	if j.PaymentVerified {
		parts = append(parts, "payment verified")
	} else {
		parts = append(parts, "payment not verified")
	}
	return strings.Join(parts, ", ")
}

func formatRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("$%s-$%s", formatAmount(*lo), formatAmount(*hi))
	case lo != nil:
		return fmt.Sprintf("from $%s", formatAmount(*lo))
	case hi != nil:
		return fmt.Sprintf("up to $%s", formatAmount(*hi))
	}
	return ""
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// TruncateRunes returns at most n runes of s
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
