package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Weights applied to the ranking breakdown. They are part of the published
// scoring contract and sum to 1.0.
const (
	WeightSkillMatch     = 0.30
	WeightBudgetFit      = 0.25
	WeightClientQuality  = 0.15
	WeightScopeFit       = 0.15
	WeightWinProbability = 0.15
)

// ScoreBreakdown holds the five sub-scores of a ranking, each 0-100.
// Pointers distinguish a missing sub-score from a zero one.
type ScoreBreakdown struct {
	SkillMatch     *float64 `json:"skill_match"`
	BudgetFit      *float64 `json:"budget_fit"`
	ClientQuality  *float64 `json:"client_quality"`
	ScopeFit       *float64 `json:"scope_fit"`
	WinProbability *float64 `json:"win_probability"`
}

// NewScoreBreakdown builds a complete breakdown from five values
func NewScoreBreakdown(skillMatch, budgetFit, clientQuality, scopeFit, winProbability float64) ScoreBreakdown {
	return ScoreBreakdown{
		SkillMatch:     &skillMatch,
		BudgetFit:      &budgetFit,
		ClientQuality:  &clientQuality,
		ScopeFit:       &scopeFit,
		WinProbability: &winProbability,
	}
}

// Validate checks that all five sub-scores are present and within 0-100.
// Partial breakdowns are invalid.
func (b ScoreBreakdown) Validate() error {
	fields := []struct {
		name  string
		value *float64
	}{
		{"skill_match", b.SkillMatch},
		{"budget_fit", b.BudgetFit},
		{"client_quality", b.ClientQuality},
		{"scope_fit", b.ScopeFit},
		{"win_probability", b.WinProbability},
	}
	for _, f := range fields {
		if f.value == nil {
			return fmt.Errorf("breakdown is missing %s", f.name)
		}
		if math.IsNaN(*f.value) || *f.value < 0 || *f.value > 100 {
			return fmt.Errorf("breakdown %s out of range: %v", f.name, *f.value)
		}
	}
	return nil
}

// Weighted returns the overall score: the rounded weighted sum of the
// sub-scores. Callers must Validate first.
func (b ScoreBreakdown) Weighted() int {
	sum := *b.SkillMatch*WeightSkillMatch +
		*b.BudgetFit*WeightBudgetFit +
		*b.ClientQuality*WeightClientQuality +
		*b.ScopeFit*WeightScopeFit +
		*b.WinProbability*WeightWinProbability
	return int(math.Round(sum))
}

// Ranking is an immutable, run-scoped match score between a profile and a job
type Ranking struct {
	ID         uuid.UUID      `json:"id"`
	JobID      uuid.UUID      `json:"job_id"`
	TeamID     uuid.UUID      `json:"team_id"`
	AgentRunID uuid.UUID      `json:"agent_run_id"`
	Score      int            `json:"score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Reasoning  string         `json:"reasoning"`
	Tightness  *float64       `json:"tightness,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
