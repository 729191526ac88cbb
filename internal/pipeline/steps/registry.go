// Package steps defines the phases of a pipeline run and the dependencies
// between them.
package steps

import (
	"fmt"
)

// Phase names, recorded on the agent run as output.phase
const (
	PhaseQueued          = "queued"
	PhaseContextBuilt    = "context_built"
	PhaseProfileEmbedded = "profile_embedded"
	PhaseJobsEmbedded    = "jobs_embedded"
	PhaseShortlisted     = "shortlisted"
	PhaseEnriched        = "enriched"
	PhaseRanked          = "ranked"
	PhaseFinalized       = "finalized"
	PhaseFailed          = "failed"
)

// Phase categories
const (
	CategoryProfile   = "profile"
	CategoryEmbedding = "embedding"
	CategoryMatching  = "matching"
	CategoryAI        = "ai"
	CategoryLifecycle = "lifecycle"
)

// StepDefinition defines metadata for a pipeline phase
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
}

// Order is the sequence in which phases are reached on a full run.
var Order = []string{
	PhaseContextBuilt,
	PhaseProfileEmbedded,
	PhaseJobsEmbedded,
	PhaseShortlisted,
	PhaseEnriched,
	PhaseRanked,
	PhaseFinalized,
}

// StepRegistry holds all phase definitions
var StepRegistry = map[string]StepDefinition{
	PhaseContextBuilt: {
		Name:         PhaseContextBuilt,
		Category:     CategoryProfile,
		Dependencies: []string{},
	},
	PhaseProfileEmbedded: {
		Name:         PhaseProfileEmbedded,
		Category:     CategoryEmbedding,
		Dependencies: []string{PhaseContextBuilt},
	},
	PhaseJobsEmbedded: {
		Name:         PhaseJobsEmbedded,
		Category:     CategoryEmbedding,
		Dependencies: []string{PhaseProfileEmbedded},
	},
	PhaseShortlisted: {
		Name:         PhaseShortlisted,
		Category:     CategoryMatching,
		Dependencies: []string{PhaseProfileEmbedded, PhaseJobsEmbedded},
	},
	PhaseEnriched: {
		Name:         PhaseEnriched,
		Category:     CategoryAI,
		Dependencies: []string{PhaseShortlisted},
	},
	PhaseRanked: {
		Name:         PhaseRanked,
		Category:     CategoryAI,
		Dependencies: []string{PhaseContextBuilt, PhaseShortlisted},
	},
	PhaseFinalized: {
		Name:         PhaseFinalized,
		Category:     CategoryLifecycle,
		Dependencies: []string{PhaseShortlisted},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot enter %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every required dependency of step is in completed.
func ValidateDependencies(completed map[string]bool, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// IsTerminal reports whether phase ends a run.
func IsTerminal(phase string) bool {
	return phase == PhaseFinalized || phase == PhaseFailed
}
