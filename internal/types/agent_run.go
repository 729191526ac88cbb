package types

import (
	"time"

	"github.com/google/uuid"
)

// Agent run statuses
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunMetrics are the aggregate counts recorded on an agent run
type RunMetrics struct {
	JobsEmbedded    int `json:"jobs_embedded"`
	JobsShortlisted int `json:"jobs_shortlisted"`
	JobsEnriched    int `json:"jobs_enriched"`
	JobsRanked      int `json:"jobs_ranked"`
}

// RunOutput is the free-form output object stored on the agent run
type RunOutput struct {
	Phase string `json:"phase,omitempty"`
	RunMetrics
}

// AgentRun tracks one pipeline execution
type AgentRun struct {
	ID         uuid.UUID  `json:"id"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Output     *RunOutput `json:"output,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// AgentRunUpdate is a field-scoped patch; nil fields are left untouched
type AgentRunUpdate struct {
	Status     string     `json:"status,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Output     *RunOutput `json:"output,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// IsTerminalStatus reports whether status ends a run's lifecycle
func IsTerminalStatus(status string) bool {
	return status == RunStatusSucceeded || status == RunStatusFailed
}
