// Package ranking scores shortlisted jobs against a freelancer profile with
// one structured completion per batch.
package ranking

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-ranker/internal/llm"
	"github.com/jonathan/job-ranker/internal/prompts"
	"github.com/jonathan/job-ranker/internal/schemas"
	"github.com/jonathan/job-ranker/internal/types"
)

// DefaultDescriptionMax is the description length sent per job.
const DefaultDescriptionMax = 1500

// scoreTolerance is how far the model's own overall score may drift from the
// weighted breakdown before it is reported.
const scoreTolerance = 1.0

// Request is one ranking batch.
type Request struct {
	ProfileContext string
	Tightness      *float64
	Jobs           []types.Job
	DescriptionMax int
}

// Result is the ranking of a single job.
type Result struct {
	JobID      uuid.UUID
	ModelScore float64
	Breakdown  types.ScoreBreakdown
	Reasoning  string
}

// Score is the stored overall score: the weighted breakdown, never the model's own figure.
func (r Result) Score() int {
	return r.Breakdown.Weighted()
}

// ScoreDiverges reports whether the model's overall score is more than one
// point away from the weighted breakdown.
func (r Result) ScoreDiverges() bool {
	return math.Abs(r.ModelScore-float64(r.Score())) > scoreTolerance
}

// Ranking builds the record to insert for this result.
func (r Result) Ranking(teamID, agentRunID uuid.UUID, tightness *float64) *types.Ranking {
	return &types.Ranking{
		JobID:      r.JobID,
		TeamID:     teamID,
		AgentRunID: agentRunID,
		Score:      r.Score(),
		Breakdown:  r.Breakdown,
		Reasoning:  r.Reasoning,
		Tightness:  tightness,
	}
}

// Batch is the parsed outcome of one completion. Ignored holds entries that
// were dropped (unknown or repeated job ids, invalid breakdowns) with a reason.
type Batch struct {
	Results []Result
	Ignored []string
}

type rankingEntry struct {
	JobID          string  `json:"job_id"`
	Score          float64 `json:"score"`
	SkillMatch     float64 `json:"skill_match"`
	BudgetFit      float64 `json:"budget_fit"`
	ClientQuality  float64 `json:"client_quality"`
	ScopeFit       float64 `json:"scope_fit"`
	WinProbability float64 `json:"win_probability"`
	Reasoning      string  `json:"reasoning"`
}

type batchResponse struct {
	Rankings []rankingEntry `json:"rankings"`
}

// RankBatch sends one completion for the batch. An error means no job in the
// batch was ranked; the caller decides whether to continue.
func RankBatch(ctx context.Context, completer llm.Completer, req Request) (*Batch, error) {
	if len(req.Jobs) == 0 {
		return &Batch{}, nil
	}

	schema, err := schemas.Get(schemas.RankingBatch)
	if err != nil {
		return nil, err
	}

	system, err := prompts.Get("ranking.json", "system")
	if err != nil {
		return nil, err
	}
	user, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	var resp batchResponse
	if err := completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schema,
	}, &resp); err != nil {
		return nil, fmt.Errorf("ranking completion failed: %w", err)
	}

	return parseResponse(resp, req.Jobs), nil
}

func parseResponse(resp batchResponse, jobs []types.Job) *Batch {
	pending := make(map[uuid.UUID]bool, len(jobs))
	for _, j := range jobs {
		pending[j.ID] = true
	}

	batch := &Batch{}
	for _, entry := range resp.Rankings {
		id, err := uuid.Parse(strings.TrimSpace(entry.JobID))
		if err != nil || !pending[id] {
			batch.Ignored = append(batch.Ignored, fmt.Sprintf("%s: unknown or repeated job id", entry.JobID))
			continue
		}

		breakdown := types.NewScoreBreakdown(entry.SkillMatch, entry.BudgetFit, entry.ClientQuality, entry.ScopeFit, entry.WinProbability)
		if err := breakdown.Validate(); err != nil {
			batch.Ignored = append(batch.Ignored, fmt.Sprintf("%s: %v", entry.JobID, err))
			continue
		}

		pending[id] = false
		batch.Results = append(batch.Results, Result{
			JobID:      id,
			ModelScore: entry.Score,
			Breakdown:  breakdown,
			Reasoning:  strings.TrimSpace(entry.Reasoning),
		})
	}
	return batch
}

func buildPrompt(req Request) (string, error) {
	userTmpl, err := prompts.Get("ranking.json", "user")
	if err != nil {
		return "", err
	}
	jobTmpl, err := prompts.Get("ranking.json", "job")
	if err != nil {
		return "", err
	}

	descMax := req.DescriptionMax
	if descMax <= 0 {
		descMax = DefaultDescriptionMax
	}

	blocks := make([]string, len(req.Jobs))
	for i := range req.Jobs {
		job := &req.Jobs[i]
		blocks[i] = prompts.Format(jobTmpl, map[string]string{
			"Index":       strconv.Itoa(i + 1),
			"JobID":       job.ID.String(),
			"Title":       orNotSpecified(job.Title),
			"Seniority":   seniority(job),
			"Summary":     summary(job),
			"Skills":      orNotSpecified(strings.Join(job.Skills, ", ")),
			"Budget":      job.BudgetSummary(),
			"Client":      job.ClientSummary(),
			"Description": orNotSpecified(job.TruncatedDescription(descMax)),
		})
	}

	tightness := "not specified"
	if req.Tightness != nil {
		tightness = strconv.FormatFloat(*req.Tightness, 'f', 2, 64)
	}

	return prompts.Format(userTmpl, map[string]string{
		"ProfileContext": req.ProfileContext,
		"Tightness":      tightness,
		"Count":          strconv.Itoa(len(req.Jobs)),
		"Jobs":           strings.Join(blocks, "\n"),
	}), nil
}

// seniority prefers the enriched classification over the declared level.
func seniority(job *types.Job) string {
	if job.AISeniority != nil && *job.AISeniority != "" {
		return *job.AISeniority
	}
	if job.Seniority != nil && *job.Seniority != "" {
		return *job.Seniority
	}
	return "Not specified"
}

// summary is the enrichment summary, sent only once the job is fully enriched.
func summary(job *types.Job) string {
	if !job.IsEnriched() {
		return "Not specified"
	}
	return orNotSpecified(*job.AISummary)
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
