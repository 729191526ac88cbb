// Package enrichment classifies, summarizes and cleans up job descriptions
// with one structured completion per batch.
package enrichment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-ranker/internal/llm"
	"github.com/jonathan/job-ranker/internal/prompts"
	"github.com/jonathan/job-ranker/internal/schemas"
	"github.com/jonathan/job-ranker/internal/types"
)

// DefaultDescriptionMax bounds the description sent for rewriting.
const DefaultDescriptionMax = 4000

// Result is the enrichment of one job.
type Result struct {
	JobID      uuid.UUID
	Enrichment types.JobEnrichment
}

// Batch is the parsed outcome of one completion. Ignored lists entries that
// were dropped, with a reason.
type Batch struct {
	Results []Result
	Ignored []string
}

type enrichmentEntry struct {
	JobID               string `json:"job_id"`
	Seniority           string `json:"seniority"`
	Summary             string `json:"summary"`
	DescriptionMarkdown string `json:"description_markdown"`
}

type batchResponse struct {
	Jobs []enrichmentEntry `json:"jobs"`
}

// EnrichBatch sends one completion for jobs. An error means nothing in the
// batch was enriched.
func EnrichBatch(ctx context.Context, completer llm.Completer, jobs []types.Job, descriptionMax int) (*Batch, error) {
	if len(jobs) == 0 {
		return &Batch{}, nil
	}

	schema, err := schemas.Get(schemas.EnrichmentBatch)
	if err != nil {
		return nil, err
	}
	system, err := prompts.Get("enrichment.json", "system")
	if err != nil {
		return nil, err
	}
	user, err := buildPrompt(jobs, descriptionMax)
	if err != nil {
		return nil, err
	}

	var resp batchResponse
	if err := completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schema,
	}, &resp); err != nil {
		return nil, fmt.Errorf("enrichment completion failed: %w", err)
	}

	return parseResponse(resp, jobs), nil
}

func parseResponse(resp batchResponse, jobs []types.Job) *Batch {
	pending := make(map[uuid.UUID]bool, len(jobs))
	for _, j := range jobs {
		pending[j.ID] = true
	}

	batch := &Batch{}
	for _, e := range resp.Jobs {
		id, err := uuid.Parse(strings.TrimSpace(e.JobID))
		if err != nil || !pending[id] {
			batch.Ignored = append(batch.Ignored, fmt.Sprintf("%s: unknown or repeated job id", e.JobID))
			continue
		}

		seniority := strings.ToLower(strings.TrimSpace(e.Seniority))
		if !types.IsValidSeniority(seniority) {
			batch.Ignored = append(batch.Ignored, fmt.Sprintf("%s: invalid seniority %q", e.JobID, e.Seniority))
			continue
		}

		pending[id] = false
		batch.Results = append(batch.Results, Result{
			JobID: id,
			Enrichment: types.JobEnrichment{
				Seniority:           seniority,
				Summary:             strings.TrimSpace(e.Summary),
				DescriptionMarkdown: strings.TrimSpace(e.DescriptionMarkdown),
			},
		})
	}
	return batch
}

func buildPrompt(jobs []types.Job, descriptionMax int) (string, error) {
	userTmpl, err := prompts.Get("enrichment.json", "user")
	if err != nil {
		return "", err
	}
	jobTmpl, err := prompts.Get("enrichment.json", "job")
	if err != nil {
		return "", err
	}

	if descriptionMax <= 0 {
		descriptionMax = DefaultDescriptionMax
	}

	blocks := make([]string, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		declared := "Not specified"
		if job.Seniority != nil && *job.Seniority != "" {
			declared = *job.Seniority
		}
		skills := strings.Join(job.Skills, ", ")
		if skills == "" {
			skills = "Not specified"
		}
		blocks[i] = prompts.Format(jobTmpl, map[string]string{
			"Index":       strconv.Itoa(i + 1),
			"JobID":       job.ID.String(),
			"Title":       job.Title,
			"Seniority":   declared,
			"Skills":      skills,
			"Description": job.TruncatedDescription(descriptionMax),
		})
	}

	return prompts.Format(userTmpl, map[string]string{
		"Count": strconv.Itoa(len(jobs)),
		"Jobs":  strings.Join(blocks, "\n"),
	}), nil
}
