package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQuery_String(t *testing.T) {
	teamID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tests := []struct {
		name  string
		query *Query
		want  string
	}{
		{
			name:  "bare table",
			query: From("jobs"),
			want:  "jobs",
		},
		{
			name:  "unembedded jobs",
			query: From("jobs").Eq("team_id", teamID).IsNull("embedding").Select("id", "title").Limit(500),
			want:  "jobs?team_id=eq.11111111-1111-1111-1111-111111111111&embedding=is.null&select=id,title&limit=500",
		},
		{
			name:  "in filter with order",
			query: From("experiences").In("id", "a", "b").Order("start_date", true),
			want:  "experiences?id=in.(a,b)&order=start_date.desc",
		},
		{
			name:  "ascending order",
			query: From("skills").Order("name", false),
			want:  "skills?order=name.asc",
		},
		{
			name:  "escaped value",
			query: From("profiles").Eq("full_name", "Ada Lovelace&co"),
			want:  "profiles?full_name=eq.Ada+Lovelace%26co",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.String())
		})
	}
}

func TestQuery_FilterFromCopies(t *testing.T) {
	filter := Filter().Eq("id", "42")

	jobs := filter.From("jobs")
	runs := filter.From("agent_runs")

	assert.Equal(t, "jobs?id=eq.42", jobs.String())
	assert.Equal(t, "agent_runs?id=eq.42", runs.String())
	assert.Equal(t, "?id=eq.42", filter.String())
}
