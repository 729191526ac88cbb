package scraper

import (
	"github.com/jonathan/job-ranker/internal/types"
)

// ScrapedExperience is one work history entry of a scraped profile.
type ScrapedExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// ScrapedProfile is the structured record the provider returns for a profile URL.
type ScrapedProfile struct {
	URL         string              `json:"url"`
	FullName    string              `json:"name"`
	Headline    string              `json:"headline"`
	About       string              `json:"about"`
	Skills      []string            `json:"skills"`
	Experiences []ScrapedExperience `json:"experience"`
	HourlyRate  *float64            `json:"hourly_rate,omitempty"`
	Currency    string              `json:"currency,omitempty"`
}

// Bundle maps the scraped record onto the profile rows the pipeline reads.
func (p *ScrapedProfile) Bundle() *types.ProfileBundle {
	bundle := &types.ProfileBundle{
		Profile: &types.Profile{
			FullName: p.FullName,
			Headline: p.Headline,
			About:    p.About,
		},
	}
	for _, s := range p.Skills {
		bundle.Skills = append(bundle.Skills, types.Skill{Name: s})
	}
	for _, e := range p.Experiences {
		bundle.Experiences = append(bundle.Experiences, types.Experience{
			Title:       e.Title,
			Company:     e.Company,
			Description: e.Description,
		})
	}
	if p.HourlyRate != nil {
		bundle.Preference = &types.Preference{HourlyRateMin: p.HourlyRate, Currency: p.Currency}
	}
	return bundle
}
