// Package profile builds the textual profile context used as embedding input
// and as ranking prompt context.
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/job-ranker/internal/types"
)

// EmptyContext is returned when the bundle carries no usable data.
const EmptyContext = "No profile data available."

const (
	maxExperiences           = 5
	maxExperienceDescription = 300
	defaultCurrency          = "USD"
)

// BuildContext renders the bundle as newline-joined lines in a fixed order:
// name, headline, about, skills, experience, rate. Empty sections are omitted
// and input order is preserved within each section.
func BuildContext(bundle *types.ProfileBundle) string {
	if bundle == nil {
		return EmptyContext
	}

	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	if p := bundle.Profile; p != nil {
		add("Name", p.FullName)
		add("Headline", p.Headline)
		add("About", p.About)
	}

	add("Skills", formatSkills(bundle.Skills))

	if exp := formatExperiences(bundle.Experiences); len(exp) > 0 {
		lines = append(lines, "Experience:")
		lines = append(lines, exp...)
	}

	add("Rate", formatRate(bundle.Preference))

	if len(lines) == 0 {
		return EmptyContext
	}
	return strings.Join(lines, "\n")
}

func formatSkills(skills []types.Skill) string {
	parts := make([]string, 0, len(skills))
	for _, s := range skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		if s.Years != nil && *s.Years > 0 {
			unit := "yrs"
			if *s.Years == 1 {
				unit = "yr"
			}
			name = fmt.Sprintf("%s (%s %s)", name, formatNumber(*s.Years), unit)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

func formatExperiences(experiences []types.Experience) []string {
	var lines []string
	for _, e := range experiences {
		if len(lines) == maxExperiences {
			break
		}

		title := strings.TrimSpace(e.Title)
		company := strings.TrimSpace(e.Company)
		desc := strings.Join(strings.Fields(e.Description), " ")

		var head string
		switch {
		case title != "" && company != "":
			head = title + " at " + company
		case title != "":
			head = title
		case company != "":
			head = company
		}

		switch {
		case head != "" && desc != "":
			lines = append(lines, "- "+head+": "+types.TruncateRunes(desc, maxExperienceDescription))
		case head != "":
			lines = append(lines, "- "+head)
		case desc != "":
			lines = append(lines, "- "+types.TruncateRunes(desc, maxExperienceDescription))
		}
	}
	return lines
}

func formatRate(pref *types.Preference) string {
	if pref == nil || (pref.HourlyRateMin == nil && pref.HourlyRateMax == nil) {
		return ""
	}

	currency := strings.TrimSpace(pref.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	var rate string
	switch {
	case pref.HourlyRateMin != nil && pref.HourlyRateMax != nil:
		rate = fmt.Sprintf("$%s-$%s/hr", formatNumber(*pref.HourlyRateMin), formatNumber(*pref.HourlyRateMax))
	case pref.HourlyRateMin != nil:
		rate = fmt.Sprintf("$%s+/hr", formatNumber(*pref.HourlyRateMin))
	default:
		rate = fmt.Sprintf("up to $%s/hr", formatNumber(*pref.HourlyRateMax))
	}
	return rate + " " + currency
}

// formatNumber drops a trailing .0 so whole numbers read naturally.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
