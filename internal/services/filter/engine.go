// Package filter applies the tenure/seniority rules that decide whether an
// enriched profile belongs in the result set.
package filter

import (
	"regexp"
	"strings"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
)

// defaultSeniorityPattern matches the title keywords that qualify a profile
// regardless of tenure: partner, director, manager, CXO variants, owner, VP.
const defaultSeniorityPattern = `(?i)\b(?:partner|director|manager|cxo|owner|vice\s*president|vp|chief|c.o|ceo|cto|cfo|coo|president)\b`

// Engine evaluates profiles against the configured criteria. It is a pure
// function of its inputs; construct once and share freely across workers.
type Engine struct {
	currentMinYears  float64
	pastMinYears     float64
	pastRecencyYears float64
	seniority        *regexp.Regexp
}

// NewEngine builds an engine from configuration. An invalid keyword override
// falls back to the default pattern.
func NewEngine(cfg *common.FilterConfig) *Engine {
	pattern := defaultSeniorityPattern
	if cfg.SeniorityKeywords != "" {
		if _, err := regexp.Compile(cfg.SeniorityKeywords); err == nil {
			pattern = cfg.SeniorityKeywords
		}
	}

	currentMin := cfg.CurrentMinYears
	if currentMin <= 0 {
		currentMin = 6
	}
	pastMin := cfg.PastMinYears
	if pastMin <= 0 {
		pastMin = 10
	}
	recency := cfg.PastRecencyYears
	if recency <= 0 {
		recency = 5
	}

	return &Engine{
		currentMinYears:  currentMin,
		pastMinYears:     pastMin,
		pastRecencyYears: recency,
		seniority:        regexp.MustCompile(pattern),
	}
}

// MatchesSeniority reports whether the title carries a qualifying keyword.
func (e *Engine) MatchesSeniority(title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	return e.seniority.MatchString(title)
}

// Evaluate decides meets_criteria for a profile under the given employment
// status. Keyword match and tenure thresholds are independently sufficient
// (OR, favoring recall); for past employees the departure recency window is a
// hard gate that neither tenure nor keywords can bypass.
func (e *Engine) Evaluate(profile *models.EnrichedProfile, status models.EmploymentStatus) bool {
	switch status {
	case models.EmploymentStatusCurrent:
		return e.evaluateCurrent(profile)
	case models.EmploymentStatusPast:
		return e.evaluatePast(profile)
	case models.EmploymentStatusAll:
		return e.evaluateCurrent(profile) || e.evaluatePast(profile)
	}
	return false
}

func (e *Engine) evaluateCurrent(profile *models.EnrichedProfile) bool {
	if !e.currentlyEmployed(profile) {
		return false
	}
	if profile.YearsInRole >= e.currentMinYears {
		return true
	}
	return e.MatchesSeniority(e.bestTitle(profile))
}

func (e *Engine) evaluatePast(profile *models.EnrichedProfile) bool {
	if e.currentlyEmployed(profile) {
		return false
	}
	// A departure outside the recency window disqualifies regardless of tenure.
	if profile.YearsSinceDeparture <= 0 || profile.YearsSinceDeparture > e.pastRecencyYears {
		return false
	}
	if profile.TotalTenureYears >= e.pastMinYears {
		return true
	}
	return e.MatchesSeniority(e.bestTitle(profile))
}

// currentlyEmployed reports whether the profile still holds a position at the
// source company.
func (e *Engine) currentlyEmployed(profile *models.EnrichedProfile) bool {
	return profile.YearsSinceDeparture == 0
}

func (e *Engine) bestTitle(profile *models.EnrichedProfile) string {
	if profile.CompanyTitle != "" {
		return profile.CompanyTitle
	}
	return profile.Title
}

// GroupTitle returns the normalized title used for (company, title)
// aggregation. Profiles without any extracted title group under "Unknown".
func GroupTitle(profile *models.EnrichedProfile) string {
	title := profile.CompanyTitle
	if title == "" {
		title = profile.Title
	}
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return "Unknown"
	}
	return title
}
