// Package enrich resolves profile URLs into structured payloads and computes
// the derived fields the filter engine consumes.
package enrich

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/prospector/internal/models"
)

const daysPerYear = 365.25

// DerivedFields is the result of running a payload through the derivation
// rules for one source company.
type DerivedFields struct {
	Title               string  // most recent title anywhere
	CompanyTitle        string  // title held at the source company
	YearsInRole         float64 // duration of the current position
	TotalTenureYears    float64 // overlap-merged experience across all positions
	YearsSinceDeparture float64 // 0 while still employed at the source company
}

// Derive computes all derived fields from a payload at the given reference
// time. company scopes CompanyTitle and YearsSinceDeparture to the source
// company; matching is case-insensitive substring in either direction since
// providers report legal names and profiles carry brand names.
func Derive(payload *models.ProfilePayload, company string, now time.Time) DerivedFields {
	var fields DerivedFields
	if payload == nil {
		return fields
	}

	fields.Title = currentTitle(payload.Experiences)
	fields.TotalTenureYears = totalExperienceYears(payload.Experiences, now)

	companyExp := experiencesAtCompany(payload.Experiences, company)
	if len(companyExp) == 0 {
		return fields
	}

	latest := companyExp[0]
	fields.CompanyTitle = latest.Title

	if latest.Current() {
		if latest.StartsAt != nil && !latest.StartsAt.IsZero() {
			fields.YearsInRole = roundYears(now.Sub(latest.StartsAt.Time(time.January)))
		}
		return fields
	}

	if latest.EndsAt != nil && !latest.EndsAt.IsZero() {
		departed := latest.EndsAt.Time(time.December)
		if departed.Before(now) {
			fields.YearsSinceDeparture = roundYears(now.Sub(departed))
		}
	}
	return fields
}

// currentTitle returns the title of the most recently started open position,
// or the most recently ended one when every position is closed.
func currentTitle(experiences []models.Experience) string {
	var bestOpen *models.Experience
	var bestClosed *models.Experience

	for i := range experiences {
		exp := &experiences[i]
		if exp.Title == "" {
			continue
		}
		if exp.Current() {
			if bestOpen == nil || startsAfter(exp, bestOpen) {
				bestOpen = exp
			}
			continue
		}
		if bestClosed == nil || endsAfter(exp, bestClosed) {
			bestClosed = exp
		}
	}

	if bestOpen != nil {
		return bestOpen.Title
	}
	if bestClosed != nil {
		return bestClosed.Title
	}
	return ""
}

func startsAfter(a, b *models.Experience) bool {
	return startTime(a).After(startTime(b))
}

func endsAfter(a, b *models.Experience) bool {
	if a.EndsAt == nil || a.EndsAt.IsZero() {
		return false
	}
	if b.EndsAt == nil || b.EndsAt.IsZero() {
		return true
	}
	return a.EndsAt.Time(time.December).After(b.EndsAt.Time(time.December))
}

func startTime(e *models.Experience) time.Time {
	if e.StartsAt == nil || e.StartsAt.IsZero() {
		return time.Time{}
	}
	return e.StartsAt.Time(time.January)
}

// experiencesAtCompany returns the positions held at the source company, most
// recent first.
func experiencesAtCompany(experiences []models.Experience, company string) []models.Experience {
	needle := strings.ToLower(strings.TrimSpace(company))
	if needle == "" {
		return nil
	}

	var matched []models.Experience
	for _, exp := range experiences {
		have := strings.ToLower(strings.TrimSpace(exp.Company))
		if have == "" {
			continue
		}
		if strings.Contains(have, needle) || strings.Contains(needle, have) {
			matched = append(matched, exp)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		// Open positions sort first, then by start date descending.
		ci, cj := matched[i].Current(), matched[j].Current()
		if ci != cj {
			return ci
		}
		return startsAfter(&matched[i], &matched[j])
	})
	return matched
}

// period is a half-open [start, end) employment interval used for overlap
// merging.
type period struct {
	start time.Time
	end   time.Time
}

// totalExperienceYears sums employment time across all positions, merging
// overlapping and adjacent periods so concurrent roles are not double-counted.
// Positions without a start date contribute nothing.
func totalExperienceYears(experiences []models.Experience, now time.Time) float64 {
	var periods []period
	for _, exp := range experiences {
		if exp.StartsAt == nil || exp.StartsAt.IsZero() {
			continue
		}
		start := exp.StartsAt.Time(time.January)
		end := now
		if !exp.Current() {
			end = exp.EndsAt.Time(time.December)
		}
		if end.After(now) {
			end = now
		}
		if !end.After(start) {
			continue
		}
		periods = append(periods, period{start: start, end: end})
	}

	if len(periods) == 0 {
		return 0
	}

	sort.Slice(periods, func(i, j int) bool {
		return periods[i].start.Before(periods[j].start)
	})

	merged := periods[:1]
	for _, p := range periods[1:] {
		last := &merged[len(merged)-1]
		if !p.start.After(last.end) {
			if p.end.After(last.end) {
				last.end = p.end
			}
			continue
		}
		merged = append(merged, p)
	}

	var total time.Duration
	for _, p := range merged {
		total += p.end.Sub(p.start)
	}
	return roundYears(total)
}

// roundYears converts a duration to years rounded to one decimal place.
func roundYears(d time.Duration) float64 {
	years := d.Hours() / 24 / daysPerYear
	return math.Round(years*10) / 10
}
