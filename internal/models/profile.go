// -----------------------------------------------------------------------
// Profile - Discovered and enriched profile records
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// Provenance is one (company, country) pair through which a profile URL was
// discovered. A profile found by several queries keeps every distinct pair for
// downstream attribution.
type Provenance struct {
	Company    string `json:"company"`
	CompanyURL string `json:"company_url"`
	Country    string `json:"country"`
}

// DiscoveredProfile is a deduplicated profile URL found during the searching
// stage. Identity is (job id, normalized URL); the same URL surfaced by N
// queries collapses to one record with N provenance entries.
type DiscoveredProfile struct {
	ID         string       `json:"id" badgerhold:"key"` // jobID + "|" + normalized URL
	JobID      string       `json:"job_id" badgerhold:"index"`
	URL        string       `json:"url"` // normalized profile URL
	Snippet    string       `json:"snippet,omitempty"`
	Provenance []Provenance `json:"provenance"`
	Status     TaskStatus   `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// HasProvenance reports whether the profile already carries the given pair.
func (d *DiscoveredProfile) HasProvenance(p Provenance) bool {
	for _, existing := range d.Provenance {
		if existing.Company == p.Company && existing.Country == p.Country {
			return true
		}
	}
	return false
}

// DateParts is a year/month pair as reported by the enrichment provider.
// Month may be zero when the provider only knows the year.
type DateParts struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// IsZero reports whether no date was provided at all.
func (d DateParts) IsZero() bool {
	return d.Year == 0
}

// Time converts the parts to a time anchored at the first of the month,
// defaulting the month when absent.
func (d DateParts) Time(defaultMonth time.Month) time.Time {
	month := time.Month(d.Month)
	if d.Month == 0 {
		month = defaultMonth
	}
	return time.Date(d.Year, month, 1, 0, 0, 0, 0, time.UTC)
}

// Experience is one position entry from an enriched profile payload.
type Experience struct {
	Company  string     `json:"company"`
	Title    string     `json:"title"`
	StartsAt *DateParts `json:"starts_at,omitempty"`
	EndsAt   *DateParts `json:"ends_at,omitempty"` // nil means current position
}

// Current reports whether the position has no end date.
func (e *Experience) Current() bool {
	return e.EndsAt == nil || e.EndsAt.IsZero()
}

// ProfilePayload is the structured document returned by the enrichment
// collaborator. Free-text fields beyond the extracted set stay in Raw.
type ProfilePayload struct {
	FullName    string                 `json:"full_name"`
	Headline    string                 `json:"headline"`
	Country     string                 `json:"country"`
	Email       string                 `json:"email,omitempty"`
	Phone       string                 `json:"phone,omitempty"`
	Industry    string                 `json:"industry,omitempty"`
	Education   []string               `json:"education,omitempty"`
	Skills      []string               `json:"skills,omitempty"`
	Experiences []Experience           `json:"experiences"`
	Raw         map[string]interface{} `json:"raw,omitempty"`
}

// EnrichedProfile is the per-job materialization of an enrichment result plus
// the fields derived from it. Created once per unique URL per job even when the
// payload came from the cache.
type EnrichedProfile struct {
	ID                   string          `json:"id" badgerhold:"key"` // jobID + "|" + normalized URL
	JobID                string          `json:"job_id" badgerhold:"index"`
	URL                  string          `json:"url"`
	Company              string          `json:"company"` // primary provenance company
	Country              string          `json:"country"`
	Payload              *ProfilePayload `json:"payload,omitempty"`
	Title                string          `json:"title,omitempty"`
	CompanyTitle         string          `json:"company_title,omitempty"` // title variant held at the source company
	YearsInRole          float64         `json:"years_in_role"`
	TotalTenureYears     float64         `json:"total_tenure_years"`
	YearsSinceDeparture  float64         `json:"years_since_departure"` // past-employee mode only; 0 when current
	MeetsCriteria        bool            `json:"meets_criteria"`
	Status               TaskStatus      `json:"status"`
	Error                string          `json:"error,omitempty"`
	CachedPayload        bool            `json:"cached_payload"` // payload served from cache, no external call
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
