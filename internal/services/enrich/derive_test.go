package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/prospector/internal/models"
)

var testNow = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func date(year, month int) *models.DateParts {
	return &models.DateParts{Year: year, Month: month}
}

func TestDeriveCurrentEmployee(t *testing.T) {
	payload := &models.ProfilePayload{
		FullName: "Jane Doe",
		Experiences: []models.Experience{
			{Company: "Acme Corp", Title: "Engineering Manager", StartsAt: date(2018, 3)},
			{Company: "Globex", Title: "Software Engineer", StartsAt: date(2012, 1), EndsAt: date(2018, 2)},
		},
	}

	fields := Derive(payload, "Acme Corp", testNow)

	assert.Equal(t, "Engineering Manager", fields.Title)
	assert.Equal(t, "Engineering Manager", fields.CompanyTitle)
	assert.InDelta(t, 7.3, fields.YearsInRole, 0.11)
	assert.Zero(t, fields.YearsSinceDeparture)
	// 2012-01 through now with no gap between the two positions.
	assert.InDelta(t, 13.5, fields.TotalTenureYears, 0.11)
}

func TestDerivePastEmployee(t *testing.T) {
	payload := &models.ProfilePayload{
		Experiences: []models.Experience{
			{Company: "Initech", Title: "Consultant", StartsAt: date(2023, 1)},
			{Company: "Acme Corp", Title: "Sales Director", StartsAt: date(2010, 6), EndsAt: date(2022, 12)},
		},
	}

	fields := Derive(payload, "Acme Corp", testNow)

	assert.Equal(t, "Consultant", fields.Title)
	assert.Equal(t, "Sales Director", fields.CompanyTitle)
	assert.Zero(t, fields.YearsInRole)
	assert.InDelta(t, 2.5, fields.YearsSinceDeparture, 0.11)
}

func TestDeriveCompanyMatchIsFuzzy(t *testing.T) {
	payload := &models.ProfilePayload{
		Experiences: []models.Experience{
			{Company: "Acme Corp Pty Ltd", Title: "Manager", StartsAt: date(2020, 1)},
		},
	}

	fields := Derive(payload, "Acme Corp", testNow)
	assert.Equal(t, "Manager", fields.CompanyTitle)
}

func TestDeriveNoCompanyMatch(t *testing.T) {
	payload := &models.ProfilePayload{
		Experiences: []models.Experience{
			{Company: "Globex", Title: "Engineer", StartsAt: date(2020, 1)},
		},
	}

	fields := Derive(payload, "Acme Corp", testNow)

	assert.Equal(t, "Engineer", fields.Title)
	assert.Empty(t, fields.CompanyTitle)
	assert.Zero(t, fields.YearsInRole)
	assert.Zero(t, fields.YearsSinceDeparture)
}

func TestDerivePrefersLatestCompanyPosition(t *testing.T) {
	payload := &models.ProfilePayload{
		Experiences: []models.Experience{
			{Company: "Acme Corp", Title: "Engineer", StartsAt: date(2010, 1), EndsAt: date(2015, 6)},
			{Company: "Acme Corp", Title: "Senior Engineer", StartsAt: date(2015, 7), EndsAt: date(2020, 1)},
			{Company: "Acme Corp", Title: "Principal Engineer", StartsAt: date(2020, 2)},
		},
	}

	fields := Derive(payload, "Acme Corp", testNow)
	assert.Equal(t, "Principal Engineer", fields.CompanyTitle)
	assert.Zero(t, fields.YearsSinceDeparture)
}

func TestTotalExperienceMergesOverlaps(t *testing.T) {
	// Two fully overlapping positions must count once.
	experiences := []models.Experience{
		{Company: "A", Title: "Engineer", StartsAt: date(2015, 1), EndsAt: date(2020, 1)},
		{Company: "B", Title: "Advisor", StartsAt: date(2016, 1), EndsAt: date(2019, 1)},
	}

	years := totalExperienceYears(experiences, testNow)
	assert.InDelta(t, 5.0, years, 0.11)
}

func TestTotalExperienceSumsDisjointPeriods(t *testing.T) {
	experiences := []models.Experience{
		{Company: "A", Title: "Engineer", StartsAt: date(2010, 1), EndsAt: date(2012, 1)},
		{Company: "B", Title: "Engineer", StartsAt: date(2015, 1), EndsAt: date(2018, 1)},
	}

	years := totalExperienceYears(experiences, testNow)
	assert.InDelta(t, 5.0, years, 0.11)
}

func TestTotalExperienceSkipsUndatedPositions(t *testing.T) {
	experiences := []models.Experience{
		{Company: "A", Title: "Engineer"},
		{Company: "B", Title: "Engineer", StartsAt: date(2020, 1), EndsAt: date(2022, 1)},
	}

	years := totalExperienceYears(experiences, testNow)
	assert.InDelta(t, 2.0, years, 0.11)
}

func TestCurrentTitleFallsBackToMostRecentClosed(t *testing.T) {
	experiences := []models.Experience{
		{Company: "A", Title: "Engineer", StartsAt: date(2010, 1), EndsAt: date(2015, 1)},
		{Company: "B", Title: "Manager", StartsAt: date(2015, 2), EndsAt: date(2020, 1)},
	}

	assert.Equal(t, "Manager", currentTitle(experiences))
}

func TestCurrentTitlePrefersLatestOpenPosition(t *testing.T) {
	experiences := []models.Experience{
		{Company: "A", Title: "Board Member", StartsAt: date(2015, 1)},
		{Company: "B", Title: "CEO", StartsAt: date(2021, 1)},
	}

	assert.Equal(t, "CEO", currentTitle(experiences))
}

func TestDeriveNilPayload(t *testing.T) {
	fields := Derive(nil, "Acme Corp", testNow)
	assert.Zero(t, fields)
}

func TestRoundYears(t *testing.T) {
	assert.Equal(t, 1.0, roundYears(365*24*time.Hour+6*time.Hour))
	assert.Equal(t, 0.5, roundYears(183*24*time.Hour))
	assert.Equal(t, 0.0, roundYears(0))
}
