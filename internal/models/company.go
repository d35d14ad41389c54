package models

import (
	"strings"
)

// CompanyContext is what the query generator knows about a target company.
// Populated from the enrichment collaborator during the context_extraction
// stage; degrades to a name-only stub when the lookup fails so the pipeline
// keeps moving.
type CompanyContext struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Industry    string   `json:"industry,omitempty"`
	Size        string   `json:"size,omitempty"`
	Description string   `json:"description,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	Stub        bool     `json:"stub"` // true when derived from the URL alone
}

// CompanyNameFromURL derives a display name from a company profile URL,
// e.g. "https://linkedin.com/company/acme-corp/" -> "Acme Corp".
func CompanyNameFromURL(companyURL string) string {
	slug := companyURL
	if idx := strings.Index(slug, "company/"); idx >= 0 {
		slug = slug[idx+len("company/"):]
	}
	slug = strings.Trim(slug, "/")
	if idx := strings.IndexAny(slug, "/?#"); idx >= 0 {
		slug = slug[:idx]
	}
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

// StubCompanyContext builds the fallback context used when company enrichment
// fails or is unavailable.
func StubCompanyContext(companyURL string) *CompanyContext {
	return &CompanyContext{
		URL:  companyURL,
		Name: CompanyNameFromURL(companyURL),
		Stub: true,
	}
}
