package models

import (
	"time"
)

// TitleGroup aggregates matching profiles per (company, title) and carries the
// operator's selection flag. Created after filtering completes; mutated only by
// the title selection API; read by the export dispatcher.
type TitleGroup struct {
	ID        string    `json:"id" badgerhold:"key"` // jobID + "|" + company + "|" + title
	JobID     string    `json:"job_id" badgerhold:"index"`
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	Count     int       `json:"count"` // profiles with meets_criteria=true
	Selected  bool      `json:"selected"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleSelection is one operator decision for a (company, title) group.
type TitleSelection struct {
	Company  string `json:"company" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Selected bool   `json:"selected"`
}

// TitleGroupKey builds the storage key for a title group.
func TitleGroupKey(jobID, company, title string) string {
	return jobID + "|" + company + "|" + title
}
