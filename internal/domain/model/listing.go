package model

import "strings"

// JobListing is one scraped posting as written to the per-job result file
// and read back by the loader.
type JobListing struct {
	SearchQuery     string   `json:"search_query"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location"`
	DatePosted      string   `json:"date_posted"`
	URL             string   `json:"url"`
	Description     string   `json:"description,omitempty"`
	ExtractedSkills []string `json:"extracted_skills"`
}

// ValidForPersistence reports whether the listing carries enough data for a
// database row: title and company non-blank, location present.
func (l *JobListing) ValidForPersistence() bool {
	return strings.TrimSpace(l.Title) != "" &&
		strings.TrimSpace(l.Company) != "" &&
		l.Location != ""
}

// DedupeKey is the loader's idempotency key for this listing.
func (l *JobListing) DedupeKey() TitleCompanyKey {
	return NewTitleCompanyKey(l.Title, l.Company)
}

// TitleCompanyKey is the case-insensitive (title, company) pair that
// identifies a job for duplicate detection.
type TitleCompanyKey struct {
	Title   string
	Company string
}

// NewTitleCompanyKey lowercases both parts so lookups match the
// lower(title), lower(company_name) set loaded from the database.
func NewTitleCompanyKey(title, company string) TitleCompanyKey {
	return TitleCompanyKey{
		Title:   strings.ToLower(title),
		Company: strings.ToLower(company),
	}
}

// DedupeSkills removes duplicate skills within a single listing, comparing
// trimmed strings case-sensitively and preserving first-seen order.
func DedupeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
