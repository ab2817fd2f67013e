package model

import "time"

// DefaultProgress is the application-tracking label every job row carries
// at insertion time.
const DefaultProgress = "Haven't Applied"

// Job is a persisted row in core.jobs plus its skill children.
type Job struct {
	JobID       int64      `json:"job_id"       db:"job_id"`
	Title       string     `json:"title"        db:"title"`
	CompanyName string     `json:"company_name" db:"company_name"`
	Location    string     `json:"location"     db:"location"`
	JobURL      *string    `json:"job_url"      db:"job_url"`
	DatePosted  *time.Time `json:"date_posted"  db:"date_posted"`
	DateScraped time.Time  `json:"date_scraped" db:"date_scraped"`
	Progress    string     `json:"progress"     db:"progress"`

	Skills []JobSkill `json:"skills" db:"-"`
}

// JobSkill is a persisted row in core.job_skills.
type JobSkill struct {
	JobSkillID int64  `json:"job_skill_id" db:"job_skill_id"`
	JobID      int64  `json:"job_id"       db:"job_id"`
	Skill      string `json:"skill"        db:"skill"`
}

// NewJob maps a scraped listing onto an insertable row. DatePosted is nil
// when the listing's date could not be parsed.
func NewJob(listing *JobListing, datePosted *time.Time, scrapedAt time.Time) Job {
	var url *string
	if listing.URL != "" {
		u := listing.URL
		url = &u
	}
	return Job{
		Title:       listing.Title,
		CompanyName: listing.Company,
		Location:    listing.Location,
		JobURL:      url,
		DatePosted:  datePosted,
		DateScraped: scrapedAt,
		Progress:    DefaultProgress,
	}
}
