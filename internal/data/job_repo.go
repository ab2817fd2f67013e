// Package data provides persistence for scraped jobs: a Postgres repository
// over database/sql with the pgx stdlib driver, plus a Redis page cache for
// the read API.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// List pagination bounds for the read API.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// JobRepo provides database operations on core.jobs and core.job_skills.
type JobRepo struct {
	DB *sql.DB
}

// NewJobRepo creates a JobRepo over the given pool.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{DB: db}
}

const jobColumns = `job_id, title, COALESCE(company_name, ''), COALESCE(location, ''),
	job_url, date_posted, date_scraped, COALESCE(progress, '')`

const jobListQuery = `
	SELECT ` + jobColumns + `
	FROM core.jobs
	ORDER BY date_scraped DESC NULLS LAST, job_id DESC
	LIMIT $1 OFFSET $2`

const jobGetQuery = `
	SELECT ` + jobColumns + `
	FROM core.jobs
	WHERE job_id = $1`

// List returns a page of jobs, newest-scraped first, each with its skills
// attached. Limit is clamped to [1, MaxListLimit]; non-positive values take
// the default.
func (r *JobRepo) List(ctx context.Context, limit, offset int) ([]model.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, jobListQuery, limit, offset)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list jobs: %w", err))
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	if err := r.attachSkills(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get returns one job with its skills.
func (r *JobRepo) Get(ctx context.Context, jobID int64) (*model.Job, error) {
	rows, err := r.DB.QueryContext(ctx, jobGetQuery, jobID)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("get job: %w", err))
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if len(jobs) == 0 {
		return nil, apperrors.NotFoundf("job %d not found", jobID)
	}
	if err := r.attachSkills(ctx, jobs); err != nil {
		return nil, err
	}
	return &jobs[0], nil
}

// UpdateProgress sets the application-tracking label on one job.
func (r *JobRepo) UpdateProgress(ctx context.Context, jobID int64, progress string) (*model.Job, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE core.jobs SET progress = $1 WHERE job_id = $2`, progress, jobID)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("update job progress: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.Internalf("update job progress: %v", err)
	}
	if affected == 0 {
		return nil, apperrors.NotFoundf("job %d not found", jobID)
	}
	return r.Get(ctx, jobID)
}

// Delete removes a job; skills go with it via ON DELETE CASCADE.
func (r *JobRepo) Delete(ctx context.Context, jobID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM core.jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("delete job: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internalf("delete job: %v", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("job %d not found", jobID)
	}
	return nil
}

// ExistingTitleCompanyPairs returns the set of case-insensitive
// title/company keys already persisted, used by the loader to prefetch its
// dedupe set in one round trip.
func (r *JobRepo) ExistingTitleCompanyPairs(ctx context.Context) (map[model.TitleCompanyKey]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT lower(title), lower(COALESCE(company_name, '')) FROM core.jobs`)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("fetch title/company pairs: %w", err))
	}
	defer rows.Close()

	pairs := make(map[model.TitleCompanyKey]struct{})
	for rows.Next() {
		var title, company string
		if err := rows.Scan(&title, &company); err != nil {
			return nil, apperrors.MapDBError(err)
		}
		pairs[model.TitleCompanyKey{Title: title, Company: company}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return pairs, nil
}

// BulkInsert writes all jobs and their skills in one transaction: either
// the whole batch lands or none of it does. Returns the number of jobs
// inserted.
func (r *JobRepo) BulkInsert(ctx context.Context, jobs []model.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := withPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		for i := range jobs {
			job := &jobs[i]
			var jobID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO core.jobs (title, company_name, location, job_url, date_posted, date_scraped, progress)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING job_id`,
				job.Title,
				nullIfEmpty(job.CompanyName),
				nullIfEmpty(job.Location),
				job.JobURL,
				job.DatePosted,
				job.DateScraped,
				job.Progress,
			).Scan(&jobID)
			if err != nil {
				return fmt.Errorf("insert job %q: %w", job.Title, err)
			}
			job.JobID = jobID

			for _, skill := range job.Skills {
				if _, err := tx.Exec(ctx,
					`INSERT INTO core.job_skills (job_id, skill) VALUES ($1, $2)`,
					jobID, skill.Skill); err != nil {
					return fmt.Errorf("insert skill %q for job %d: %w", skill.Skill, jobID, err)
				}
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return inserted, nil
}

// attachSkills loads skills for the given jobs in one query.
func (r *JobRepo) attachSkills(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(jobs))
	index := make(map[int64]*model.Job, len(jobs))
	for i := range jobs {
		ids = append(ids, fmt.Sprintf("%d", jobs[i].JobID))
		index[jobs[i].JobID] = &jobs[i]
	}

	query := `SELECT job_skill_id, job_id, skill FROM core.job_skills
		WHERE job_id IN (` + strings.Join(ids, ",") + `) ORDER BY job_skill_id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("fetch job skills: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var skill model.JobSkill
		if err := rows.Scan(&skill.JobSkillID, &skill.JobID, &skill.Skill); err != nil {
			return apperrors.MapDBError(err)
		}
		if job, ok := index[skill.JobID]; ok {
			job.Skills = append(job.Skills, skill)
		}
	}
	return apperrors.MapDBError(rows.Err())
}

func scanJobs(rows *sql.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		var job model.Job
		var scraped sql.NullTime
		if err := rows.Scan(
			&job.JobID,
			&job.Title,
			&job.CompanyName,
			&job.Location,
			&job.JobURL,
			&job.DatePosted,
			&scraped,
			&job.Progress,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		if scraped.Valid {
			job.DateScraped = scraped.Time
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
