package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
	"github.com/jobsift/jobsift/internal/testutil"
)

func testJob(title, company string, skills ...string) model.Job {
	url := fmt.Sprintf("https://jobs.example.com/%s-%d", title, time.Now().UnixNano())
	job := model.Job{
		Title:       title,
		CompanyName: company,
		Location:    "Remote",
		JobURL:      &url,
		DateScraped: time.Now().UTC(),
		Progress:    model.DefaultProgress,
	}
	for _, s := range skills {
		job.Skills = append(job.Skills, model.JobSkill{Skill: s})
	}
	return job
}

func TestJobRepo_BulkInsert_List_Get(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		inserted, err := repo.BulkInsert(ctx, []model.Job{
			testJob("Data Engineer", "Acme", "Python", "SQL"),
			testJob("Backend Developer", "Globex", "Go"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		jobs, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 2)

		byTitle := map[string]model.Job{}
		for _, j := range jobs {
			byTitle[j.Title] = j
			assert.Equal(t, model.DefaultProgress, j.Progress)
			assert.NotZero(t, j.JobID)
		}
		require.Contains(t, byTitle, "Data Engineer")
		require.Len(t, byTitle["Data Engineer"].Skills, 2)
		assert.Equal(t, "Python", byTitle["Data Engineer"].Skills[0].Skill)

		got, err := repo.Get(ctx, byTitle["Backend Developer"].JobID)
		require.NoError(t, err)
		assert.Equal(t, "Globex", got.CompanyName)
		require.Len(t, got.Skills, 1)
	})
}

func TestJobRepo_GetNotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		_, err := NewJobRepo(db).Get(context.Background(), 999999)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestJobRepo_UpdateProgress(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		_, err := repo.BulkInsert(ctx, []model.Job{testJob("SRE", "Initech")})
		require.NoError(t, err)
		jobs, err := repo.List(ctx, 1, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		updated, err := repo.UpdateProgress(ctx, jobs[0].JobID, "Applied")
		require.NoError(t, err)
		assert.Equal(t, "Applied", updated.Progress)

		_, err = repo.UpdateProgress(ctx, 999999, "Applied")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestJobRepo_DeleteCascadesSkills(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		_, err := repo.BulkInsert(ctx, []model.Job{testJob("Analyst", "Umbrella", "Excel", "SQL")})
		require.NoError(t, err)
		jobs, err := repo.List(ctx, 1, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		require.NoError(t, repo.Delete(ctx, jobs[0].JobID))

		var count int
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM core.job_skills").Scan(&count))
		assert.Zero(t, count)

		assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, jobs[0].JobID)))
	})
}

func TestJobRepo_ExistingTitleCompanyPairs(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		_, err := repo.BulkInsert(ctx, []model.Job{testJob("Data Engineer", "Acme")})
		require.NoError(t, err)

		pairs, err := repo.ExistingTitleCompanyPairs(ctx)
		require.NoError(t, err)
		// Keys are lowercased on both sides.
		assert.Contains(t, pairs, model.NewTitleCompanyKey("Data Engineer", "Acme"))
	})
}

func TestJobRepo_BulkInsertRollsBackOnDuplicateURL(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		url := "https://jobs.example.com/duplicate"
		first := testJob("First", "Acme")
		first.JobURL = &url
		second := testJob("Second", "Globex")
		second.JobURL = &url

		_, err := repo.BulkInsert(ctx, []model.Job{first, second})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))

		// The whole batch must roll back, including the non-conflicting row.
		jobs, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobRepo_ListClampsPagination(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db)

		var batch []model.Job
		for i := 0; i < 3; i++ {
			batch = append(batch, testJob(fmt.Sprintf("Role %d", i), "Acme"))
		}
		_, err := repo.BulkInsert(ctx, batch)
		require.NoError(t, err)

		jobs, err := repo.List(ctx, -5, -10)
		require.NoError(t, err)
		assert.Len(t, jobs, 3)

		jobs, err = repo.List(ctx, 2, 2)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}
