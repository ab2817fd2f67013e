package data

import (
	"context"
	"database/sql"

	"github.com/jobsift/jobsift/internal/migrate"
)

// RunMigrations applies the embedded schema migrations for core.jobs and
// core.job_skills by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
