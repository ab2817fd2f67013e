package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// ResultFilePath returns the per-job result path under dataDir.
func ResultFilePath(dataDir, jobID string) string {
	return filepath.Join(dataDir, jobID+"_jobs.json")
}

// WriteResultFile writes the listing array as pretty-printed UTF-8 JSON,
// creating the data directory if needed. An empty slice still writes a
// file so the loader observes "[]" rather than a missing input.
func WriteResultFile(dataDir, jobID string, listings []model.JobListing) (string, error) {
	if listings == nil {
		listings = []model.JobListing{}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInternal, "create data dir %s", dataDir)
	}

	raw, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode result file")
	}

	path := ResultFilePath(dataDir, jobID)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInternal, "write result file %s", path)
	}
	return path, nil
}
