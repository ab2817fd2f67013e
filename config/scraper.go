package config

import (
	"strings"
	"time"
)

// ScraperConfig contains scraper worker configuration.
type ScraperConfig struct {
	// GoogleAPIKey enables LLM skill extraction when non-empty. The gateway
	// injects this key into each job_requested payload; the scraper reads it
	// from the event parameters, so this value only matters in gateway mode.
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// DataDir is where per-job result files are written.
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`

	// BaseURL is the listing-site search endpoint.
	BaseURL string `env:"SCRAPER_BASE_URL" envDefault:"https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"`

	// FetchTimeout caps one page or detail fetch.
	FetchTimeout time.Duration `env:"SCRAPER_FETCH_TIMEOUT" envDefault:"30s"`

	// MinDetailDelay/MaxDetailDelay bound the randomized pause before each
	// detail-page fetch.
	MinDetailDelay time.Duration `env:"SCRAPER_MIN_DETAIL_DELAY" envDefault:"1500ms"`
	MaxDetailDelay time.Duration `env:"SCRAPER_MAX_DETAIL_DELAY" envDefault:"5s"`

	// MinPageDelay/MaxPageDelay bound the randomized pause between result pages.
	MinPageDelay time.Duration `env:"SCRAPER_MIN_PAGE_DELAY" envDefault:"3s"`
	MaxPageDelay time.Duration `env:"SCRAPER_MAX_PAGE_DELAY" envDefault:"7s"`

	// LLMTimeout caps a single skill-extraction request.
	LLMTimeout time.Duration `env:"SCRAPER_LLM_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to scraper configuration values.
func (s *ScraperConfig) Sanitize() {
	s.DataDir = strings.TrimSpace(s.DataDir)
	if s.DataDir == "" {
		s.DataDir = "/app/data"
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = 30 * time.Second
	}
	if s.MinDetailDelay <= 0 {
		s.MinDetailDelay = 1500 * time.Millisecond
	}
	if s.MaxDetailDelay < s.MinDetailDelay {
		s.MaxDetailDelay = s.MinDetailDelay
	}
	if s.MinPageDelay <= 0 {
		s.MinPageDelay = 3 * time.Second
	}
	if s.MaxPageDelay < s.MinPageDelay {
		s.MaxPageDelay = s.MinPageDelay
	}
	if s.LLMTimeout <= 0 {
		s.LLMTimeout = 60 * time.Second
	}
}
