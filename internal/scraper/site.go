// Package scraper implements the scraping worker: it consumes job_requested
// events, walks the listing site's guest search pages, optionally enriches
// each listing with LLM-extracted skills, writes the per-job result file,
// and hands off to the loader.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// PageSize is the listing count per guest search page.
const PageSize = 25

// timeFilterParams maps the API's time_filter vocabulary onto the site's
// f_TPR seconds-window parameter.
var timeFilterParams = map[string]string{
	model.TimeFilter24h: "r86400",
	model.TimeFilter1w:  "r604800",
	model.TimeFilter1m:  "r2592000",
}

// SearchQuery identifies one results page.
type SearchQuery struct {
	Title      string
	Location   string
	TimeFilter string
	// Start is the zero-based offset of the first listing on the page.
	Start int
}

// SearchResult is one parsed results page. Cards counts every card the page
// carried, including ones dropped as incomplete: pagination must keep going
// while the site still returns cards, even if few of them are usable.
type SearchResult struct {
	Listings []model.JobListing
	Cards    int
}

// ListingSource fetches and parses listing pages. Satisfied by SiteClient
// and stubbed in worker tests.
type ListingSource interface {
	SearchPage(ctx context.Context, q SearchQuery) (SearchResult, error)
	FetchDescription(ctx context.Context, listingURL string) (string, error)
}

// SiteClient scrapes the listing site's guest search endpoint.
type SiteClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSiteClient builds a client with the configured fetch timeout.
func NewSiteClient(cfg config.ScraperConfig, logger *slog.Logger) *SiteClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		logger:  logger.With("component", "site_client"),
	}
}

// SearchPage fetches one results page and extracts the listing cards. Cards
// missing any of title, company, or url are skipped but still counted in the
// result's Cards total.
func (s *SiteClient) SearchPage(ctx context.Context, q SearchQuery) (SearchResult, error) {
	params := url.Values{}
	params.Set("keywords", q.Title)
	params.Set("location", q.Location)
	params.Set("start", fmt.Sprintf("%d", q.Start))
	if tpr, ok := timeFilterParams[q.TimeFilter]; ok {
		params.Set("f_TPR", tpr)
	}

	doc, err := s.fetchDocument(ctx, s.baseURL+"?"+params.Encode())
	if err != nil {
		return SearchResult{}, err
	}

	var result SearchResult
	doc.Find("div.base-card, li div.base-search-card").Each(func(_ int, card *goquery.Selection) {
		result.Cards++
		listing := model.JobListing{
			SearchQuery: q.Title,
			Title:       cleanText(card.Find("h3.base-search-card__title").First().Text()),
			Company:     cleanText(card.Find("h4.base-search-card__subtitle").First().Text()),
			Location:    cleanText(card.Find("span.job-search-card__location").First().Text()),
			DatePosted:  cleanText(card.Find("time").First().AttrOr("datetime", "")),
		}
		if href, ok := card.Find("a.base-card__full-link").First().Attr("href"); ok {
			listing.URL = stripTrackingQuery(href)
		}

		if listing.Title == "" || listing.Company == "" || listing.URL == "" {
			s.logger.DebugContext(ctx, "skipping incomplete listing card",
				"title", listing.Title, "company", listing.Company)
			return
		}
		result.Listings = append(result.Listings, listing)
	})

	return result, nil
}

// FetchDescription fetches a listing's detail page and extracts the job
// description text.
func (s *SiteClient) FetchDescription(ctx context.Context, listingURL string) (string, error) {
	doc, err := s.fetchDocument(ctx, listingURL)
	if err != nil {
		return "", err
	}

	description := cleanText(doc.Find("div.show-more-less-html__markup").First().Text())
	if description == "" {
		description = cleanText(doc.Find("div.description__text").First().Text())
	}
	return description, nil
}

func (s *SiteClient) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeExternal, "build request for %s", rawURL)
	}
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeExternal, "fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.External(fmt.Sprintf("fetch %s: status %d", rawURL, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeExternal, "parse %s", rawURL)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripTrackingQuery drops the query string from listing URLs so the same
// posting discovered twice produces the same job_url.
func stripTrackingQuery(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx != -1 {
		return raw[:idx]
	}
	return raw
}
