// Package broker wraps the Kafka client used by every role. It owns the
// topic contract, the bounded-retry connection policy, the JSON event
// encoding, and the at-least-once consume loop.
package broker

// Topic names forming the pipeline contract.
const (
	// TopicScrapingJobs carries job_requested events from the gateway to the scraper.
	TopicScrapingJobs = "scraping-jobs"
	// TopicDataProcessing carries loading_requested events from the scraper to the loader.
	TopicDataProcessing = "data-processing"
	// TopicJobStatusUpdates carries progress and completion events back to the gateway.
	TopicJobStatusUpdates = "job-status-updates"
	// TopicSystemNotifications carries job_failed and system_warning events.
	TopicSystemNotifications = "system-notifications"
)

// Consumer group IDs.
const (
	// GroupScraper is the scraping worker group on scraping-jobs.
	GroupScraper = "scraper-group"
	// GroupLoader is the loading worker group on data-processing.
	GroupLoader = "loader-group"
	// GroupGatewayStatus is the gateway's status listener group on the
	// status and notification topics.
	GroupGatewayStatus = "api_status_listener_group"
)
