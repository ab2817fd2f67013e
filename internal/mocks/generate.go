// Package mocks provides generated gomock doubles for the pipeline's ports.
//
// Mocks are generated with go.uber.org/mock via go:generate directives.
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
package mocks

// MockPublisher covers the broker publishing port (Publish, Ping, Close).
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=publisher_mock.go github.com/jobsift/jobsift/internal/broker Publisher
