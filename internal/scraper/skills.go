package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmespath-community/go-jmespath"

	apperrors "github.com/jobsift/jobsift/internal/errors"
)

const (
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

	// candidateTextPath pulls the generated text out of the response
	// envelope without binding to the full candidate structure.
	candidateTextPath = "candidates[0].content.parts[0].text"

	skillsPrompt = `Extract the technical and professional skills required by the following job description.
Respond with a JSON array of short skill strings and nothing else.

Job description:
%s`
)

// SkillExtractor turns a job description into a skill list. Stubbed in
// worker tests.
type SkillExtractor interface {
	Extract(ctx context.Context, description string) ([]string, error)
}

// GeminiExtractor calls the generative-language REST API.
type GeminiExtractor struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewGeminiExtractor builds an extractor; the per-request timeout is fixed
// by the caller's configuration.
func NewGeminiExtractor(apiKey string, timeout time.Duration, logger *slog.Logger) *GeminiExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiExtractor{
		apiKey:   apiKey,
		endpoint: geminiEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "skill_extractor"),
	}
}

// Extract sends the description to the LLM and parses the returned skill
// array. Any failure is the caller's signal to fall back to an empty list.
func (g *GeminiExtractor) Extract(ctx context.Context, description string) ([]string, error) {
	if strings.TrimSpace(description) == "" {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{
				{"text": fmt.Sprintf(skillsPrompt, description)},
			}},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode llm request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build llm request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternal, "llm request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternal, "read llm response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.External(fmt.Sprintf("llm request: status %d", resp.StatusCode))
	}

	return parseSkillsResponse(payload)
}

// parseSkillsResponse extracts the candidate text via JMESPath and decodes
// the JSON array the model was asked for, tolerating markdown fencing.
func parseSkillsResponse(payload []byte) ([]string, error) {
	var envelope any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternal, "decode llm response")
	}

	text, err := jmespath.Search(candidateTextPath, envelope)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternal, "search llm response")
	}
	raw, ok := text.(string)
	if !ok || raw == "" {
		return nil, apperrors.External("llm response has no candidate text")
	}

	raw = trimCodeFence(raw)
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternal, "decode skill array")
	}
	return skills, nil
}

func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
