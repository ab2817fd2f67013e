package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jobsift/jobsift/internal/errors"
)

const geminiResponse = `{
  "candidates": [
    {"content": {"parts": [{"text": "` + "```json\\n[\\\"Python\\\", \\\"SQL\\\"]\\n```" + `"}]}}
  ]
}`

func TestGeminiExtractorParsesFencedArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		_, _ = w.Write([]byte(geminiResponse))
	}))
	defer srv.Close()

	extractor := NewGeminiExtractor("secret", 5*time.Second, slog.Default())
	extractor.endpoint = srv.URL

	skills, err := extractor.Extract(context.Background(), "We need Python and SQL.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python", "SQL"}, skills)
}

func TestGeminiExtractorEmptyDescriptionShortCircuits(t *testing.T) {
	extractor := NewGeminiExtractor("secret", time.Second, slog.Default())
	skills, err := extractor.Extract(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, skills)
}

func TestGeminiExtractorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	extractor := NewGeminiExtractor("bad", time.Second, slog.Default())
	extractor.endpoint = srv.URL

	_, err := extractor.Extract(context.Background(), "desc")
	require.Error(t, err)
	assert.True(t, apperrors.IsExternal(err))
}

func TestParseSkillsResponseVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{
			name:    "bare array",
			payload: `{"candidates":[{"content":{"parts":[{"text":"[\"Go\",\"Kafka\"]"}]}}]}`,
			want:    []string{"Go", "Kafka"},
		},
		{
			name:    "no candidates",
			payload: `{"candidates":[]}`,
			wantErr: true,
		},
		{
			name:    "text is not json",
			payload: `{"candidates":[{"content":{"parts":[{"text":"sorry, cannot help"}]}}]}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			skills, err := parseSkillsResponse([]byte(tc.payload))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, skills)
		})
	}
}

func TestTrimCodeFence(t *testing.T) {
	assert.Equal(t, `["Go"]`, trimCodeFence("```json\n[\"Go\"]\n```"))
	assert.Equal(t, `["Go"]`, trimCodeFence("```\n[\"Go\"]\n```"))
	assert.Equal(t, `["Go"]`, trimCodeFence(`["Go"]`))
}
