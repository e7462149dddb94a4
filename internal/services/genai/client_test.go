package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
)

// geminiReply wraps text the way generateContent does.
func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
	return string(b)
}

type capturedRequest struct {
	path   string
	key    string
	method string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, body string) (*Client, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.key = r.URL.Query().Get("key")
		got.method = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", srv.URL, "gemini-test", 5*time.Second, nil)
	require.NoError(t, err)
	return c, got
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient("  ", "", "gemini-test", 0, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}

func TestAnalyze_Success(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK,
		geminiReply(`{"engagementScore":7.5,"sentiment":"Positive","suggestions":["a","b","c","d"]}`))

	res, err := NewAnalysisClient(c).Analyze(context.Background(), "Loving the new cafe downtown!")
	require.NoError(t, err)

	assert.Equal(t, 7.5, res.EngagementScore)
	assert.Equal(t, "Positive", res.Sentiment)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Suggestions)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/models/gemini-test:generateContent", got.path)
	assert.Equal(t, "test-key", got.key)

	contents := got.body["contents"].([]any)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	prompt := first["parts"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, prompt, `Post: "Loving the new cafe downtown!"`)
	assert.Contains(t, prompt, "engagement score out of 10")

	cfg := got.body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.Equal(t, 0.7, cfg["temperature"])

	schema := cfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "NUMBER", props["engagementScore"].(map[string]any)["type"])
	assert.Equal(t, "ARRAY", props["suggestions"].(map[string]any)["type"])
	assert.Equal(t, "STRING", props["suggestions"].(map[string]any)["items"].(map[string]any)["type"])
	assert.ElementsMatch(t, []any{"engagementScore", "sentiment", "suggestions"}, schema["required"])
}

func TestAnalyze_ValuesPassThroughUnchecked(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK,
		geminiReply(`{"engagementScore":42,"sentiment":"Ecstatic","suggestions":["only one"]}`))

	res, err := NewAnalysisClient(c).Analyze(context.Background(), "post")
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.EngagementScore)
	assert.Equal(t, "Ecstatic", res.Sentiment)
	assert.Len(t, res.Suggestions, 1)
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"blocked prompt", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"candidate without parts", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`},
		{"envelope not json", http.StatusOK, `<html>oops</html>`},
		{"payload not json", http.StatusOK, geminiReply(`engagement is high`)},
		{"missing field", http.StatusOK, geminiReply(`{"engagementScore":7,"sentiment":"Positive"}`)},
		{"wrong type", http.StatusOK, geminiReply(`{"engagementScore":"7","sentiment":"Positive","suggestions":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, tt.body)

			res, err := NewAnalysisClient(c).Analyze(context.Background(), "some post")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, apperrors.Is(err, apperrors.KindAnalysis))
			assert.Equal(t, AnalysisFailedMessage, apperrors.MessageOf(err))
		})
	}
}

func TestAnalyze_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c, err := NewClient("secret-key", srv.URL, "gemini-test", time.Second, nil)
	require.NoError(t, err)

	_, err = NewAnalysisClient(c).Analyze(context.Background(), "post")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindAnalysis))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestRewrite_Success(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK,
		geminiReply(`{"casual":"hey","professional":"Dear all","excited":"WOW"}`))

	res, err := NewRewriteClient(c).Rewrite(context.Background(), "We launched a product")
	require.NoError(t, err)
	assert.Equal(t, "hey", res.Casual)
	assert.Equal(t, "Dear all", res.Professional)
	assert.Equal(t, "WOW", res.Excited)

	cfg := got.body["generationConfig"].(map[string]any)
	assert.Equal(t, 0.8, cfg["temperature"])
	prompt := got.body["contents"].([]any)[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"].(string)
	assert.True(t, strings.HasPrefix(prompt, "Rewrite the following social media post in three different tones"))
	assert.Contains(t, prompt, `Original Post: "We launched a product"`)
}

func TestRewrite_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"missing tone", http.StatusOK, geminiReply(`{"casual":"hey","professional":"Dear all"}`)},
		{"malformed payload", http.StatusOK, geminiReply(`{"casual":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, tt.body)

			_, err := NewRewriteClient(c).Rewrite(context.Background(), "post")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindRewrite))
			assert.Equal(t, RewriteFailedMessage, apperrors.MessageOf(err))
		})
	}
}

func TestToGeminiSchema(t *testing.T) {
	in := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"tags"},
	}

	out := toGeminiSchema(in).(map[string]any)
	assert.Equal(t, "OBJECT", out["type"])
	assert.NotContains(t, out, "$schema")
	assert.NotContains(t, out, "additionalProperties")
	tags := out["properties"].(map[string]any)["tags"].(map[string]any)
	assert.Equal(t, "ARRAY", tags["type"])
	assert.Equal(t, "STRING", tags["items"].(map[string]any)["type"])

	// the input document is left alone
	assert.Equal(t, "object", in["type"])
}
