package genai

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
)

const brunchPost = `Just had the most amazing brunch at The Sunny Side! ☀️🥞 The avocado toast was divine. Highly recommend this spot for a weekend treat! #brunch #foodie #weekendvibes`

func TestDemoAnalyzer(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantSentiment string
		wantMinScore  float64
		wantMaxScore  float64
	}{
		{"upbeat post with hashtags", brunchPost, "Positive", 7, 10},
		{"complaint", "Worst service ever, terrible and disappointed.", "Negative", 1, 7},
		{"flat statement", "The meeting is at noon.", "Neutral", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DemoAnalyzer{}.Analyze(context.Background(), tt.text)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSentiment, res.Sentiment)
			assert.GreaterOrEqual(t, res.EngagementScore, tt.wantMinScore)
			assert.LessOrEqual(t, res.EngagementScore, tt.wantMaxScore)
			assert.Len(t, res.Suggestions, 4)
		})
	}
}

func TestDemoAnalyzer_Deterministic(t *testing.T) {
	a, err := DemoAnalyzer{}.Analyze(context.Background(), brunchPost)
	require.NoError(t, err)
	b, err := DemoAnalyzer{}.Analyze(context.Background(), brunchPost)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDemoAnalyzer_ContextualSuggestions(t *testing.T) {
	res, err := DemoAnalyzer{}.Analyze(context.Background(), "plain words with nothing else going on here")
	require.NoError(t, err)
	assert.Contains(t, res.Suggestions, "Add 2-3 relevant hashtags to reach a wider audience.")
	assert.Contains(t, res.Suggestions, "End with a question to invite comments.")
}

func TestDemoAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DemoAnalyzer{Delay: time.Minute}.Analyze(ctx, brunchPost)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindAnalysis))
}

func TestDemoRewriter(t *testing.T) {
	res, err := DemoRewriter{}.Rewrite(context.Background(), brunchPost)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Casual)
	assert.NotEmpty(t, res.Professional)
	assert.NotEmpty(t, res.Excited)
	assert.NotContains(t, res.Professional, "#brunch")
	assert.NotContains(t, res.Professional, "🥞")
	assert.True(t, strings.HasSuffix(res.Professional, "weekend treat!"))
}

func TestDemoRewriter_Empty(t *testing.T) {
	_, err := DemoRewriter{}.Rewrite(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindRewrite))
}
