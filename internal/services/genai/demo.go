package genai

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// DemoAnalyzer scores posts with local heuristics. Used when
// ANALYSIS_MODE=demo so the service runs without an API key. The numbers
// are plausible, not meaningful.
type DemoAnalyzer struct {
	// Delay simulates model latency.
	Delay time.Duration
}

var (
	positiveWords = []string{"amazing", "love", "great", "awesome", "happy", "excited", "best", "divine", "recommend", "beautiful", "fantastic", "wonderful", "fun", "thanks", "grateful"}
	negativeWords = []string{"bad", "hate", "terrible", "awful", "sad", "worst", "angry", "disappointed", "broken", "boring", "annoying", "sorry", "problem", "fail"}
	ctaPhrases    = []string{"comment", "share", "tag", "follow", "link in bio", "let me know", "click", "sign up", "join", "dm"}

	fallbackSuggestions = []string{
		"Open with a strong hook in the first line.",
		"Pair the text with an eye-catching visual.",
		"Post when your audience is most active.",
		"Mention or tag relevant accounts to widen your reach.",
	}
)

// postFeatures are the signals the heuristics look at.
type postFeatures struct {
	chars    int
	hashtags int
	emoji    bool
	question bool
	cta      bool
	positive int
	negative int
}

func inspect(text string) postFeatures {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	return postFeatures{
		chars: len([]rune(text)),
		hashtags: lo.CountBy(strings.Fields(text), func(f string) bool {
			return len(f) > 1 && strings.HasPrefix(f, "#")
		}),
		emoji:    strings.IndexFunc(text, func(r rune) bool { return unicode.Is(unicode.So, r) }) >= 0,
		question: strings.Contains(text, "?"),
		cta:      lo.SomeBy(ctaPhrases, func(p string) bool { return strings.Contains(lower, p) }),
		positive: lo.CountBy(words, func(w string) bool { return lo.Contains(positiveWords, w) }),
		negative: lo.CountBy(words, func(w string) bool { return lo.Contains(negativeWords, w) }),
	}
}

// Analyze implements Analyzer.
func (d DemoAnalyzer) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	if err := wait(ctx, d.Delay); err != nil {
		return nil, apperrors.Analysis(AnalysisFailedMessage, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Analysis(AnalysisFailedMessage, errEmptyText)
	}

	f := inspect(text)
	return &models.AnalysisResult{
		EngagementScore: demoScore(f),
		Sentiment:       demoSentiment(f),
		Suggestions:     demoSuggestions(f),
	}, nil
}

func demoScore(f postFeatures) float64 {
	score := 5.0
	switch {
	case f.hashtags >= 1 && f.hashtags <= 5:
		score += 1
	case f.hashtags > 10:
		score -= 0.5
	}
	if f.emoji {
		score += 0.5
	}
	if f.question {
		score += 0.5
	}
	if f.cta {
		score += 1
	}
	switch {
	case f.chars < 20:
		score -= 1
	case f.chars <= 280:
		score += 1
	case f.chars > 600:
		score -= 1
	}
	if f.positive > f.negative {
		score += 0.5
	}
	score = math.Max(1, math.Min(10, score))
	return math.Round(score*10) / 10
}

func demoSentiment(f postFeatures) string {
	switch {
	case f.positive > f.negative:
		return "Positive"
	case f.negative > f.positive:
		return "Negative"
	default:
		return "Neutral"
	}
}

// demoSuggestions returns exactly four suggestions, contextual ones first.
func demoSuggestions(f postFeatures) []string {
	var out []string
	if f.hashtags == 0 {
		out = append(out, "Add 2-3 relevant hashtags to reach a wider audience.")
	}
	if f.hashtags > 10 {
		out = append(out, "Cut back on hashtags; a handful of targeted ones works better.")
	}
	if !f.question {
		out = append(out, "End with a question to invite comments.")
	}
	if !f.emoji {
		out = append(out, "Add an emoji or two to make the post stand out in the feed.")
	}
	if !f.cta {
		out = append(out, "Include a clear call to action, like asking readers to share.")
	}
	if f.chars > 600 {
		out = append(out, "Trim the post; shorter posts tend to get more engagement.")
	}
	out = append(out, fallbackSuggestions...)
	return lo.Uniq(out)[:4]
}

// DemoRewriter rewrites posts with fixed templates.
type DemoRewriter struct {
	Delay time.Duration
}

// Rewrite implements Rewriter.
func (d DemoRewriter) Rewrite(ctx context.Context, text string) (*models.RewriteResult, error) {
	if err := wait(ctx, d.Delay); err != nil {
		return nil, apperrors.Rewrite(RewriteFailedMessage, err)
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, apperrors.Rewrite(RewriteFailedMessage, errEmptyText)
	}

	plain := stripDecorations(body)
	return &models.RewriteResult{
		Casual:       "Hey friends! " + plain + " 😊",
		Professional: "We are pleased to share the following update. " + plain,
		Excited:      "WOW!!! " + plain + " 🎉🎉🎉",
	}, nil
}

// stripDecorations drops hashtags and symbol runes and collapses spaces.
func stripDecorations(text string) string {
	words := lo.Filter(strings.Fields(text), func(w string, _ int) bool {
		return !strings.HasPrefix(w, "#")
	})
	joined := strings.Join(words, " ")
	joined = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.So, r) || r == '\uFE0F' {
			return -1
		}
		return r
	}, joined)
	return strings.Join(strings.Fields(joined), " ")
}

var errEmptyText = errors.New("empty post text")

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
