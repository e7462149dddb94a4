package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("too big"), KindValidation},
		{"extraction with cause", Extraction("ocr failed", cause), KindExtraction},
		{"wrapped analysis", fmt.Errorf("request: %w", Analysis("bad status", cause)), KindAnalysis},
		{"rewrite", Rewrite("no payload", nil), KindRewrite},
		{"configuration", Configuration("GEMINI_API_KEY is not set"), KindConfiguration},
		{"plain error", cause, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("status 500")
	err := Analysis("Failed to get analysis from the AI. Please try again.", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindAnalysis))
	assert.False(t, Is(err, KindRewrite))
	assert.False(t, Is(nil, KindAnalysis))
	assert.Equal(t, "analysis_error: Failed to get analysis from the AI. Please try again.: status 500", err.Error())
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "too big", MessageOf(fmt.Errorf("submit: %w", Validation("too big"))))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
}
