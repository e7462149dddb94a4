// Package genai talks to the Gemini generateContent API.
//
// Both engagement analysis and tone rewriting are one-shot prompts that ask
// the model for JSON matching a response schema. The model's answer arrives
// as a JSON string inside candidates[0].content.parts[0].text, so it is
// decoded twice: once for the envelope and once for the payload.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
)

// DefaultBaseURL is the public Generative Language API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client sends prompts to Gemini.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a Gemini client. An empty key is a configuration error
// and is reported here, before any network call is attempted.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.Configuration("GEMINI_API_KEY is not set")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// Go Pattern: Always configure timeouts on HTTP clients.
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// --- Gemini API types ---

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	Temperature      float64        `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Schema is a response schema written as lowercase JSON Schema. The same
// document validates the decoded answer and, converted, is sent to Gemini.
type Schema struct {
	name     string
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewSchema compiles doc. It fails only on a malformed schema document.
func NewSchema(name string, doc map[string]any) (*Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{name: name, doc: doc, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(name string, doc map[string]any) *Schema {
	s, err := NewSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw JSON against the schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Gemini returns the schema in Gemini's OpenAPI subset: upper-case type
// names and no JSON-Schema-only keywords.
func (s *Schema) Gemini() map[string]any {
	return toGeminiSchema(s.doc).(map[string]any)
}

func toGeminiSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			switch k {
			case "$schema", "$id", "additionalProperties":
				continue
			case "type":
				if s, ok := val.(string); ok {
					out[k] = strings.ToUpper(s)
					continue
				}
			}
			out[k] = toGeminiSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toGeminiSchema(val)
		}
		return out
	default:
		return v
	}
}

// GenerateJSON sends prompt, validates the model's JSON answer against
// schema and decodes it into out. One attempt; errors are plain and left
// for the caller to classify.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema, temperature float64, out any) error {
	requestID := uuid.NewString()
	log := c.log.With(zap.String("request_id", requestID), zap.String("model", c.model), zap.String("schema", schema.name))

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema.Gemini(),
			Temperature:      temperature,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Info("🤖 Calling Gemini", zap.Int("prompt_chars", len(prompt)), zap.Float64("temperature", temperature))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close() // Go Pattern: ALWAYS close response bodies!

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("⚠️  Gemini returned an error status", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var envelope generateResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("gemini error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	text, err := firstText(&envelope)
	if err != nil {
		return err
	}

	payload := []byte(strings.TrimSpace(text))
	if err := schema.Validate(payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}

	log.Info("✅ Gemini responded", zap.Duration("duration", time.Since(start)))
	return nil
}

// firstText digs out candidates[0].content.parts[0].text.
func firstText(r *generateResponse) (string, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response")
	}
	cand := r.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("candidate has no content (finish reason %q)", cand.FinishReason)
	}
	return cand.Content.Parts[0].Text, nil
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
