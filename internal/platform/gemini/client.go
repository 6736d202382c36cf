package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/httpx"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Blob is an inline binary attachment (e.g. an edital PDF) embedded in a
// user turn.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of a message: either text or inline data.
type Part struct {
	Text   string
	Inline *Blob
}

// Message is a role-tagged conversation turn.
type Message struct {
	Role  string
	Parts []Part
}

func Text(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Client is the structured-output model client used by the validation loop.
// A call is stateless given a message list; retry policy belongs entirely to
// the caller.
type Client interface {
	// GenerateStructured sends the full conversation plus a JSON-schema
	// descriptor and returns the model's JSON output. The schema name is
	// used for logging and telemetry only.
	GenerateStructured(ctx context.Context, system string, history []Message, schemaName string, schema map[string]any) (json.RawMessage, error)
}

// WithModel returns a client that uses the provided model for generation.
// If model is empty or base is nil, it returns the base client unchanged.
func WithModel(base Client, model string) Client {
	model = strings.TrimSpace(model)
	if base == nil || model == "" {
		return base
	}
	if c, ok := base.(*client); ok {
		return c.cloneWithModel(model)
	}
	return base
}

type client struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	httpClient  *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-2.5-flash"
	}

	timeoutSec := 180
	if v := os.Getenv("GEMINI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	var tempPtr *float64
	if v := strings.TrimSpace(os.Getenv("GEMINI_TEMPERATURE")); v != "" {
		low := strings.ToLower(v)
		if low != "off" && low != "none" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				tempPtr = &f
			}
		}
	} else {
		temp := 0.2
		tempPtr = &temp
	}

	return &client{
		log:         log.With("service", "GeminiClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: tempPtr,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) cloneWithModel(model string) *client {
	if c == nil || strings.TrimSpace(model) == "" {
		return c
	}
	clone := *c
	clone.model = strings.TrimSpace(model)
	return &clone
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// -------------------- generateContent wire types --------------------

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *wireBlob `json:"inline_data,omitempty"`
}

type wireBlob struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"` // encoding/json base64-encodes []byte
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type generationConfig struct {
	Temperature        *float64       `json:"temperature,omitempty"`
	ResponseMIMEType   string         `json:"responseMimeType,omitempty"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
}

type generateRequest struct {
	Contents          []wireContent     `json:"contents"`
	SystemInstruction *wireContent      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func toWireContents(history []Message) []wireContent {
	out := make([]wireContent, 0, len(history))
	for _, m := range history {
		wc := wireContent{Role: m.Role}
		for _, p := range m.Parts {
			if p.Inline != nil {
				wc.Parts = append(wc.Parts, wirePart{InlineData: &wireBlob{
					MIMEType: p.Inline.MIMEType,
					Data:     p.Inline.Data,
				}})
				continue
			}
			if p.Text != "" {
				wc.Parts = append(wc.Parts, wirePart{Text: p.Text})
			}
		}
		if len(wc.Parts) == 0 {
			continue
		}
		out = append(out, wc)
	}
	return out
}

func (c *client) GenerateStructured(ctx context.Context, system string, history []Message, schemaName string, schema map[string]any) (json.RawMessage, error) {
	if strings.TrimSpace(schemaName) == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	contents := toWireContents(history)
	if len(contents) == 0 {
		return nil, errors.New("empty message history")
	}

	req := generateRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			Temperature:        c.temperature,
			ResponseMIMEType:   "application/json",
			ResponseJSONSchema: schema,
		},
	}
	if s := strings.TrimSpace(system); s != "" {
		req.SystemInstruction = &wireContent{Parts: []wirePart{{Text: s}}}
	}

	path := "/v1beta/models/" + c.model + ":generateContent"
	start := time.Now()

	resp, raw, err := c.doOnce(ctx, "POST", path, req)
	status := "0"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		if metrics := observability.Current(); metrics != nil {
			metrics.ObserveLLMRequest(c.model, schemaName, status, time.Since(start), 0, 0)
		}
		c.log.Warn("Gemini request failed",
			"schema", schemaName,
			"status", status,
			"retryable", httpx.IsRetryableError(err),
			"retry_after", httpx.RetryAfterDuration(resp, 0, time.Minute).String(),
			"error", err.Error(),
		)
		return nil, err
	}

	var out generateResponse
	if uErr := json.Unmarshal(raw, &out); uErr != nil {
		return nil, fmt.Errorf("gemini decode error: %w; raw=%s", uErr, string(raw))
	}
	if metrics := observability.Current(); metrics != nil {
		metrics.ObserveLLMRequest(c.model, schemaName, status, time.Since(start),
			out.UsageMetadata.PromptTokenCount, out.UsageMetadata.CandidatesTokenCount)
	}

	if out.PromptFeedback != nil && strings.TrimSpace(out.PromptFeedback.BlockReason) != "" {
		return nil, fmt.Errorf("gemini prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	text := extractCandidateText(out)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text candidate in gemini response")
	}
	return json.RawMessage(text), nil
}

func extractCandidateText(resp generateResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				b.WriteString(p.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
