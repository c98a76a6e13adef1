// Package cohere wraps the Cohere v1 chat and embed endpoints behind a
// circuit breaker. Callers treat every error, including an open
// breaker, as a signal to degrade to their deterministic fallback.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/yungbote/hermes-backend/internal/pkg/httpx"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

// EmbeddingDimensions is the vector width of embed-english-v3.0.
const EmbeddingDimensions = 1024

const (
	defaultBaseURL    = "https://api.cohere.ai"
	defaultChatModel  = "command-r-08-2024"
	defaultEmbedModel = "embed-english-v3.0"
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
)

// ErrNotConfigured is returned when no API key was provided. The
// service boots without one and every caller falls back.
var ErrNotConfigured = errors.New("cohere: api key not configured")

type InputType string

const (
	InputTypeSearchQuery    InputType = "search_query"
	InputTypeSearchDocument InputType = "search_document"
)

type ChatRequest struct {
	Message     string
	Temperature float64
	MaxTokens   int
}

type ChatResponse struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

func (r ChatResponse) TotalTokens() int64 { return r.InputTokens + r.OutputTokens }

type EmbedRequest struct {
	Texts     []string
	InputType InputType
}

type EmbedResponse struct {
	Embeddings  [][]float64
	InputTokens int64
}

// Client is the LLM surface used by query expansion and embedding.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error)
	Configured() bool
	EmbedModel() string
}

type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
	MaxRetries int
}

type exchange struct {
	resp *http.Response
	raw  []byte
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[exchange]
	maxRetries int
}

func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	chatModel := strings.TrimSpace(cfg.ChatModel)
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	clientLog := log.With("client", "CohereClient")
	breaker := gobreaker.NewCircuitBreaker[exchange](gobreaker.Settings{
		Name:        "cohere",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A malformed request must not trip the breaker; only
		// infra-type failures count.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var sc httpx.HTTPStatusCoder
			if errors.As(err, &sc) {
				code := sc.HTTPStatusCode()
				return code >= 400 && code < 500 && !httpx.IsRetryableHTTPStatus(code)
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clientLog.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &client{
		log:        clientLog,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		maxRetries: maxRetries,
	}, nil
}

func (c *client) Configured() bool   { return c.apiKey != "" }
func (c *client) EmbedModel() string { return c.embedModel }

func (c *client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	payload := chatPayload{
		Model:       c.chatModel,
		Message:     req.Message,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	var body chatBody
	if err := c.do(ctx, "/v1/chat", payload, &body); err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{
		Text:         body.Text,
		InputTokens:  body.Meta.BilledUnits.InputTokens,
		OutputTokens: body.Meta.BilledUnits.OutputTokens,
	}, nil
}

func (c *client) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return EmbedResponse{Embeddings: [][]float64{}}, nil
	}
	inputType := req.InputType
	if inputType == "" {
		inputType = InputTypeSearchDocument
	}
	payload := embedPayload{
		Model:     c.embedModel,
		Texts:     req.Texts,
		InputType: string(inputType),
		Truncate:  "END",
	}
	var body embedBody
	if err := c.do(ctx, "/v1/embed", payload, &body); err != nil {
		return EmbedResponse{}, err
	}
	if len(body.Embeddings) != len(req.Texts) {
		return EmbedResponse{}, fmt.Errorf("cohere embed returned %d vectors for %d texts", len(body.Embeddings), len(req.Texts))
	}
	return EmbedResponse{
		Embeddings:  body.Embeddings,
		InputTokens: body.Meta.BilledUnits.InputTokens,
	}, nil
}

type cohereHTTPError struct {
	StatusCode int
	Body       string
}

func (e *cohereHTTPError) Error() string {
	return fmt.Sprintf("cohere http %d: %s", e.StatusCode, e.Body)
}

func (e *cohereHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, path string, body any) (exchange, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return exchange{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return exchange{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exchange{}, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return exchange{resp: resp}, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return exchange{resp: resp, raw: raw}, &cohereHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return exchange{resp: resp, raw: raw}, nil
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ex, err := c.breaker.Execute(func() (exchange, error) {
			return c.doOnce(ctx, path, body)
		})
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(ex.raw, out); uErr != nil {
				return fmt.Errorf("cohere decode error: %w", uErr)
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(ex.resp, backoff, 5*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Cohere request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// EstimateTokens approximates billed tokens at four characters per
// token; every non-empty text costs at least one.
func EstimateTokens(texts ...string) int64 {
	var total int64
	for _, text := range texts {
		if text == "" {
			continue
		}
		tokens := int64(len(text) / 4)
		if tokens < 1 {
			tokens = 1
		}
		total += tokens
	}
	return total
}

// CosineSimilarity returns the cosine of the angle between two equal
// length vectors, or 0 when either norm is zero or lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsZeroVector reports whether every component is zero, the shape a
// failed embed degrades to.
func IsZeroVector(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

type chatPayload struct {
	Model       string  `json:"model"`
	Message     string  `json:"message"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type chatBody struct {
	Text string `json:"text"`
	Meta meta   `json:"meta"`
}

type embedPayload struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type embedBody struct {
	Embeddings [][]float64 `json:"embeddings"`
	Meta       meta        `json:"meta"`
}

type meta struct {
	BilledUnits billedUnits `json:"billed_units"`
}

type billedUnits struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
