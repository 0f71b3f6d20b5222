// Package analysis turns finished call transcripts into structured records
// through the Gemini generateContent REST API.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/deptdesk/deskline/internal/reliability"
)

// ErrAnalysisFailed wraps every terminal failure of the analysis API.
var ErrAnalysisFailed = errors.New("analysis request failed")

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultFlashModel  = "gemini-3-flash-preview"
	defaultProModel    = "gemini-3-pro-preview"
	defaultRetries     = 3
	defaultBackoffBase = 2 * time.Second
	backoffCap         = 30 * time.Second
)

// Client is a minimal generateContent client with exponential backoff on
// rate limits and server errors.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	Retries     int
	BackoffBase time.Duration

	// OnRetry is invoked before each retried request, if set.
	OnRetry func()

	log *zap.SugaredLogger
}

func NewClient(apiKey string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		BaseURL:     defaultBaseURL,
		APIKey:      apiKey,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		Retries:     defaultRetries,
		BackoffBase: defaultBackoffBase,
		log:         log,
	}
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []requestContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends the prompt to the named model and returns the text of
// the first candidate. Retryable statuses back off and try again until the
// retries are exhausted.
func (c *Client) GenerateText(ctx context.Context, model, prompt string, cfg *generationConfig) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrAnalysisFailed, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.BaseURL, model, url.QueryEscape(c.APIKey))

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if c.OnRetry != nil {
				c.OnRetry()
			}
			delay := reliability.Backoff(attempt-1, c.BackoffBase, backoffCap)
			c.log.Warnw("analysis retry", "model", model, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrAnalysisFailed, ctx.Err())
			case <-time.After(delay):
			}
		}

		text, retryable, err := c.doOnce(ctx, endpoint, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// network failures are treated like server errors
		return "", true, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", reliability.IsRetryableHTTPStatus(resp.StatusCode),
			fmt.Errorf("%w: status %d: %s", ErrAnalysisFailed, resp.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("%w: decode response: %v", ErrAnalysisFailed, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("%w: empty response", ErrAnalysisFailed)
	}
	return out.Candidates[0].Content.Parts[0].Text, false, nil
}
