package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// Summarizer produces a free-text analysis of a call transcript. The output
// is unstructured; callers parse best-effort fields (sentiment) out of it.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

const systemPrompt = "You are an AI assistant that analyzes call transcripts. " +
	"Provide a concise summary, identify the sentiment (positive/neutral/negative), " +
	"extract lead information (name, email, company, interest, budget), and list action items."

const userPromptTemplate = "Analyze this call transcript and provide:\n" +
	"1. Summary (2-3 sentences)\n" +
	"2. Sentiment (positive/neutral/negative)\n" +
	"3. Lead info (name, email, company, interest, budget if mentioned)\n" +
	"4. Action items\n\nTranscript:\n%s"

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Summarizer = (*Client)(nil)

// NewClient creates a summarization client for the given gateway.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Summarize sends the transcript to the gateway and returns the raw analysis
// text. Errors are wrapped as apperrors.ErrSummarization so callers can
// branch on the failure class.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, transcript)},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %w", apperrors.ErrSummarization, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build request: %w", apperrors.ErrSummarization, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", apperrors.ErrSummarization, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", apperrors.ErrSummarization, err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.FromContext(ctx).Warn("Summarization gateway returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.Int("body_len", len(body)))
		return "", fmt.Errorf("%w: gateway returned status %d", apperrors.ErrSummarization, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", apperrors.ErrSummarization, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: gateway error: %s", apperrors.ErrSummarization, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", apperrors.ErrSummarization)
	}

	return parsed.Choices[0].Message.Content, nil
}
