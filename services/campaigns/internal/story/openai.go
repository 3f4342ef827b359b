package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "You are a compassionate storyteller helping people create authentic fundraising stories. " +
	"Write in first person, be genuine and heartfelt."

// OpenAIGenerator asks a chat-completion model for the story. Any failure
// (transport, non-2xx status, empty choice list) yields Fallback.
type OpenAIGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

// OpenAIOptions configures NewOpenAI. Zero values pick defaults.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewOpenAI creates a chat-completion backed generator.
func NewOpenAI(opts OpenAIOptions) *OpenAIGenerator {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &OpenAIGenerator{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// retryableError marks responses worth another attempt (429 and 5xx).
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) string {
	prompt := userPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		text, err := g.complete(ctx, prompt)
		if err == nil {
			return Cap(text)
		}
		lastErr = err

		if _, ok := err.(retryableError); !ok || attempt == g.maxRetries {
			break
		}
		log.Printf("story: attempt %d/%d failed: %v", attempt, g.maxRetries, err)

		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			log.Printf("story: giving up: %v", ctx.Err())
			return Fallback
		}
	}

	log.Printf("story: generation failed, using fallback: %v", lastErr)
	return Fallback
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", retryableError{fmt.Errorf("http post: %w", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", retryableError{fmt.Errorf("openai returned %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("invalid response: no choices")
	}
	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("invalid response: empty message")
	}
	return text, nil
}

func userPrompt(req Request) string {
	switch req.Mode {
	case ModeKeywords:
		return fmt.Sprintf("Write a compelling 400-500 character fundraising story based on these keywords: %s. "+
			"The story should be personal, emotional, and explain why financial help is needed. "+
			"Make it authentic and relatable. Focus on the human element and urgency. "+
			"Keep it under 500 characters including spaces.", req.Keywords)
	case ModeFill:
		return fmt.Sprintf("Complete this fundraising story: %q. "+
			"Make it compelling and emotional while staying under 500 characters total. "+
			"Fill in missing details that would make donors want to help. "+
			"Keep the existing tone and style.", req.ExistingStory)
	default:
		return "Write a compelling 400-500 character fundraising story for a medical emergency or personal crisis. " +
			"Make it personal, emotional, and explain the urgent need for financial help. " +
			"Include specific details that make it authentic and relatable. " +
			"Keep it under 500 characters including spaces."
	}
}

// New returns the generator named by provider ("template" or "openai").
// An openai provider without an API key degrades to templates.
func New(provider string, opts OpenAIOptions) Generator {
	if strings.EqualFold(provider, "openai") {
		if opts.APIKey == "" {
			log.Println("story: STORY_PROVIDER=openai but OPENAI_API_KEY is empty, using templates")
			return NewTemplate()
		}
		return NewOpenAI(opts)
	}
	return NewTemplate()
}
