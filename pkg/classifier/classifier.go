// Package classifier provides the per-unit credibility scorer backed by an
// OpenAI-compatible endpoint. The client is constructed once at startup and
// shared read-only across all aggregations.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/feedlab/persnews/pkg/config"
)

// Classifier scores text units for credibility
type Classifier struct {
	client *openai.Client
	config config.ClassifierConfig
}

// New creates a classifier from configuration
func New(cfg config.ClassifierConfig) *Classifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &Classifier{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

const systemPrompt = `You are a fact-checking assistant. You are given one sentence or title ` +
	`from a news article. Estimate the probability that the text is truthful and non-deceptive.

Respond with a single decimal number between 0 and 1, nothing else.
- 0 means certainly fabricated or deceptive
- 1 means certainly truthful
Do not explain. Do not add units or punctuation.`

// Score returns the probability in [0,1] that the text unit is non-deceptive
func (c *Classifier) Score(ctx context.Context, text string) (float64, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   8,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}

	// retry up to 3 times if the model returns something unparsable
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return 0, fmt.Errorf("classifier request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return 0, fmt.Errorf("no response from classifier")
		}

		prob, err := parseProbability(resp.Choices[0].Message.Content)
		if err == nil {
			return prob, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

// parseProbability extracts a [0,1] probability from the model output
func parseProbability(content string) (float64, error) {
	s := strings.TrimSpace(content)
	s = strings.Trim(s, "`\"'")
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	s = strings.TrimSuffix(s, "%")

	prob, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse probability %q: %w", content, err)
	}
	if prob > 1 && prob <= 100 { // model answered in percent despite the prompt
		prob /= 100
	}
	if prob < 0 || prob > 1 {
		return 0, fmt.Errorf("probability %v out of range", prob)
	}
	return prob, nil
}
