package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

var errEmptyCompletion = errors.New("completion has no content")

// Generate asks the chat model for rewrite options and parses its JSON reply.
func (c *Client) Generate(ctx context.Context, req service.GenerationRequest) ([]service.GeneratedOption, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.genModel,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	})
	if err != nil {
		return nil, classifyError(fmt.Errorf("chat completion failed: %w", err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, domain.NewProviderError(providerName, true, errEmptyCompletion)
	}

	options, err := parseOptions(resp.Choices[0].Message.Content)
	if err != nil {
		// a fresh sample usually parses
		return nil, domain.NewProviderError(providerName, true, err)
	}
	return options, nil
}

type optionsEnvelope struct {
	Options []service.GeneratedOption `json:"options"`
}

// parseOptions accepts {"options": [...]} or a bare array, optionally
// wrapped in a markdown code fence.
func parseOptions(content string) ([]service.GeneratedOption, error) {
	content = stripCodeFence(strings.TrimSpace(content))

	if strings.HasPrefix(content, "[") {
		var options []service.GeneratedOption
		if err := json.Unmarshal([]byte(content), &options); err != nil {
			return nil, fmt.Errorf("invalid options array: %w", err)
		}
		return options, nil
	}

	var env optionsEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("invalid options object: %w", err)
	}
	if env.Options == nil {
		return nil, errors.New(`response is missing "options"`)
	}
	return env.Options, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
