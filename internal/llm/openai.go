package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the narrow LLM surface the call side channel needs.
type Client interface {
	// Hints suggests follow-up questions and red flags for the doctor.
	Hints(ctx context.Context, transcript, medicalHistory string) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
}

const (
	hintsPrompt = "You assist a doctor during a live consultation. From the transcript and the " +
		"patient's medical history, list up to five short follow-up questions or red flags. " +
		"Do not diagnose."
	summaryPrompt = "Summarize this doctor-patient consultation for the medical record: complaint, " +
		"findings discussed, plan. Be brief."
)

// OpenAIClient calls the OpenAI chat completion API.
type OpenAIClient struct {
	client       *openai.Client
	chatModel    string
	summaryModel string
}

func NewOpenAIClient(apiKey, chatModel, summaryModel string) *OpenAIClient {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if summaryModel == "" {
		summaryModel = chatModel
	}
	return &OpenAIClient{
		client:       openai.NewClient(apiKey),
		chatModel:    chatModel,
		summaryModel: summaryModel,
	}
}

func (c *OpenAIClient) Hints(ctx context.Context, transcript, medicalHistory string) (string, error) {
	var user strings.Builder
	user.WriteString("Transcript:\n")
	user.WriteString(transcript)
	if medicalHistory != "" {
		user.WriteString("\n\nMedical history:\n")
		user.WriteString(medicalHistory)
	}
	return c.complete(ctx, c.chatModel, hintsPrompt, user.String())
}

func (c *OpenAIClient) Summarize(ctx context.Context, transcript string) (string, error) {
	return c.complete(ctx, c.summaryModel, summaryPrompt, transcript)
}

func (c *OpenAIClient) complete(ctx context.Context, model, system, user string) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
