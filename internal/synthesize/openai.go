package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/sudoghut/trend-story-api/internal/models"
)

// OpenAI delegates story generation to a chat-completion model.
type OpenAI struct {
	client openai.Client
	model  string
}

type generatedStory struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Keywords []string `json:"keywords"`
}

// NewOpenAI builds the provider-backed strategy.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{client: client, model: model}, nil
}

func (o *OpenAI) Synthesize(ctx context.Context, key models.TrendKey, signal models.TrendSignal) (models.StoryArtifact, error) {
	prompt := fmt.Sprintf(`Topic: %s
Trend score: %.0f (source: %s)

Write a short news-style story about why this topic is trending.
Respond with JSON: {"title": "...", "body": "2-4 sentences", "keywords": ["..."]}`,
		key.Norm, signal.Score, signal.Source)

	response, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You are a news writer covering trending topics. Answer with JSON only."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(0.4),
		MaxTokens:   openai.Int(600),
	})
	if err != nil {
		return models.StoryArtifact{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(response.Choices) == 0 {
		return models.StoryArtifact{}, fmt.Errorf("%w: empty completion", ErrGeneration)
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	var story generatedStory
	if err := json.Unmarshal([]byte(content), &story); err != nil {
		return models.StoryArtifact{}, fmt.Errorf("%w: parse completion: %v", ErrGeneration, err)
	}
	if story.Title == "" || story.Body == "" {
		return models.StoryArtifact{}, fmt.Errorf("%w: incomplete story", ErrGeneration)
	}

	return models.StoryArtifact{
		Topic:    key.Norm,
		Title:    story.Title,
		Body:     story.Body,
		Keywords: story.Keywords,
	}, nil
}
