package verify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = openai.ChatModelGPT4_1Mini

// OpenAIVerifier compares person crops through the OpenAI chat API.
type OpenAIVerifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIVerifier(apiKey, model string) *OpenAIVerifier {
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIVerifier{client: &client, model: model}
}

func (v *OpenAIVerifier) Name() string {
	return v.model
}

func (v *OpenAIVerifier) Configured() bool {
	return true
}

func (v *OpenAIVerifier) Compare(ctx context.Context, dropoffCrop, pickupCrop []byte) (*Opinion, error) {
	dropoffURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(dropoffCrop)
	pickupURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pickupCrop)

	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: v.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(comparePersonPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart("First image: drop-off. Second image: pickup."),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    dropoffURL,
								Detail: "low",
							}),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    pickupURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		MaxTokens: openai.Int(200),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	return parseOpinion(resp.Choices[0].Message.Content), nil
}
