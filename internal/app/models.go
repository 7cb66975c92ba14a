package app

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/Yaaesthetic/agno/config"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/model/anthropic"
	"github.com/Yaaesthetic/agno/model/gemini"
	"github.com/Yaaesthetic/agno/model/openai"
)

// NewModel builds the provider adapter described by mc.
func NewModel(ctx context.Context, mc *config.ModelConfig, name string) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Model != "" {
				o.Model = anthropicsdk.Model(mc.Model)
			}

			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}

			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}

			o.APIKey = mc.APIKey
		}), nil
	case config.ProviderGemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}

			if mc.Temperature > 0 {
				o.Temperature = float32(mc.Temperature)
			}

			if mc.MaxTokens > 0 {
				o.MaxTokens = int32(mc.MaxTokens)
			}

			o.APIKey = mc.APIKey
		})
	case config.ProviderMock:
		m := model.NewMockModel(name, config.ProviderMock)
		for prompt, answer := range mc.Responses {
			m.AddResponse(prompt, answer)
		}

		return m, nil
	default:
		return openai.NewModel(func(o *openai.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}

			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}

			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}

			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	}
}
