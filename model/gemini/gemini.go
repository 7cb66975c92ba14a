// Package gemini implements model.Model over the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/model"
)

// Options configures the adapter.
type Options struct {
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int32
}

// Model wraps genai.Client.Models.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. APIKey is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: "gemini-2.0-flash", Temperature: 0.7, MaxTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req.Contents)
		config := m.buildConfig(req)

		if !req.Stream {
			resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- fmt.Errorf("gemini generation failed: %w", err)
				return
			}

			final, err := parseResponse(resp)
			if err != nil {
				errCh <- err
				return
			}

			out <- final

			return
		}

		var (
			text  strings.Builder
			calls []core.Part
			last  model.Response
		)

		for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}

			r, err := parseResponse(chunk)
			if err != nil {
				continue
			}

			for _, p := range r.Content.Parts {
				switch part := p.(type) {
				case core.TextPart:
					text.WriteString(part.Text)
					out <- model.Response{Partial: true, Content: core.NewTextContent("assistant", part.Text)}
				case core.FunctionCallPart:
					calls = append(calls, part)
				}
			}

			last = r
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}

		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: append(parts, calls...)},
			FinishReason: last.FinishReason,
			Usage:        last.Usage,
		}
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxTokens,
	}

	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instructions}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  toSchema(t.Function.Parameters),
			})
		}

		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if rs := req.ResponseSchema; rs != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(rs.Schema)
	}

	return config
}

// buildContents maps contents onto Gemini turns ("user" and "model").
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		role := "user"
		if c.Role == "assistant" {
			role = "model"
		}

		var parts []*genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.DataPart:
				data, _ := json.Marshal(part.Data)
				parts = append(parts, &genai.Part{Text: string(data)})
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}

				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				fr := part.FunctionResponse

				resp := map[string]any{"output": fr.Response}
				if fr.Error != "" {
					resp = map[string]any{"error": fr.Error}
				}

				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.ID,
					Name:     fr.Name,
					Response: resp,
				}})
			}
		}

		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
	}

	return out
}

func parseResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return model.Response{}, fmt.Errorf("gemini: empty response")
	}

	cand := resp.Candidates[0]

	var parts []core.Part

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" && !p.Thought {
				parts = append(parts, core.TextPart{Text: p.Text})
			}

			if p.FunctionCall != nil {
				args, _ := json.Marshal(p.FunctionCall.Args)

				id := p.FunctionCall.ID
				if id == "" {
					id = core.NewID()
				}

				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        id,
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
			}
		}
	}

	out := model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason(cand.FinishReason),
	}

	if len(core.Content{Parts: parts}.FunctionCalls()) > 0 {
		out.FinishReason = "tool_calls"
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return out, nil
}

func finishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "content_filter"
	default:
		return "stop"
	}
}

// toSchema converts a JSON schema map into a genai.Schema.
func toSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}

	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if pm, ok := prop.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}

	switch req := schema["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}

	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
