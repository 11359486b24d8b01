package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bkyoung/llmclient/llm"
)

// StructuredRequest is a generation request whose input and parsed output are
// each validated against a caller-declared schema. UserPrompt is required;
// all schemas and the system prompt are optional.
type StructuredRequest struct {
	Provider     llm.ProviderID
	Model        string
	Input        any
	InputSchema  Schema
	OutputSchema Schema
	SystemPrompt Prompt
	UserPrompt   Prompt
	Temperature  *float64
	MaxTokens    int
	Timeout      time.Duration
	Metadata     map[string]string
}

// StructuredResponse carries the parsed, schema-validated output alongside
// the raw provider response.
type StructuredResponse struct {
	Output any
	Raw    *llm.Response
}

// Ask validates the input, renders the prompts, forces JSON mode on the
// underlying request, and parses and validates the response content.
//
// Input validation failures abort before any network call. Output parse or
// validation failures surface as output-validation errors and are never
// retried, since the network call already completed; the response's token
// usage has been credited to the budget exactly once by then.
func (s *Service) Ask(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if req.UserPrompt == nil {
		return nil, llm.NewValidationError("structured request requires a user prompt")
	}

	if req.InputSchema != nil {
		if err := req.InputSchema.Validate(req.Input); err != nil {
			verr := llm.NewValidationError(fmt.Sprintf("input failed schema validation: %v", err))
			verr.Cause = err
			return nil, verr
		}
	}

	userPrompt, err := req.UserPrompt.Render(req.Input)
	if err != nil {
		verr := llm.NewValidationError(fmt.Sprintf("render user prompt: %v", err))
		verr.Cause = err
		return nil, verr
	}

	var systemPrompt string
	if req.SystemPrompt != nil {
		systemPrompt, err = req.SystemPrompt.Render(req.Input)
		if err != nil {
			verr := llm.NewValidationError(fmt.Sprintf("render system prompt: %v", err))
			verr.Cause = err
			return nil, verr
		}
	}

	resp, err := s.Complete(ctx, userPrompt, Options{
		Provider:     req.Provider,
		Model:        req.Model,
		SystemPrompt: systemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		JSONMode:     true,
		Timeout:      req.Timeout,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	payload := ExtractJSONFromMarkdown(resp.Content)

	var output any
	if err := json.Unmarshal([]byte(payload), &output); err != nil {
		return nil, llm.NewOutputValidationError(resp.Provider,
			"response content is not valid JSON", err)
	}

	if req.OutputSchema != nil {
		if err := req.OutputSchema.Validate(output); err != nil {
			return nil, llm.NewOutputValidationError(resp.Provider,
				"response failed output schema validation", err)
		}
	}

	return &StructuredResponse{Output: output, Raw: resp}, nil
}

// AskAs runs Ask and decodes the validated output into T.
func AskAs[T any](ctx context.Context, s *Service, req StructuredRequest) (T, *llm.Response, error) {
	var out T

	resp, err := s.Ask(ctx, req)
	if err != nil {
		return out, nil, err
	}

	data, err := json.Marshal(resp.Output)
	if err != nil {
		return out, resp.Raw, llm.NewOutputValidationError(resp.Raw.Provider,
			"re-encode validated output", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, resp.Raw, llm.NewOutputValidationError(resp.Raw.Provider,
			fmt.Sprintf("decode output into %T", out), err)
	}
	return out, resp.Raw, nil
}
