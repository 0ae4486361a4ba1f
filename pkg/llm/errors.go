package llm

import "errors"

var (
	// ErrNoAPIKey indicates the OpenAI API key is missing.
	ErrNoAPIKey = errors.New("llm: API key is required")

	// ErrNoModel indicates the model name is empty.
	ErrNoModel = errors.New("llm: model is required")
)
