// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package summary holds the language-model backends. Each backend turns a Request into the
// model's text reply; the evaluator and the article generator build the prompts.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Request struct {
	System      string
	Prompt      string
	JSON        bool
	Temperature float32
	MaxTokens   int
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Options struct {
	Type    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

var defaultModels = map[string]string{
	"openai": "gpt-4o",
	"ollama": "llama3.1",
	"gemini": "gemini-2.5-flash",
}

// ModelFor returns model, or the backend's default when model is empty.
func ModelFor(aiType, model string) string {
	if model != "" {
		return model
	}
	t := strings.ToLower(aiType)
	if t == "" {
		t = "openai"
	}
	return defaultModels[t]
}

// New picks a backend by Options.Type: "openai" (any OpenAI-compatible API), "ollama" or
// "gemini". An empty Model gets the backend's default.
func New(ctx context.Context, opts Options) (Completer, error) {
	opts.Model = ModelFor(opts.Type, opts.Model)

	switch strings.ToLower(opts.Type) {
	case "openai", "":
		return NewOpenAICompleter(opts.BaseURL, opts.APIKey, opts.Model, opts.Timeout), nil
	case "ollama":
		return NewOllamaCompleter(opts.BaseURL, opts.Model, opts.Timeout), nil
	case "gemini":
		return NewGeminiCompleter(ctx, opts.APIKey, opts.Model, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown ai type %q", opts.Type)
	}
}
