// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaCompleter struct {
	client  *api.Client
	model   string
	timeout time.Duration
	mu      sync.Mutex
}

// NewOllamaCompleter accepts either host:port or a full URL for baseURL.
func NewOllamaCompleter(baseURL, model string, timeout time.Duration) *OllamaCompleter {
	return &OllamaCompleter{
		client:  api.NewClient(ollamaURL(baseURL), &http.Client{}),
		model:   model,
		timeout: timeout,
	}
}

func ollamaURL(baseURL string) *url.URL {
	if strings.Contains(baseURL, "://") {
		if u, err := url.Parse(baseURL); err == nil {
			return u
		}
	}
	return &url.URL{Scheme: "http", Host: baseURL, Path: "/"}
}

func (o *OllamaCompleter) Complete(ctx context.Context, req Request) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	genReq := &api.GenerateRequest{
		Model:  o.model,
		System: req.System,
		Prompt: req.Prompt,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		genReq.Options["num_predict"] = req.MaxTokens
	}
	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	var reply strings.Builder
	err := o.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		reply.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	return reply.String(), nil
}
