// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package generator writes the long-form Japanese explainer article for a paper.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/summary"
)

const (
	temperature = 0.3
	maxTokens   = 2000
)

var ErrEmptyArticle = errors.New("generated article is empty")

type Completer interface {
	Complete(ctx context.Context, req summary.Request) (string, error)
}

type Generator struct {
	llm Completer
}

func New(llm Completer) *Generator {
	return &Generator{llm: llm}
}

func (g *Generator) Generate(ctx context.Context, paper model.Paper, eval model.Evaluation) (string, error) {
	out, err := g.llm.Complete(ctx, summary.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(paper, eval),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate article for %s: %w", paper.ID, err)
	}

	body := Clean(out)
	if body == "" {
		return "", fmt.Errorf("pmid %s: %w", paper.ID, ErrEmptyArticle)
	}
	return body, nil
}

// Clean strips a wrapping code fence and surrounding whitespace from model output.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = ""
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
