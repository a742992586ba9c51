// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evaluator scores papers for patient relevance and tags them against a closed
// vocabulary using a language model.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/pause"
	"github.com/0x0BSoD/melabel/internal/summary"
)

const (
	temperature = 0.1
	maxScore    = 5.0
)

var errEmptyResponse = errors.New("empty model response")

type Completer interface {
	Complete(ctx context.Context, req summary.Request) (string, error)
}

type Evaluator struct {
	llm      Completer
	interval time.Duration
	logger   *zap.Logger
}

func New(llm Completer, interval time.Duration, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{llm: llm, interval: interval, logger: logger}
}

// Evaluate never returns an error: failures come back as a result with Status failed.
func (e *Evaluator) Evaluate(ctx context.Context, paper model.Paper) model.EvaluationResult {
	raw, err := e.llm.Complete(ctx, summary.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(paper),
		JSON:        true,
		Temperature: temperature,
	})
	if err != nil {
		return Failed(paper, fmt.Errorf("complete: %w", err))
	}

	eval, err := Decode(raw)
	if err != nil {
		return Failed(paper, err)
	}

	return model.EvaluationResult{
		Paper:      paper,
		Evaluation: eval,
		Status:     model.EvaluationOK,
	}
}

// EvaluateAll runs Evaluate over papers one at a time, pausing between calls.
// It stops early only when ctx is cancelled.
func (e *Evaluator) EvaluateAll(ctx context.Context, papers []model.Paper) ([]model.EvaluationResult, error) {
	results := make([]model.EvaluationResult, 0, len(papers))

	for i, paper := range papers {
		if i > 0 {
			if err := pause.Wait(ctx, e.interval); err != nil {
				return results, err
			}
		}

		res := e.Evaluate(ctx, paper)
		if res.OK() {
			e.logger.Info("paper evaluated",
				zap.Int("n", i+1),
				zap.Int("of", len(papers)),
				zap.String("pmid", paper.ID),
				zap.Float64("score", res.Evaluation.Score),
				zap.Bool("should_publish", res.Evaluation.ShouldPublish),
			)
		} else {
			e.logger.Warn("evaluation failed",
				zap.String("pmid", paper.ID),
				zap.Error(res.Err),
			)
		}
		results = append(results, res)
	}

	return results, nil
}

// Failed builds the result for a paper that could not be judged.
func Failed(paper model.Paper, err error) model.EvaluationResult {
	return model.EvaluationResult{
		Paper: paper,
		Evaluation: model.Evaluation{
			Reason:            "evaluation failed: " + err.Error(),
			Keywords:          []string{},
			CancerTypes:       []string{},
			TreatmentOutcomes: []string{},
			PatientKeywords:   []string{},
			DifficultyLevel:   model.DifficultyIntermediate,
			CancerSpecificity: "general",
			JapanAvailability: "unknown",
		},
		Status: model.EvaluationFailed,
		Err:    err,
	}
}

// Decode parses a model reply into an Evaluation, clamping the score and dropping tag
// values outside the vocabulary.
func Decode(raw string) (model.Evaluation, error) {
	raw = strings.TrimSpace(stripFence(raw))
	if raw == "" {
		return model.Evaluation{}, errEmptyResponse
	}

	var eval model.Evaluation
	if err := json.Unmarshal([]byte(raw), &eval); err != nil {
		return model.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}

	return sanitize(eval), nil
}

func sanitize(eval model.Evaluation) model.Evaluation {
	eval.Score = min(max(eval.Score, 0), maxScore)
	if eval.Keywords == nil {
		eval.Keywords = []string{}
	}
	eval.CancerTypes = CancerTypes.Keep(eval.CancerTypes)
	eval.TreatmentOutcomes = TreatmentOutcomes.Keep(eval.TreatmentOutcomes)
	eval.PatientKeywords = PatientKeywords.Keep(eval.PatientKeywords)
	eval.ResearchStage = ResearchStages.One(eval.ResearchStage, "")
	eval.JapanAvailability = JapanAvailability.One(eval.JapanAvailability, "unknown")
	eval.CancerSpecificity = CancerSpecificity.One(eval.CancerSpecificity, "general")
	eval.DifficultyLevel = model.Difficulty(DifficultyLevels.One(string(eval.DifficultyLevel), string(model.DifficultyIntermediate)))
	return eval
}

// stripFence removes a surrounding ```json fence some models add even in JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
