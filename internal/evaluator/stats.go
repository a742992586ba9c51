// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evaluator

import (
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
)

type Stats struct {
	Total       int
	Failed      int
	Publishable int
	AtLeast4    int
	AtLeast45   int
	MeanScore   float64
}

// Statistics summarises a batch of results. Failed results count towards Total and Failed
// only; the mean is taken over successful evaluations.
func Statistics(results []model.EvaluationResult) Stats {
	ok := lo.Filter(results, func(r model.EvaluationResult, _ int) bool { return r.OK() })

	s := Stats{
		Total:  len(results),
		Failed: len(results) - len(ok),
		Publishable: lo.CountBy(ok, func(r model.EvaluationResult) bool {
			return r.Evaluation.ShouldPublish
		}),
		AtLeast4: lo.CountBy(ok, func(r model.EvaluationResult) bool {
			return r.Evaluation.Score >= 4.0
		}),
		AtLeast45: lo.CountBy(ok, func(r model.EvaluationResult) bool {
			return r.Evaluation.Score >= 4.5
		}),
	}
	if len(ok) > 0 {
		s.MeanScore = lo.SumBy(ok, func(r model.EvaluationResult) float64 { return r.Evaluation.Score }) / float64(len(ok))
	}
	return s
}

func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("total", s.Total),
		zap.Int("failed", s.Failed),
		zap.Int("publishable", s.Publishable),
		zap.Int("score_ge_4", s.AtLeast4),
		zap.Int("score_ge_4_5", s.AtLeast45),
		zap.Float64("mean_score", s.MeanScore),
	}
}
