// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/summary"
)

type fakeLLM struct {
	replies []string
	errs    []error
	reqs    []summary.Request
}

func (f *fakeLLM) Complete(_ context.Context, req summary.Request) (string, error) {
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], err
	}
	return "", err
}

var paper = model.Paper{ID: "123", Title: "Nivolumab in NSCLC", Abstract: "We tested.", Journal: "NEJM"}

func TestEvaluateOK(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{
		"score": 4.6, "shouldPublish": true, "reason": "phase 3",
		"summary": "要約", "title_simplified": "肺がんの新しい治療",
		"keywords": ["肺がん"],
		"cancer_types": ["lung_cancer", "martian_cancer", "lung_cancer"],
		"treatment_outcomes": ["survival_improvement"],
		"research_stage": "clinical_trial_phase3",
		"japan_availability": "somewhere",
		"patient_keywords": ["immunotherapy", "Biomarker"],
		"difficulty_level": "expert",
		"cancer_specificity": "specific"
	}`}}

	res := New(llm, 0, nil).Evaluate(context.Background(), paper)
	require.True(t, res.OK())
	require.NoError(t, res.Err)

	ev := res.Evaluation
	assert.Equal(t, 4.6, ev.Score)
	assert.True(t, ev.ShouldPublish)
	assert.Equal(t, []string{"lung_cancer"}, ev.CancerTypes)
	assert.Equal(t, []string{"immunotherapy", "biomarker"}, ev.PatientKeywords)
	assert.Equal(t, "clinical_trial_phase3", ev.ResearchStage)
	assert.Equal(t, "unknown", ev.JapanAvailability)
	assert.Equal(t, model.DifficultyIntermediate, ev.DifficultyLevel)
	assert.Equal(t, "specific", ev.CancerSpecificity)

	require.Len(t, llm.reqs, 1)
	req := llm.reqs[0]
	assert.True(t, req.JSON)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	assert.Contains(t, req.Prompt, "Nivolumab in NSCLC")
	for _, v := range CancerTypes.Values() {
		assert.Contains(t, req.Prompt, v)
	}
}

func TestEvaluateFailureYieldsSentinel(t *testing.T) {
	cases := map[string]*fakeLLM{
		"transport error": {errs: []error{errors.New("connection reset")}},
		"empty reply":     {replies: []string{"   "}},
		"not json":        {replies: []string{"I think this paper is great"}},
	}

	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			res := New(llm, 0, nil).Evaluate(context.Background(), paper)

			assert.False(t, res.OK())
			assert.Equal(t, model.EvaluationFailed, res.Status)
			assert.Error(t, res.Err)
			assert.Equal(t, paper, res.Paper)
			assert.Zero(t, res.Evaluation.Score)
			assert.False(t, res.Evaluation.ShouldPublish)
			assert.NotNil(t, res.Evaluation.CancerTypes)
			assert.Empty(t, res.Evaluation.CancerTypes)
			assert.True(t, strings.HasPrefix(res.Evaluation.Reason, "evaluation failed"))
		})
	}
}

func TestDecodeClampsScore(t *testing.T) {
	ev, err := Decode(`{"score": 7.2}`)
	require.NoError(t, err)
	assert.Equal(t, 5.0, ev.Score)

	ev, err = Decode("```json\n{\"score\": -1}\n```")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.Score)
	assert.Equal(t, "general", ev.CancerSpecificity)
	assert.NotNil(t, ev.TreatmentOutcomes)
}

func TestEvaluateAllContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	llm := &fakeLLM{
		replies: []string{`{"score": 4}`, "", `{"score": 2}`},
		errs:    []error{nil, errors.New("timeout"), nil},
	}

	papers := []model.Paper{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	results, err := New(llm, 0, zap.New(core)).EvaluateAll(context.Background(), papers)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, 2, logs.FilterMessage("paper evaluated").Len())
	assert.Equal(t, 1, logs.FilterMessage("evaluation failed").Len())
}

func TestEvaluateAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &fakeLLM{replies: []string{`{"score": 4}`, `{"score": 4}`}}
	results, err := New(llm, time.Hour, nil).EvaluateAll(ctx, []model.Paper{{ID: "1"}, {ID: "2"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}

func TestStatistics(t *testing.T) {
	results := []model.EvaluationResult{
		{Status: model.EvaluationOK, Evaluation: model.Evaluation{Score: 4.5, ShouldPublish: true}},
		{Status: model.EvaluationOK, Evaluation: model.Evaluation{Score: 4.0, ShouldPublish: true}},
		{Status: model.EvaluationOK, Evaluation: model.Evaluation{Score: 1.5}},
		Failed(model.Paper{ID: "x"}, errors.New("boom")),
	}

	s := Statistics(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Publishable)
	assert.Equal(t, 2, s.AtLeast4)
	assert.Equal(t, 1, s.AtLeast45)
	assert.InDelta(t, 10.0/3, s.MeanScore, 1e-9)

	assert.Zero(t, Statistics(nil).MeanScore)
}

func TestVocabularyLabel(t *testing.T) {
	assert.Equal(t, "肺がん", CancerTypes.Label("lung_cancer"))
	assert.Equal(t, "mystery", CancerTypes.Label("mystery"))
	assert.Equal(t, "pan_cancer", CancerSpecificity.One("Pan-Cancer", "general"))
}
