// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs one ingestion pass: fetch papers, evaluate them, publish articles for
// the best ones and announce what was published.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/cms"
	"github.com/0x0BSoD/melabel/internal/evaluator"
	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/notifier"
)

type PaperSource interface {
	Fetch(ctx context.Context, lookbackDays int) ([]model.Paper, error)
}

type Evaluator interface {
	EvaluateAll(ctx context.Context, papers []model.Paper) ([]model.EvaluationResult, error)
}

type Generator interface {
	Generate(ctx context.Context, paper model.Paper, eval model.Evaluation) (string, error)
}

type Publisher interface {
	Exists(ctx context.Context, pubmedID, slug string) (bool, error)
	Publish(ctx context.Context, article model.Article) (string, error)
}

type Announcer interface {
	Announce(ctx context.Context, articles []model.Article) (notifier.Report, error)
}

type Reporter interface {
	Notify(msg string)
}

type Options struct {
	LookbackDays   int
	ScoreThreshold float64
}

type Pipeline struct {
	source    PaperSource
	evaluator Evaluator
	generator Generator
	publisher Publisher
	announcer Announcer
	reporter  Reporter

	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func New(
	source PaperSource,
	evaluator Evaluator,
	generator Generator,
	publisher Publisher,
	announcer Announcer,
	reporter Reporter,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:    source,
		evaluator: evaluator,
		generator: generator,
		publisher: publisher,
		announcer: announcer,
		reporter:  reporter,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

type Result struct {
	RunID          string
	Fetched        int
	Stats          evaluator.Stats
	Filtered       int
	Published      int
	Duplicates     int
	PublishErrors  int
	Announced      int
	AnnounceErrors int
}

func (r Result) String() string {
	return fmt.Sprintf(
		"run %s: fetched %d, evaluated %d (failed %d, mean %.2f), filtered %d, published %d, duplicates %d, publish errors %d, announced %d, announce errors %d",
		r.RunID, r.Fetched, r.Stats.Total, r.Stats.Failed, r.Stats.MeanScore, r.Filtered,
		r.Published, r.Duplicates, r.PublishErrors, r.Announced, r.AnnounceErrors,
	)
}

// Start runs the pipeline once right away and then on every tick until ctx is done.
// A failed run is logged and reported; the schedule keeps going.
func (p *Pipeline) Start(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		_, err := p.Run(ctx)
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	p.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runLogged(ctx)
		}
	}
}

func (p *Pipeline) runLogged(ctx context.Context) {
	if _, err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("run failed", zap.Error(err))
	}
}

// Run executes one pass. Only a failed paper search or cancellation aborts it; every
// other failure is confined to the paper or announcement it happened on.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", res.RunID))

	log.Info("run started", zap.Int("lookback_days", p.opts.LookbackDays), zap.Float64("threshold", p.opts.ScoreThreshold))

	papers, err := p.source.Fetch(ctx, p.opts.LookbackDays)
	if err != nil {
		p.notify(fmt.Sprintf("run %s aborted: %v", res.RunID, err))
		return res, fmt.Errorf("fetch papers: %w", err)
	}
	res.Fetched = len(papers)
	log.Info("papers fetched", zap.Int("count", len(papers)))

	results, err := p.evaluator.EvaluateAll(ctx, papers)
	if err != nil {
		return res, fmt.Errorf("evaluate papers: %w", err)
	}
	res.Stats = evaluator.Statistics(results)
	log.Info("evaluation finished", res.Stats.Fields()...)

	selected := Select(results, p.opts.ScoreThreshold)
	res.Filtered = len(selected)
	log.Info("papers selected for publishing", zap.Int("filtered", res.Filtered))

	var published []model.Article
	for _, r := range selected {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		article, ok, err := p.publish(ctx, log, r)
		switch {
		case err != nil:
			res.PublishErrors++
			log.Error("paper skipped", zap.String("pmid", r.Paper.ID), zap.Error(err))
		case !ok:
			res.Duplicates++
		default:
			res.Published++
			published = append(published, article)
		}
	}

	if len(published) > 0 {
		rep, err := p.announcer.Announce(ctx, published)
		res.Announced, res.AnnounceErrors = rep.Sent, rep.Failed
		if err != nil {
			return res, fmt.Errorf("announce: %w", err)
		}
	}

	log.Info("run finished",
		zap.Int("published", res.Published),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("publish_errors", res.PublishErrors),
		zap.Int("announced", res.Announced),
		zap.Int("announce_errors", res.AnnounceErrors),
	)
	p.notify(res.String())

	return res, nil
}

// publish checks for an earlier copy of the paper before spending a generation on it. A failed
// check is logged and the paper is treated as new.
func (p *Pipeline) publish(ctx context.Context, log *zap.Logger, r model.EvaluationResult) (model.Article, bool, error) {
	now := p.now()
	slug := cms.SlugFor(r.Evaluation.TitleSimplified, r.Paper.ID, now)

	exists, err := p.publisher.Exists(ctx, r.Paper.ID, slug)
	switch {
	case err != nil && ctx.Err() != nil:
		return model.Article{}, false, ctx.Err()
	case err != nil:
		log.Warn("duplicate check failed, treating paper as new", zap.String("pmid", r.Paper.ID), zap.Error(err))
	case exists:
		log.Info("paper already published, skipping", zap.String("pmid", r.Paper.ID))
		return model.Article{}, false, nil
	}

	body, err := p.generator.Generate(ctx, r.Paper, r.Evaluation)
	if err != nil {
		return model.Article{}, false, err
	}

	article := cms.Build(r.Paper, r.Evaluation, body, slug, now)
	if _, err := p.publisher.Publish(ctx, article); err != nil {
		return model.Article{}, false, err
	}
	return article, true, nil
}

func (p *Pipeline) notify(msg string) {
	if p.reporter != nil {
		p.reporter.Notify(msg)
	}
}

// Select keeps successful evaluations that clear the threshold and were marked publishable,
// best score first.
func Select(results []model.EvaluationResult, threshold float64) []model.EvaluationResult {
	out := lo.Filter(results, func(r model.EvaluationResult, _ int) bool {
		return r.OK() && r.Evaluation.ShouldPublish && r.Evaluation.Score >= threshold
	})
	slices.SortStableFunc(out, func(a, b model.EvaluationResult) int {
		return cmp.Compare(b.Evaluation.Score, a.Evaluation.Score)
	})
	return out
}
