// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package notifier turns published articles into short announcements and hands them to a
// single announcement transport.
package notifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/pause"
)

type Sender interface {
	Name() string
	Send(ctx context.Context, a model.Announcement) error
}

type Notifier struct {
	sender    Sender
	catalogue *Catalogue
	siteURL   string
	interval  time.Duration
	loc       *time.Location
	limit     int
	count     Counter
	logger    *zap.Logger

	now  func() time.Time
	pick func(n int) int
}

type Option func(*Notifier)

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithPicker replaces the random choice among engaging templates.
func WithPicker(pick func(n int) int) Option {
	return func(n *Notifier) { n.pick = pick }
}

// WithCounter sets how announcement length is measured against the limit.
func WithCounter(count Counter) Option {
	return func(n *Notifier) { n.count = count }
}

func New(
	sender Sender,
	catalogue *Catalogue,
	siteURL string,
	interval time.Duration,
	loc *time.Location,
	logger *zap.Logger,
	opts ...Option,
) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	n := &Notifier{
		sender:    sender,
		catalogue: catalogue,
		siteURL:   strings.TrimRight(siteURL, "/"),
		interval:  interval,
		loc:       loc,
		limit:     DefaultLimit,
		count:     RuneCount,
		logger:    logger,
		now:       time.Now,
		pick:      rand.IntN,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}


// Select picks the template for an article: research stage first, then the local time of day,
// then difficulty, and finally a random engaging template.
func (n *Notifier) Select(a model.Article) *Template {
	stage := firstOf(a.ResearchStage)
	switch {
	case strings.HasPrefix(stage, "clinical_trial"):
		return n.catalogue.Get("clinical")
	case stage == "basic_research":
		return n.catalogue.Get("basic-research")
	}

	if h := n.now().In(n.loc).Hour(); h >= 6 && h <= 10 {
		return n.catalogue.Get("morning")
	}

	switch model.Difficulty(firstOf(a.Difficulty)) {
	case model.DifficultyBeginner:
		return n.catalogue.Get("hopeful")
	case model.DifficultyAdvanced:
		return n.catalogue.Get("data-focused")
	}

	engaging := n.catalogue.ByCategory(CategoryEngaging)
	if len(engaging) == 0 {
		return n.catalogue.Get("standard")
	}
	return engaging[n.pick(len(engaging))]
}

// Compose renders and length-fits the announcement for one article.
func (n *Notifier) Compose(a model.Article) (model.Announcement, error) {
	t := n.Select(a)
	url := model.ArticleURL(n.siteURL, a.Slug)

	text, err := t.Render(TemplateData{
		Emoji:    DifficultyEmoji(a.Difficulty),
		Title:    a.Title,
		Summary:  a.Summary,
		URL:      url,
		Hashtags: Hashtags(a.Tags),
	})
	if err != nil {
		return model.Announcement{}, err
	}

	return model.Announcement{
		Article:  a,
		Template: t.Name,
		Text:     Fit(text, a.Summary, n.limit, n.count),
		URL:      url,
	}, nil
}

type Report struct {
	Sent   int
	Failed int
}

// Announce sends one announcement per article. A failure is logged and counted, and the
// remaining articles are still announced. Only context cancellation stops the loop.
func (n *Notifier) Announce(ctx context.Context, articles []model.Article) (Report, error) {
	var rep Report

	for i, a := range articles {
		if i > 0 {
			if err := pause.Wait(ctx, n.interval); err != nil {
				return rep, err
			}
		}

		ann, err := n.Compose(a)
		if err == nil {
			err = n.sender.Send(ctx, ann)
		}
		if err != nil {
			rep.Failed++
			n.logger.Error("announcement failed",
				zap.String("transport", n.sender.Name()),
				zap.String("slug", a.Slug),
				zap.Error(err),
			)
			continue
		}

		rep.Sent++
		n.logger.Info("announcement sent",
			zap.String("transport", n.sender.Name()),
			zap.String("template", ann.Template),
			zap.String("slug", a.Slug),
		)
	}

	return rep, nil
}

func (r Report) String() string {
	return fmt.Sprintf("%d sent, %d failed", r.Sent, r.Failed)
}

func firstOf(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
