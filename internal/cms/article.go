// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cms

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	ResearchType   = "cancer_research"
	charsPerMinute = 500
)

// Build assembles the CMS record for an evaluated paper and its generated body.
func Build(paper model.Paper, eval model.Evaluation, body, slug string, now time.Time) model.Article {
	ts := now.UTC().Format(time.RFC3339)
	published := ts
	if !paper.PublishedAt.IsZero() {
		published = paper.PublishedAt.UTC().Format(time.RFC3339)
	}

	return model.Article{
		Title:             eval.TitleSimplified,
		Summary:           eval.Summary,
		Body:              body,
		Tags:              strings.Join(eval.Keywords, ", "),
		OriginalURL:       paper.URL,
		PostedAt:          ts,
		Slug:              slug,
		ResearchType:      ResearchType,
		OriginalTitle:     paper.Title,
		PubMedID:          paper.ID,
		Journal:           paper.Journal,
		PublishDate:       published,
		AIGenerated:       true,
		AIGeneratedAt:     ts,
		ReadTime:          ReadTime(body),
		CancerTypes:       eval.CancerTypes,
		TreatmentOutcomes: eval.TreatmentOutcomes,
		ResearchStage:     single(eval.ResearchStage),
		JapanAvailability: single(eval.JapanAvailability),
		PatientKeywords:   eval.PatientKeywords,
		Difficulty:        single(string(eval.DifficultyLevel)),
		CancerSpecificity: single(eval.CancerSpecificity),
	}
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// ReadTime estimates reading time for Japanese text at roughly 500 characters per minute.
func ReadTime(body string) string {
	n := utf8.RuneCountInString(body)
	minutes := max((n+charsPerMinute-1)/charsPerMinute, 1)
	return fmt.Sprintf("%d分", minutes)
}

// Validate checks that every field the CMS schema requires is present. The optional tag
// fields are only reported at debug level.
func Validate(a model.Article, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	required := []struct {
		name string
		ok   bool
	}{
		{"title", a.Title != ""},
		{"summary", a.Summary != ""},
		{"body", a.Body != ""},
		{"original_url", a.OriginalURL != ""},
		{"slug", a.Slug != ""},
		{"difficulty", len(a.Difficulty) > 0},
		{"research_type", a.ResearchType != ""},
		{"original_title", a.OriginalTitle != ""},
		{"pubmed_id", a.PubMedID != ""},
		{"journal", a.Journal != ""},
		{"publish_date", a.PublishDate != ""},
		{"ai_generated", a.AIGenerated},
		{"ai_generated_at", a.AIGeneratedAt != ""},
		{"read_time", a.ReadTime != ""},
	}
	for _, f := range required {
		if !f.ok {
			logger.Error("article is missing a required field", zap.String("field", f.name), zap.String("slug", a.Slug))
			return fmt.Errorf("%w: missing %s", ErrInvalidArticle, f.name)
		}
	}

	optional := map[string]int{
		"cancer_types":       len(a.CancerTypes),
		"treatment_outcomes": len(a.TreatmentOutcomes),
		"research_stage":     len(a.ResearchStage),
		"japan_availability": len(a.JapanAvailability),
		"patient_keywords":   len(a.PatientKeywords),
	}
	for name, n := range optional {
		if n == 0 {
			logger.Debug("optional tag field is empty", zap.String("field", name), zap.String("slug", a.Slug))
		}
	}
	return nil
}
