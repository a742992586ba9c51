// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the data structures that flow through the research bot: Paper as fetched
// from PubMed, Evaluation as judged by the language model, Article as stored in the CMS and
// Announcement as handed to an announcement transport.
package model

import (
	"strings"
	"time"
)

type Paper struct {
	ID          string
	Title       string
	Abstract    string
	Authors     []string
	Journal     string
	PublishedAt time.Time
	URL         string
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type Evaluation struct {
	Score             float64    `json:"score"`
	ShouldPublish     bool       `json:"shouldPublish"`
	Reason            string     `json:"reason"`
	Summary           string     `json:"summary"`
	TitleSimplified   string     `json:"title_simplified"`
	Keywords          []string   `json:"keywords"`
	CancerTypes       []string   `json:"cancer_types"`
	TreatmentOutcomes []string   `json:"treatment_outcomes"`
	ResearchStage     string     `json:"research_stage"`
	JapanAvailability string     `json:"japan_availability"`
	PatientKeywords   []string   `json:"patient_keywords"`
	DifficultyLevel   Difficulty `json:"difficulty_level"`
	CancerSpecificity string     `json:"cancer_specificity"`
}

type EvaluationStatus string

const (
	EvaluationOK     EvaluationStatus = "ok"
	EvaluationFailed EvaluationStatus = "failed"
)

// EvaluationResult pairs a paper with its judgment. A failed result still carries a zero-score
// Evaluation, but callers must branch on Status.
type EvaluationResult struct {
	Paper      Paper
	Evaluation Evaluation
	Status     EvaluationStatus
	Err        error
}

func (r EvaluationResult) OK() bool {
	return r.Status == EvaluationOK
}

// Article is the CMS record. Field names follow the CMS schema.
type Article struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	Body              string   `json:"body"`
	Tags              string   `json:"tags"`
	OriginalURL       string   `json:"original_url"`
	PostedAt          string   `json:"posted_at"`
	Slug              string   `json:"slug"`
	ResearchType      string   `json:"research_type"`
	OriginalTitle     string   `json:"original_title"`
	PubMedID          string   `json:"pubmed_id"`
	Journal           string   `json:"journal"`
	PublishDate       string   `json:"publish_date"`
	AIGenerated       bool     `json:"ai_generated"`
	AIGeneratedAt     string   `json:"ai_generated_at"`
	ReadTime          string   `json:"read_time"`
	CancerTypes       []string `json:"cancer_types,omitempty"`
	TreatmentOutcomes []string `json:"treatment_outcomes,omitempty"`
	ResearchStage     []string `json:"research_stage,omitempty"`
	JapanAvailability []string `json:"japan_availability,omitempty"`
	PatientKeywords   []string `json:"patient_keywords,omitempty"`
	Difficulty        []string `json:"difficulty"`
	CancerSpecificity []string `json:"cancer_specificity,omitempty"`
}

// StoredArticle is an Article as returned by the CMS list endpoint.
type StoredArticle struct {
	Article
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	PublishedAt time.Time `json:"publishedAt"`
}

type Announcement struct {
	Article  Article
	Template string
	Text     string
	URL      string
}

// ArticleURL is where the web frontend serves an article.
func ArticleURL(siteURL, slug string) string {
	return strings.TrimRight(siteURL, "/") + "/research/" + slug
}
