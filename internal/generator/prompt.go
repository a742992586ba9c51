// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generator

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/0x0BSoD/melabel/internal/model"
)

const systemPrompt = "You are a medical writer who explains cancer research to patients and their families " +
	"in plain, warm Japanese. You never overstate results and you never give individual medical advice."

var articleTmpl = template.Must(template.New("article").Parse(`Write a Japanese explainer article about the paper below for cancer patients and their families.

Paper:
Title: {{ .Paper.Title }}
Plain title: {{ .Eval.TitleSimplified }}
Journal: {{ .Paper.Journal }}
Published: {{ .Published }}
{{- if .Authors }}
Authors: {{ .Authors }}
{{- end }}
Abstract: {{ .Paper.Abstract }}

Evaluation summary: {{ .Eval.Summary }}
Reader level: {{ .Eval.DifficultyLevel }}

Use exactly these Markdown headings, in this order:
## この研究のポイント
(three short bullet points)
## 研究の概要
(what was studied and how, explained without jargon)
## この研究の意義
(what it could mean for patients today)
## 今後の展望
(what still has to happen before it reaches clinics in Japan)
## 用語解説
(short definitions of the technical terms you used)
## 参考文献
{{ .Citation }}

Rules:
- Never use absolute wording such as 「必ず治る」「完治保証」「奇跡の薬」.
- Do not output HTML. Markdown only.
- Stay faithful to the abstract; do not invent numbers.
- Close by advising readers to talk with their doctor before changing any treatment.
`))

type promptData struct {
	Paper     model.Paper
	Eval      model.Evaluation
	Published string
	Authors   string
	Citation  string
}

func BuildPrompt(paper model.Paper, eval model.Evaluation) string {
	data := promptData{
		Paper:    paper,
		Eval:     eval,
		Authors:  authorLine(paper.Authors),
		Citation: Citation(paper),
	}
	if !paper.PublishedAt.IsZero() {
		data.Published = paper.PublishedAt.Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := articleTmpl.Execute(&buf, data); err != nil {
		// the template is static and promptData always satisfies it
		panic(err)
	}
	return buf.String()
}

// Citation renders the reference line placed under the final heading.
func Citation(paper model.Paper) string {
	var b strings.Builder
	if a := authorLine(paper.Authors); a != "" {
		b.WriteString(a)
		b.WriteString(". ")
	}
	b.WriteString(paper.Title)
	if paper.Journal != "" {
		b.WriteString(". ")
		b.WriteString(paper.Journal)
	}
	if !paper.PublishedAt.IsZero() {
		b.WriteString(". ")
		b.WriteString(paper.PublishedAt.Format("2006"))
	}
	b.WriteString(". PMID: ")
	b.WriteString(paper.ID)
	if paper.URL != "" {
		b.WriteString(". ")
		b.WriteString(paper.URL)
	}
	return b.String()
}

func authorLine(authors []string) string {
	switch {
	case len(authors) == 0:
		return ""
	case len(authors) > 3:
		return strings.Join(authors[:3], ", ") + ", et al"
	default:
		return strings.Join(authors, ", ")
	}
}
