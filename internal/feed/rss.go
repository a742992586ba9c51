// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feed renders the public RSS feed and XML sitemap for published research articles.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/melabel/internal/evaluator"
	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	RSSLimit = 50

	channelTitle = "ME≠LABEL Research - がん研究AI要約"
	channelDesc  = "PubMedから収集されたがん関連の最新論文をAI技術により患者・当事者目線でわかりやすく要約した記事フィード"
	generator    = "ME≠LABEL AI Research Bot"
	author       = "noreply@no-label.me (ME≠LABEL AI Research Bot)"
)

type rssDoc struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	AtomNS    string   `xml:"xmlns:atom,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	Channel   channel  `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type image struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type channel struct {
	Title         string   `xml:"title"`
	Description   string   `xml:"description"`
	Link          string   `xml:"link"`
	AtomLink      atomLink `xml:"atom:link"`
	Language      string   `xml:"language"`
	LastBuildDate string   `xml:"lastBuildDate"`
	Generator     string   `xml:"generator"`
	Image         image    `xml:"image"`
	Items         []item   `xml:"item"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type item struct {
	Title       cdata    `xml:"title"`
	Description cdata    `xml:"description"`
	Content     cdata    `xml:"content:encoded"`
	Link        string   `xml:"link"`
	GUID        guid     `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author"`
	Categories  []string `xml:"category"`
}

var contentTmpl = template.Must(template.New("content").Parse(`<h2>{{ .Title }}</h2>
<p><strong>要約:</strong> {{ .Summary }}</p>
<h3>研究情報</h3>
<ul>
<li><strong>ジャーナル:</strong> {{ .Journal }}</li>
<li><strong>PubMed ID:</strong> {{ .PubMedID }}</li>
<li><strong>発表日:</strong> {{ .Published }}</li>
<li><strong>難易度:</strong> {{ .Difficulty }}</li>
<li><strong>読了時間:</strong> {{ .ReadTime }}</li>
</ul>
{{- if .CancerTypes }}
<p><strong>対象がん種:</strong> {{ .CancerTypes }}</p>
{{- end }}
{{- if .Outcomes }}
<p><strong>治療成果:</strong> {{ .Outcomes }}</p>
{{- end }}
{{- if .Stage }}
<p><strong>研究段階:</strong> {{ .Stage }}</p>
{{- end }}
<p><a href="{{ .URL }}">記事の詳細を読む</a></p>
{{- if .OriginalURL }}
<p><a href="{{ .OriginalURL }}" target="_blank">原論文を見る</a></p>
{{- end }}
<hr/>
<p><small>この記事はAI技術により自動生成されています。医療判断の参考としての使用は避け、詳細については必ず医療専門家にご相談ください。</small></p>`))

type contentData struct {
	Title       string
	Summary     string
	Journal     string
	PubMedID    string
	Published   string
	Difficulty  string
	ReadTime    string
	CancerTypes string
	Outcomes    string
	Stage       string
	URL         string
	OriginalURL string
}

// RSS renders an RSS 2.0 document for at most RSSLimit articles.
func RSS(siteURL string, articles []model.StoredArticle, now time.Time) ([]byte, error) {
	base := strings.TrimRight(siteURL, "/")
	if len(articles) > RSSLimit {
		articles = articles[:RSSLimit]
	}

	items := make([]item, 0, len(articles))
	for _, a := range articles {
		it, err := toItem(base, a)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	doc := rssDoc{
		Version:   "2.0",
		AtomNS:    "http://www.w3.org/2005/Atom",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		Channel: channel{
			Title:         channelTitle,
			Description:   channelDesc,
			Link:          base + "/research",
			AtomLink:      atomLink{Href: base + "/research/rss.xml", Rel: "self", Type: "application/rss+xml"},
			Language:      "ja",
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Generator:     generator,
			Image:         image{URL: base + "/logo.png", Title: "ME≠LABEL Research", Link: base + "/research"},
			Items:         items,
		},
	}

	return marshal(doc)
}

func toItem(base string, a model.StoredArticle) (item, error) {
	url := model.ArticleURL(base, a.Slug)

	data := contentData{
		Title:       a.Title,
		Summary:     a.Summary,
		Journal:     a.Journal,
		PubMedID:    a.PubMedID,
		Published:   "不明",
		Difficulty:  strings.Join(a.Difficulty, ", "),
		ReadTime:    lo.Ternary(a.ReadTime != "", a.ReadTime, "3分"),
		CancerTypes: labels(evaluator.CancerTypes, a.CancerTypes),
		Outcomes:    labels(evaluator.TreatmentOutcomes, a.TreatmentOutcomes),
		Stage:       labels(evaluator.ResearchStages, a.ResearchStage),
		URL:         url,
		OriginalURL: a.OriginalURL,
	}
	if data.Difficulty == "" {
		data.Difficulty = "中級"
	}
	if t, err := time.Parse(time.RFC3339, a.PublishDate); err == nil {
		data.Published = t.Format("2006/01/02")
	}

	var content bytes.Buffer
	if err := contentTmpl.Execute(&content, data); err != nil {
		return item{}, fmt.Errorf("render item %q: %w", a.Slug, err)
	}

	categories := append([]string{"がん研究", "AI要約"}, a.CancerTypes...)
	categories = append(categories, a.TreatmentOutcomes...)

	return item{
		Title:       cdata{a.Title},
		Description: cdata{a.Summary},
		Content:     cdata{content.String()},
		Link:        url,
		GUID:        guid{IsPermaLink: true, Value: url},
		PubDate:     itemDate(a).UTC().Format(time.RFC1123Z),
		Author:      author,
		Categories:  lo.Compact(categories),
	}, nil
}

// labels renders tag values with their Japanese names.
func labels(v evaluator.Vocabulary, values []string) string {
	return strings.Join(lo.Map(values, func(s string, _ int) string { return v.Label(s) }), ", ")
}

func itemDate(a model.StoredArticle) time.Time {
	switch {
	case !a.PublishedAt.IsZero():
		return a.PublishedAt
	case !a.CreatedAt.IsZero():
		return a.CreatedAt
	default:
		return time.Unix(0, 0)
	}
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
