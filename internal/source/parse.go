// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/0x0BSoD/melabel/internal/model"
)

const paperURLFormat = "https://pubmed.ncbi.nlm.nih.gov/%s/"

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title    markup         `xml:"ArticleTitle"`
		Abstract []abstractText `xml:"Abstract>AbstractText"`
		Journal  struct {
			Title   string  `xml:"Title"`
			PubDate pubDate `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		Authors []author `xml:"AuthorList>Author"`
	} `xml:"MedlineCitation>Article"`
}

// markup keeps the raw inner XML; titles and abstracts carry inline <i>, <sup> and friends.
type markup struct {
	Inner string `xml:",innerxml"`
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

// ParseArticles decodes an efetch XML payload. Articles without a title or an abstract are
// dropped.
func ParseArticles(r io.Reader, now func() time.Time) ([]model.Paper, error) {
	var set articleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}

	papers := make([]model.Paper, 0, len(set.Articles))
	for _, a := range set.Articles {
		id := strings.TrimSpace(a.PMID)
		title := plainText(a.Article.Title.Inner)
		abstract := joinAbstract(a.Article.Abstract)
		if id == "" || title == "" || abstract == "" {
			continue
		}

		authors := lo.FilterMap(a.Article.Authors, func(au author, _ int) (string, bool) {
			if au.CollectiveName != "" {
				return strings.TrimSpace(au.CollectiveName), true
			}
			name := strings.TrimSpace(au.ForeName + " " + au.LastName)
			return name, name != ""
		})

		papers = append(papers, model.Paper{
			ID:          id,
			Title:       title,
			Abstract:    abstract,
			Authors:     authors,
			Journal:     strings.TrimSpace(a.Article.Journal.Title),
			PublishedAt: a.Article.Journal.PubDate.resolve(now),
			URL:         fmt.Sprintf(paperURLFormat, id),
		})
	}

	return papers, nil
}

func joinAbstract(parts []abstractText) string {
	sections := make([]string, 0, len(parts))
	for _, part := range parts {
		text := plainText(part.Inner)
		if text == "" {
			continue
		}
		if part.Label != "" {
			text = part.Label + ": " + text
		}
		sections = append(sections, text)
	}
	return strings.Join(sections, "\n")
}

// plainText strips inline markup and collapses whitespace.
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	text := fragment
	if strings.ContainsAny(fragment, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + fragment + "</div>"))
		if err == nil {
			text = doc.Find("div").First().Text()
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

func (d pubDate) resolve(now func() time.Time) time.Time {
	year, err := strconv.Atoi(strings.TrimSpace(d.Year))
	if err != nil {
		// MedlineDate looks like "2024 Jan-Feb" or "2023 Winter".
		if fields := strings.Fields(d.MedlineDate); len(fields) > 0 {
			if y, err := strconv.Atoi(fields[0]); err == nil {
				return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
			}
		}
		return now().UTC()
	}

	month := parseMonth(d.Month)
	day, err := strconv.Atoi(strings.TrimSpace(d.Day))
	if err != nil || day < 1 {
		day = 1
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func parseMonth(value string) time.Month {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 12 {
		return time.Month(n)
	}
	if t, err := time.Parse("Jan", value); err == nil {
		return t.Month()
	}
	return time.January
}
