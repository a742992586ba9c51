// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feed

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/melabel/internal/model"
)

var now = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func stored(slug string) model.StoredArticle {
	return model.StoredArticle{
		Article: model.Article{
			Title:             "免疫療法で生存期間が延長 <速報>",
			Summary:           "肺がん患者の生存期間が延びました。",
			Slug:              slug,
			PubMedID:          "39012345",
			Journal:           "Lancet Oncol",
			PublishDate:       "2025-03-01T00:00:00Z",
			OriginalURL:       "https://pubmed.ncbi.nlm.nih.gov/39012345/",
			ReadTime:          "4分",
			Difficulty:        []string{"beginner"},
			CancerTypes:       []string{"lung_cancer"},
			TreatmentOutcomes: []string{"survival_improvement"},
			ResearchStage:     []string{"clinical_trial_phase3"},
		},
		ID:          "cnt-" + slug,
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-time.Hour),
		PublishedAt: now.Add(-90 * time.Minute),
	}
}

func serve(t *testing.T, body []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRSSRoundTrip(t *testing.T) {
	out, err := RSS("https://no-label.me/", []model.StoredArticle{stored("immunotherapy-survival")}, now)
	require.NoError(t, err)

	raw := string(out)
	assert.True(t, strings.HasPrefix(raw, xml.Header))
	assert.Contains(t, raw, `xmlns:content="http://purl.org/rss/1.0/modules/content/"`)
	assert.Contains(t, raw, `<atom:link href="https://no-label.me/research/rss.xml" rel="self" type="application/rss+xml">`)
	assert.Contains(t, raw, "<language>ja</language>")
	assert.Contains(t, raw, `<guid isPermaLink="true">https://no-label.me/research/immunotherapy-survival</guid>`)
	assert.Contains(t, raw, "<![CDATA[免疫療法で生存期間が延長 <速報>]]>")

	feed, err := rss.FetchByClient(serve(t, out), http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, channelTitle, feed.Title)
	require.Len(t, feed.Items, 1)

	item := feed.Items[0]
	assert.Equal(t, "免疫療法で生存期間が延長 <速報>", item.Title)
	assert.Equal(t, "https://no-label.me/research/immunotherapy-survival", item.Link)
	assert.True(t, item.Date.Equal(now.Add(-90*time.Minute)))
	assert.Equal(t, []string{"がん研究", "AI要約", "lung_cancer", "survival_improvement"}, item.Categories)
	assert.Contains(t, item.Content, "対象がん種:</strong> 肺がん")
	assert.Contains(t, item.Content, "治療成果:</strong> 生存率向上")
	assert.Contains(t, item.Content, "研究段階:</strong> 臨床試験（第3相）")
	assert.Contains(t, item.Content, "39012345")
	assert.Contains(t, item.Content, "2025/03/01")
	assert.Contains(t, item.Content, "&lt;速報&gt;", "titles are escaped inside the HTML body")
	assert.Contains(t, item.Content, "医療専門家")
}

func TestArticleURL(t *testing.T) {
	assert.Equal(t, "https://no-label.me/research/abc", model.ArticleURL("https://no-label.me/", "abc"))
}

func TestRSSLimitsItems(t *testing.T) {
	articles := make([]model.StoredArticle, 0, RSSLimit+5)
	for i := range RSSLimit + 5 {
		articles = append(articles, stored(fmt.Sprintf("article-%02d", i)))
	}

	out, err := RSS("https://no-label.me", articles, now)
	require.NoError(t, err)
	assert.Equal(t, RSSLimit, strings.Count(string(out), "<item>"))
}

func TestRSSDefaults(t *testing.T) {
	a := stored("no-dates")
	a.PublishedAt = time.Time{}
	a.PublishDate = ""
	a.Difficulty = nil
	a.ReadTime = ""

	out, err := RSS("https://no-label.me", []model.StoredArticle{a}, now)
	require.NoError(t, err)

	raw := string(out)
	assert.Contains(t, raw, a.CreatedAt.Format(time.RFC1123Z), "falls back to the creation time")
	assert.Contains(t, raw, "不明")
	assert.Contains(t, raw, "中級")
	assert.Contains(t, raw, "3分")
}

func TestSitemap(t *testing.T) {
	a := stored("immunotherapy-survival")
	b := stored("never-updated")
	b.UpdatedAt = time.Time{}

	out, err := Sitemap("https://no-label.me/", []model.StoredArticle{a, b}, now)
	require.NoError(t, err)

	var got urlset
	require.NoError(t, xml.Unmarshal(out, &got))
	require.Len(t, got.URLs, 3)

	assert.Equal(t, sitemapURL{
		Loc:        "https://no-label.me/research",
		LastMod:    "2025-03-15T09:00:00Z",
		ChangeFreq: "daily",
		Priority:   "0.9",
	}, got.URLs[0])
	assert.Equal(t, sitemapURL{
		Loc:        "https://no-label.me/research/immunotherapy-survival",
		LastMod:    "2025-03-15T08:00:00Z",
		ChangeFreq: "weekly",
		Priority:   "0.8",
	}, got.URLs[1])
	assert.Empty(t, got.URLs[2].LastMod)
	assert.Contains(t, string(out), `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
}
