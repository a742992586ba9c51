// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feed

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/0x0BSoD/melabel/internal/model"
)

const SitemapLimit = 1000

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap lists the research index followed by every article page.
func Sitemap(siteURL string, articles []model.StoredArticle, now time.Time) ([]byte, error) {
	base := strings.TrimRight(siteURL, "/")

	urls := make([]sitemapURL, 0, len(articles)+1)
	urls = append(urls, sitemapURL{
		Loc:        base + "/research",
		LastMod:    now.UTC().Format(time.RFC3339),
		ChangeFreq: "daily",
		Priority:   "0.9",
	})

	for _, a := range articles {
		u := sitemapURL{
			Loc:        model.ArticleURL(base, a.Slug),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		}
		if !a.UpdatedAt.IsZero() {
			u.LastMod = a.UpdatedAt.UTC().Format(time.RFC3339)
		}
		urls = append(urls, u)
	}

	return marshal(urlset{NS: "http://www.sitemaps.org/schemas/sitemap/0.9", URLs: urls})
}
