// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source implements the PubMed adapter that searches NCBI E-utilities for recent
// oncology clinical papers and fetches their metadata in batches.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
	"github.com/0x0BSoD/melabel/internal/pause"
)

const (
	DefaultBaseURL      = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultLookbackDays = 14

	maxResults = 500
	// efetch accepts more ids per call, but large XML payloads time out upstream.
	batchSize  = 20
	batchDelay = 200 * time.Millisecond
	toolName   = "melabel-research-bot"
)

var (
	cancerTerms   = []string{"cancer", "neoplasm", "tumor", "carcinoma", "oncology"}
	clinicalTerms = []string{
		"clinical trial",
		"randomized controlled trial",
		"phase I",
		"phase II",
		"phase III",
		"treatment",
		"therapy",
	}
)

type PubMed struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	email      string
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewPubMed(client *http.Client, apiKey, email string, logger *zap.Logger) *PubMed {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubMed{
		client:     client,
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		email:      email,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch searches papers published within the last lookbackDays and returns those whose
// title and abstract could be extracted. A search failure aborts; a failed detail batch is
// logged and skipped.
func (p *PubMed) Fetch(ctx context.Context, lookbackDays int) ([]model.Paper, error) {
	end := p.now()
	start := end.AddDate(0, 0, -lookbackDays)

	ids, err := p.search(ctx, BuildQuery(start, end))
	if err != nil {
		return nil, fmt.Errorf("search pubmed: %w", err)
	}

	if len(ids) == 0 {
		p.logger.Warn("pubmed search returned no papers")
		return nil, nil
	}
	p.logger.Info("pubmed search done", zap.Int("ids", len(ids)))

	var (
		papers  []model.Paper
		batches = lo.Chunk(ids, p.batchSize)
		failed  int
	)

	for i, batch := range batches {
		batchPapers, err := p.fetchBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			p.logger.Error("failed to fetch pubmed batch",
				zap.Int("batch", i),
				zap.Strings("ids", batch),
				zap.Error(err),
			)
		}
		papers = append(papers, batchPapers...)

		if i < len(batches)-1 {
			if err := pause.Wait(ctx, p.batchDelay); err != nil {
				return nil, err
			}
		}
	}

	p.logger.Info("pubmed details fetched",
		zap.Int("papers", len(papers)),
		zap.Int("batches", len(batches)),
		zap.Int("failed_batches", failed),
	)

	return papers, nil
}

// BuildQuery returns the boolean search term restricted to the publication date range.
func BuildQuery(start, end time.Time) string {
	return fmt.Sprintf("(%s) AND (%s) AND %s:%s[pdat]",
		strings.Join(cancerTerms, " OR "),
		strings.Join(clinicalTerms, " OR "),
		start.Format("2006/01/02"),
		end.Format("2006/01/02"),
	)
}

type searchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (p *PubMed) search(ctx context.Context, term string) ([]string, error) {
	params := p.params()
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	body, err := p.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp searchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}

	return resp.ESearchResult.IDList, nil
}

func (p *PubMed) fetchBatch(ctx context.Context, ids []string) ([]model.Paper, error) {
	params := p.params()
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	body, err := p.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return ParseArticles(body, p.now)
}

func (p *PubMed) params() url.Values {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("tool", toolName)
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}
	return params
}

func (p *PubMed) get(ctx context.Context, path string, params url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("pubmed %s returned %s", path, resp.Status)
	}

	return resp.Body, nil
}
