// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cms talks to the microCMS content API: duplicate checks, article creation and the
// article listing used by the public read endpoints.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	apiKeyHeader   = "X-MICROCMS-API-KEY"
	bodyExcerptLen = 300
	DefaultListMax = 100
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidArticle = errors.New("invalid article")

	apiKeyShape = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type Client struct {
	http     *http.Client
	baseURL  string
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

// New builds a client for https://<serviceDomain>.microcms.io/api/v1/<endpoint>.
func New(httpClient *http.Client, serviceDomain, endpoint, apiKey string, logger *zap.Logger) (*Client, error) {
	serviceDomain = strings.TrimSpace(serviceDomain)
	if serviceDomain == "" {
		return nil, errors.New("microcms service domain is empty")
	}
	return NewWithBaseURL(httpClient, fmt.Sprintf("https://%s.microcms.io/api/v1", serviceDomain), endpoint, apiKey, logger)
}

func NewWithBaseURL(httpClient *http.Client, baseURL, endpoint, apiKey string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = "articles"
	}

	key := CleanAPIKey(apiKey)
	if key == "" {
		return nil, errors.New("microcms api key is empty after cleaning")
	}
	if !apiKeyShape.MatchString(key) {
		logger.Warn("microcms api key contains unexpected characters", zap.Int("length", len(key)))
	}

	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: endpoint,
		apiKey:   key,
		logger:   logger,
	}, nil
}

// CleanAPIKey trims surrounding whitespace and drops control characters, which tend to sneak in
// through copy-pasted secrets.
func CleanAPIKey(key string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(key))
}

type ListResult struct {
	Contents   []model.StoredArticle `json:"contents"`
	TotalCount int                   `json:"totalCount"`
	Offset     int                   `json:"offset"`
	Limit      int                   `json:"limit"`
}

// Exists reports whether the paper is already stored, matching either its PubMed id or the
// slug. Slugs for non-ASCII titles embed a timestamp, so the id is what catches a re-run. A 404
// from the API means no; any other failure is returned to the caller.
func (c *Client) Exists(ctx context.Context, pubmedID, slug string) (bool, error) {
	filter := existsFilter(pubmedID, slug)
	if filter == "" {
		return false, errors.New("exists check needs a pubmed id or a slug")
	}

	q := url.Values{}
	q.Set("filters", filter)
	q.Set("limit", "1")
	q.Set("fields", "id")

	var out ListResult
	if err := c.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check pmid %q slug %q: %w", pubmedID, slug, err)
	}

	return out.TotalCount > 0 || len(out.Contents) > 0, nil
}

func existsFilter(pubmedID, slug string) string {
	var clauses []string
	if pubmedID != "" {
		clauses = append(clauses, "pubmed_id[equals]"+pubmedID)
	}
	if slug != "" {
		clauses = append(clauses, "slug[equals]"+slug)
	}
	return strings.Join(clauses, "[or]")
}

// Create posts the article in published state and returns the CMS content id.
func (c *Client) Create(ctx context.Context, article model.Article) (string, error) {
	body, err := json.Marshal(article)
	if err != nil {
		return "", fmt.Errorf("encode article: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, nil, body, &out); err != nil {
		return "", fmt.Errorf("create article %q: %w", article.Slug, err)
	}

	c.logger.Info("article created",
		zap.String("id", out.ID),
		zap.String("slug", article.Slug),
		zap.String("pmid", article.PubMedID),
	)
	return out.ID, nil
}

// Publish validates the article and creates it. Callers check Exists first.
func (c *Client) Publish(ctx context.Context, article model.Article) (string, error) {
	if err := Validate(article, c.logger); err != nil {
		return "", err
	}
	return c.Create(ctx, article)
}

// List returns AI-generated articles, newest first. limit is capped at DefaultListMax.
func (c *Client) List(ctx context.Context, limit, offset int) (ListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, DefaultListMax)
	offset = max(offset, 0)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("orders", "-createdAt")
	q.Set("filters", "ai_generated[equals]true")

	var out ListResult
	if err := c.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return ListResult{}, fmt.Errorf("list articles: %w", err)
	}
	if out.Contents == nil {
		out.Contents = []model.StoredArticle{}
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("microcms returned %d: %s", e.code, e.body)
}

func (e *statusError) Is(target error) bool {
	return target == ErrNotFound && e.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method string, q url.Values, body []byte, out any) error {
	u := c.baseURL + "/" + c.endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLen))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(excerpt))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
