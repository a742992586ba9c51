// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
)

const DefaultTwitterURL = "https://api.twitter.com"

type TwitterCredentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Twitter posts announcements through the v2 API with OAuth1 user-context signing.
type Twitter struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewTwitter(creds TwitterCredentials, baseURL string, timeout time.Duration, logger *zap.Logger) *Twitter {
	if baseURL == "" {
		baseURL = DefaultTwitterURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	client := cfg.Client(oauth1.NoContext, oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret))
	client.Timeout = timeout

	return &Twitter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (t *Twitter) Name() string { return "twitter" }

func (t *Twitter) Send(ctx context.Context, a model.Announcement) error {
	payload, err := json.Marshal(map[string]string{"text": a.Text})
	if err != nil {
		return err
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.call(ctx, http.MethodPost, "/2/tweets", payload, &out); err != nil {
		return fmt.Errorf("post tweet: %w", err)
	}

	t.logger.Info("tweet posted", zap.String("tweet_id", out.Data.ID), zap.String("slug", a.Article.Slug))
	return nil
}

// Ping verifies the credentials by looking up the authenticated account.
func (t *Twitter) Ping(ctx context.Context) error {
	var out struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := t.call(ctx, http.MethodGet, "/2/users/me", nil, &out); err != nil {
		return fmt.Errorf("twitter ping: %w", err)
	}

	t.logger.Debug("twitter credentials ok", zap.String("username", out.Data.Username))
	return nil
}

func (t *Twitter) call(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
