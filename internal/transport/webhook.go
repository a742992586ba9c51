// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/model"
)

var ErrWebhookRejected = errors.New("webhook rejected the request")

// Webhook posts drafts to a spreadsheet web app that answers with a {status, message} envelope.
type Webhook struct {
	client *http.Client
	url    string
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

type webhookPayload struct {
	Timestamp  string `json:"timestamp"`
	Title      string `json:"title"`
	TweetText  string `json:"tweetText"`
	ArticleURL string `json:"articleUrl"`
	Difficulty string `json:"difficulty"`
	Tags       string `json:"tags"`
	Posted     string `json:"posted"`
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewWebhook(client *http.Client, url string, loc *time.Location, logger *zap.Logger) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{client: client, url: url, loc: loc, now: time.Now, logger: logger}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, a model.Announcement) error {
	body, err := json.Marshal(webhookPayload{
		Timestamp:  w.now().In(w.loc).Format("2006/01/02 15:04"),
		Title:      a.Article.Title,
		TweetText:  a.Text,
		ArticleURL: a.URL,
		Difficulty: strings.Join(a.Article.Difficulty, ", "),
		Tags:       a.Article.Tags,
		Posted:     "No",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := w.do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}

	w.logger.Info("draft sent to webhook", zap.String("slug", a.Article.Slug), zap.String("message", env.Message))
	return nil
}

// Ping issues a GET, which the web app answers without writing a row.
func (w *Webhook) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return err
	}
	if _, err := w.do(req); err != nil {
		return fmt.Errorf("webhook ping: %w", err)
	}
	return nil
}

func (w *Webhook) do(req *http.Request) (envelope, error) {
	resp, err := w.client.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return envelope{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status == "error" {
		return env, fmt.Errorf("%w: %s", ErrWebhookRejected, env.Message)
	}
	return env, nil
}
