// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"

	"github.com/0x0BSoD/melabel/internal/config"
	"github.com/0x0BSoD/melabel/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func announcement() model.Announcement {
	return model.Announcement{
		Article: model.Article{
			Title:      "肺がんの新しい治療",
			Slug:       "research-1-1",
			Tags:       "肺がん, 免疫療法",
			Difficulty: []string{"beginner"},
		},
		Template: "standard",
		Text:     "📄 新しい研究記事を公開しました",
		URL:      "https://no-label.me/research/research-1-1",
	}
}

func TestTwitterSendSignsRequest(t *testing.T) {
	var got struct {
		Text string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "), auth)
		assert.Contains(t, auth, `oauth_consumer_key="ck"`)
		assert.Contains(t, auth, `oauth_token="at"`)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1790","text":"x"}}`))
	}))
	defer srv.Close()

	tw := NewTwitter(TwitterCredentials{"ck", "cs", "at", "as"}, srv.URL, time.Second, nil)
	require.NoError(t, tw.Send(context.Background(), announcement()))
	assert.Equal(t, "📄 新しい研究記事を公開しました", got.Text)
}

func TestTwitterPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"1","username":"melabel"}}`))
	}))
	defer srv.Close()

	tw := NewTwitter(TwitterCredentials{"ck", "cs", "at", "as"}, srv.URL, time.Second, nil)
	assert.NoError(t, tw.Ping(context.Background()))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()
	assert.Error(t, NewTwitter(TwitterCredentials{"ck", "cs", "at", "as"}, bad.URL, time.Second, nil).Ping(context.Background()))
}

func TestWebhookSend(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","message":"added","row":5}`))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.Client(), srv.URL, jst, nil)
	wh.now = func() time.Time { return time.Date(2025, 3, 15, 0, 30, 0, 0, time.UTC) }

	require.NoError(t, wh.Send(context.Background(), announcement()))
	assert.Equal(t, webhookPayload{
		Timestamp:  "2025/03/15 09:30",
		Title:      "肺がんの新しい治療",
		TweetText:  "📄 新しい研究記事を公開しました",
		ArticleURL: "https://no-label.me/research/research-1-1",
		Difficulty: "beginner",
		Tags:       "肺がん, 免疫療法",
		Posted:     "No",
	}, got)
}

func TestWebhookErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"sheet is locked"}`))
	}))
	defer srv.Close()

	err := NewWebhook(srv.Client(), srv.URL, jst, nil).Send(context.Background(), announcement())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWebhookRejected)
	assert.Contains(t, err.Error(), "sheet is locked")
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.Client(), srv.URL, jst, nil).Send(context.Background(), announcement())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookPingUsesGet(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte(`{"status":"success","message":"Webhook is working!"}`))
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.Client(), srv.URL, jst, nil).Ping(context.Background()))
	assert.Equal(t, []string{http.MethodGet}, methods)
}

// fakeSheets records calls made against the Sheets REST API.
type fakeSheets struct {
	mu    sync.Mutex
	calls []string
	rows  [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows = append(f.rows, body.Values...)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid","updates":{"updatedRange":"Sheet1!A2:J2"}}`))
	case r.Method == http.MethodPut:
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid"}`))
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		_, _ = w.Write([]byte(`{"values":[["h"],["t","d","c","A","text","a","u","🟡 中級","tags","未投稿"],["t","d","c","B","text","b","u","🟡 中級","tags","投稿済み"],["t","d","c","C","text","c"]]}`))
	case r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid","properties":{"title":"drafts"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestSheets(t *testing.T, f *fakeSheets) *Sheets {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := NewSheetsWithClient(context.Background(), srv.Client(), "sid", jst, nil, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 3, 15, 0, 30, 0, 0, time.UTC) }
	return s
}

func TestSheetsSend(t *testing.T) {
	f := &fakeSheets{}
	s := newTestSheets(t, f)

	require.NoError(t, s.Send(context.Background(), announcement()))
	require.Len(t, f.rows, 1)
	assert.Equal(t, []any{
		"2025-03-15T00:30:00Z", "2025/03/15", "09:30:00",
		"肺がんの新しい治療", "📄 新しい研究記事を公開しました", "research-1-1",
		"https://no-label.me/research/research-1-1", "🟢 初級", "肺がん, 免疫療法", "未投稿",
	}, f.rows[0])
}

func TestSheetsHeadersStatusAndPending(t *testing.T) {
	f := &fakeSheets{}
	s := newTestSheets(t, f)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SetupHeaders(ctx))
	require.NoError(t, s.UpdateStatus(ctx, 3, StatusPosted))
	assert.Error(t, s.UpdateStatus(ctx, 1, StatusPosted))

	assert.Contains(t, f.calls, "GET /v4/spreadsheets/sid")
	assert.Contains(t, f.calls, "PUT /v4/spreadsheets/sid/values/Sheet1!A1:J1")
	assert.Contains(t, f.calls, "PUT /v4/spreadsheets/sid/values/Sheet1!J3")

	drafts, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, 2, drafts[0].Row)
	assert.Equal(t, "A", drafts[0].Title)
	assert.Equal(t, 4, drafts[1].Row)
	assert.Equal(t, StatusPending, drafts[1].Status)
}

func TestRowFromRange(t *testing.T) {
	n, ok := RowFromRange("Sheet1!A15:J15")
	assert.True(t, ok)
	assert.Equal(t, 15, n)

	_, ok = RowFromRange("garbage")
	assert.False(t, ok)
}

type fakeTransport struct {
	name    string
	pingErr error
	prepErr error
	pinged  int
	prepped int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(context.Context, model.Announcement) error { return nil }

func (f *fakeTransport) Ping(context.Context) error {
	f.pinged++
	return f.pingErr
}

func (f *fakeTransport) Prepare(context.Context) error {
	f.prepped++
	return f.prepErr
}

func TestChooseOrder(t *testing.T) {
	down := &fakeTransport{name: "twitter", pingErr: errors.New("401")}
	up := &fakeTransport{name: "sheets", prepErr: errors.New("headers exist")}
	never := &fakeTransport{name: "webhook"}

	got := Choose(context.Background(), nil, down, up, never)
	assert.Equal(t, "sheets", got.Name())
	assert.Equal(t, 1, down.pinged)
	assert.Equal(t, 0, down.prepped)
	assert.Equal(t, 1, up.prepped)
	assert.Zero(t, never.pinged)
}

func TestChooseFallsBackToLog(t *testing.T) {
	got := Choose(context.Background(), nil, &fakeTransport{name: "twitter", pingErr: errors.New("down")})
	assert.IsType(t, &Log{}, got)
}

func TestResolveNothingConfiguredLogsOnly(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	tr, err := Resolve(context.Background(), config.Config{Transport: ModeAuto, TwitterBaseURL: srv.URL}, zap.New(core))
	require.NoError(t, err)
	require.Equal(t, "log", tr.Name())

	require.NoError(t, tr.Send(context.Background(), announcement()))
	assert.Zero(t, posts)
	entries := logs.FilterMessage("announcement").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "📄 新しい研究記事を公開しました", entries[0].ContextMap()["text"])
}

func TestResolveAutoSkipsFailingTwitter(t *testing.T) {
	twitter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer twitter.Close()
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer hook.Close()

	cfg := config.Config{
		Transport:                ModeAuto,
		TwitterAPIKey:            "ck",
		TwitterAPISecret:         "cs",
		TwitterAccessToken:       "at",
		TwitterAccessTokenSecret: "as",
		TwitterBaseURL:           twitter.URL,
		WebhookSheetsURL:         hook.URL,
		HTTPTimeout:              time.Second,
	}
	tr, err := Resolve(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "webhook", tr.Name())
}

func TestResolveForced(t *testing.T) {
	_, err := Resolve(context.Background(), config.Config{Transport: ModeTwitter}, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	_, err = Resolve(context.Background(), config.Config{Transport: ModeWebhook}, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	_, err = Resolve(context.Background(), config.Config{Transport: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	tr, err := Resolve(context.Background(), config.Config{Transport: ModeWebhook, WebhookSheetsURL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "webhook", tr.Name())

	tr, err = Resolve(context.Background(), config.Config{Transport: ModeLog, WebhookSheetsURL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "log", tr.Name())
}

func TestPlanDoesNotTouchNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	cfg := config.Config{
		Transport:                 ModeAuto,
		TwitterAPIKey:             "ck",
		TwitterAPISecret:          "cs",
		TwitterAccessToken:        "at",
		TwitterAccessTokenSecret:  "as",
		TwitterBaseURL:            srv.URL,
		GoogleServiceAccountEmail: "bot@x.iam.gserviceaccount.com",
		GooglePrivateKey:          "k",
		GoogleSpreadsheetID:       "sheet",
		WebhookSheetsURL:          srv.URL,
	}
	modes, err := Plan(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{ModeTwitter, ModeSheets, ModeWebhook, ModeLog}, modes)
	assert.Zero(t, calls)

	modes, err = Plan(config.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{ModeLog}, modes)
}

func TestPlanForced(t *testing.T) {
	_, err := Plan(config.Config{Transport: ModeSheets})
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	modes, err := Plan(config.Config{Transport: ModeWebhook, WebhookSheetsURL: "https://script.google.com/x"})
	require.NoError(t, err)
	assert.Equal(t, []string{ModeWebhook}, modes)

	_, err = Plan(config.Config{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]string{
		"posted":    StatusPosted,
		" Skipped ": StatusSkipped,
		StatusError: StatusError,
		"pending":   StatusPending,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("deleted")
	assert.Error(t, err)
}

func TestSheetsFromConfigNeedsCredentials(t *testing.T) {
	_, err := SheetsFromConfig(context.Background(), config.Config{GoogleSpreadsheetID: "sheet"}, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}
