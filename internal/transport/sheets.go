// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	googleTokenURL = "https://oauth2.googleapis.com/token"

	sheetRange  = "Sheet1!A:J"
	headerRange = "Sheet1!A1:J1"
	inputOption = "USER_ENTERED"

	StatusPending = "未投稿"
	StatusPosted  = "投稿済み"
	StatusError   = "エラー"
	StatusSkipped = "スキップ"
)

var headers = []any{"タイムスタンプ", "日付", "時刻", "記事タイトル", "投稿文", "スラッグ", "記事URL", "難易度", "タグ", "ステータス"}

type GoogleCredentials struct {
	ServiceAccountEmail string
	PrivateKey          string
	SpreadsheetID       string
}

// Sheets appends announcement drafts to a spreadsheet for manual posting.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	loc           *time.Location
	now           func() time.Time
	logger        *zap.Logger
}

// NewSheets authenticates as a service account. Private keys stored in env files often carry
// literal \n sequences, which are expanded here.
func NewSheets(ctx context.Context, creds GoogleCredentials, timeout time.Duration, loc *time.Location, logger *zap.Logger) (*Sheets, error) {
	conf := &jwt.Config{
		Email:      creds.ServiceAccountEmail,
		PrivateKey: []byte(strings.ReplaceAll(creds.PrivateKey, `\n`, "\n")),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   googleTokenURL,
	}

	client := conf.Client(ctx)
	client.Timeout = timeout

	return NewSheetsWithClient(ctx, client, creds.SpreadsheetID, loc, logger)
}

func NewSheetsWithClient(ctx context.Context, client *http.Client, spreadsheetID string, loc *time.Location, logger *zap.Logger, opts ...option.ClientOption) (*Sheets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		loc:           loc,
		now:           time.Now,
		logger:        logger,
	}, nil
}

func (s *Sheets) Name() string { return "sheets" }

func (s *Sheets) Send(ctx context.Context, a model.Announcement) error {
	now := s.now()
	local := now.In(s.loc)

	row := []any{
		now.UTC().Format(time.RFC3339),
		local.Format("2006/01/02"),
		local.Format("15:04:05"),
		a.Article.Title,
		a.Text,
		a.Article.Slug,
		a.URL,
		DifficultyLabel(a.Article.Difficulty),
		a.Article.Tags,
		StatusPending,
	}

	resp, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, sheetRange, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption(inputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	fields := []zap.Field{zap.String("slug", a.Article.Slug)}
	if resp.Updates != nil {
		if n, ok := RowFromRange(resp.Updates.UpdatedRange); ok {
			fields = append(fields, zap.Int("row", n))
		}
	}
	s.logger.Info("draft appended to sheet", fields...)
	return nil
}

// Ping checks that the spreadsheet is reachable with the configured account.
func (s *Sheets) Ping(ctx context.Context) error {
	sp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets ping: %w", err)
	}
	if sp.Properties != nil {
		s.logger.Debug("spreadsheet reachable", zap.String("title", sp.Properties.Title))
	}
	return nil
}

// Prepare writes the header row. It runs once after the transport is chosen.
func (s *Sheets) Prepare(ctx context.Context) error {
	return s.SetupHeaders(ctx)
}

func (s *Sheets) SetupHeaders(ctx context.Context) error {
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, headerRange, &sheets.ValueRange{Values: [][]any{headers}}).
		ValueInputOption(inputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("setup headers: %w", err)
	}
	return nil
}

// UpdateStatus sets the status column of a 1-based sheet row.
func (s *Sheets) UpdateStatus(ctx context.Context, row int, status string) error {
	if row < 2 {
		return fmt.Errorf("row %d is the header or out of range", row)
	}

	rng := "Sheet1!J" + strconv.Itoa(row)
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{{status}}}).
		ValueInputOption(inputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update status of row %d: %w", row, err)
	}
	return nil
}

type Draft struct {
	Row    int
	Title  string
	Text   string
	Slug   string
	URL    string
	Status string
}

// Pending lists drafts that have not been posted yet.
func (s *Sheets) Pending(ctx context.Context) ([]Draft, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	var out []Draft
	for i, row := range resp.Values {
		if i == 0 {
			continue
		}
		d := Draft{
			Row:    i + 1,
			Title:  cell(row, 3),
			Text:   cell(row, 4),
			Slug:   cell(row, 5),
			URL:    cell(row, 6),
			Status: cell(row, 9),
		}
		if d.Status == "" {
			d.Status = StatusPending
		}
		if d.Status == StatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

var statusAliases = map[string]string{
	"pending": StatusPending,
	"posted":  StatusPosted,
	"error":   StatusError,
	"skipped": StatusSkipped,
}

// ParseStatus accepts a status column value or its English alias.
func ParseStatus(s string) (string, error) {
	s = strings.TrimSpace(s)
	if v, ok := statusAliases[strings.ToLower(s)]; ok {
		return v, nil
	}
	for _, v := range statusAliases {
		if s == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown draft status %q", s)
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return fmt.Sprint(row[i])
}

// DifficultyLabel renders the difficulty column.
func DifficultyLabel(difficulty []string) string {
	level := ""
	if len(difficulty) > 0 {
		level = difficulty[0]
	}
	switch model.Difficulty(level) {
	case model.DifficultyBeginner:
		return "🟢 初級"
	case model.DifficultyAdvanced:
		return "🔴 上級"
	default:
		return "🟡 中級"
	}
}

var updatedRow = regexp.MustCompile(`![A-Z]+(\d+)`)

// RowFromRange extracts the first row number from an A1 range such as "Sheet1!A5:J5".
func RowFromRange(a1 string) (int, bool) {
	m := updatedRow.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}
