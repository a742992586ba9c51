// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport holds the announcement transports and picks the one a run will use.
package transport

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/config"
	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	ModeAuto    = "auto"
	ModeTwitter = "twitter"
	ModeSheets  = "sheets"
	ModeWebhook = "webhook"
	ModeLog     = "log"
)

type Transport interface {
	Name() string
	Send(ctx context.Context, a model.Announcement) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type preparer interface {
	Prepare(ctx context.Context) error
}

// Log writes announcements to the run log. It never touches the network.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Send(_ context.Context, a model.Announcement) error {
	l.logger.Info("announcement",
		zap.String("template", a.Template),
		zap.String("url", a.URL),
		zap.String("text", a.Text),
	)
	return nil
}

// Choose returns the first candidate that answers its connectivity check, falling back to the
// log transport. Nil candidates are skipped. A chosen transport that needs one-off setup gets it
// here; a setup failure is only logged.
func Choose(ctx context.Context, logger *zap.Logger, candidates ...Transport) Transport {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, c := range candidates {
		if c == nil {
			continue
		}
		if p, ok := c.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("transport unavailable, trying next", zap.String("transport", c.Name()), zap.Error(err))
				continue
			}
		}
		if p, ok := c.(preparer); ok {
			if err := p.Prepare(ctx); err != nil {
				logger.Info("transport setup skipped", zap.String("transport", c.Name()), zap.Error(err))
			}
		}
		return c
	}

	return NewLog(logger)
}

// Resolve builds the transport selected by cfg.Transport. In auto mode the order is twitter,
// sheets, webhook, then log. Forcing a transport whose credentials are missing is an error.
func Resolve(ctx context.Context, cfg config.Config, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tw, err := twitterFrom(cfg, logger)
	if err != nil {
		return nil, err
	}
	sh, err := sheetsFrom(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	wh := webhookFrom(cfg, logger)

	missing := func(name string) error {
		return fmt.Errorf("transport %q: %w", name, config.ErrMissingCredentials)
	}

	switch cfg.Transport {
	case ModeAuto, "":
		var candidates []Transport
		if tw != nil {
			candidates = append(candidates, tw)
		}
		if sh != nil {
			candidates = append(candidates, sh)
		}
		if wh != nil {
			candidates = append(candidates, wh)
		}
		return Choose(ctx, logger, candidates...), nil
	case ModeTwitter:
		if tw == nil {
			return nil, missing(ModeTwitter)
		}
		return tw, nil
	case ModeSheets:
		if sh == nil {
			return nil, missing(ModeSheets)
		}
		if err := sh.Prepare(ctx); err != nil {
			logger.Info("transport setup skipped", zap.String("transport", ModeSheets), zap.Error(err))
		}
		return sh, nil
	case ModeWebhook:
		if wh == nil {
			return nil, missing(ModeWebhook)
		}
		return wh, nil
	case ModeLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func twitterFrom(cfg config.Config, logger *zap.Logger) (*Twitter, error) {
	if !cfg.HasTwitter() {
		return nil, nil
	}
	creds := TwitterCredentials{
		APIKey:            cfg.TwitterAPIKey,
		APISecret:         cfg.TwitterAPISecret,
		AccessToken:       cfg.TwitterAccessToken,
		AccessTokenSecret: cfg.TwitterAccessTokenSecret,
	}
	return NewTwitter(creds, cfg.TwitterBaseURL, cfg.HTTPTimeout, logger), nil
}

func sheetsFrom(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Sheets, error) {
	if !cfg.HasSheets() {
		return nil, nil
	}
	creds := GoogleCredentials{
		ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
		PrivateKey:          cfg.GooglePrivateKey,
		SpreadsheetID:       cfg.GoogleSpreadsheetID,
	}
	return NewSheets(ctx, creds, cfg.HTTPTimeout, cfg.Location(), logger)
}

func webhookFrom(cfg config.Config, logger *zap.Logger) *Webhook {
	if !cfg.HasWebhook() {
		return nil
	}
	return NewWebhook(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.WebhookSheetsURL, cfg.Location(), logger)
}

// Plan lists, without contacting anything, the transports Resolve would consider for cfg in the
// order it would try them. In auto mode the log transport closes the list.
func Plan(cfg config.Config) ([]string, error) {
	switch cfg.Transport {
	case ModeAuto, "":
		var modes []string
		if cfg.HasTwitter() {
			modes = append(modes, ModeTwitter)
		}
		if cfg.HasSheets() {
			modes = append(modes, ModeSheets)
		}
		if cfg.HasWebhook() {
			modes = append(modes, ModeWebhook)
		}
		return append(modes, ModeLog), nil
	case ModeTwitter, ModeSheets, ModeWebhook:
		configured := map[string]bool{
			ModeTwitter: cfg.HasTwitter(),
			ModeSheets:  cfg.HasSheets(),
			ModeWebhook: cfg.HasWebhook(),
		}
		if !configured[cfg.Transport] {
			return nil, fmt.Errorf("transport %q: %w", cfg.Transport, config.ErrMissingCredentials)
		}
		return []string{cfg.Transport}, nil
	case ModeLog:
		return []string{ModeLog}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// SheetsFromConfig opens the draft spreadsheet directly, for working through posted drafts.
func SheetsFromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Sheets, error) {
	if !cfg.HasSheets() {
		return nil, fmt.Errorf("transport %q: %w", ModeSheets, config.ErrMissingCredentials)
	}
	return sheetsFrom(ctx, cfg, logger)
}
