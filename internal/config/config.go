// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
	"github.com/joho/godotenv"
)

var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	AIType    string        `hcl:"ai_type" env:"AI_TYPE" default:"openai"`
	AIBaseURL string        `hcl:"ai_base_url" env:"AI_BASE_URL"`
	AIKey     string        `hcl:"ai_key" env:"OPENAI_API_KEY"`
	AIModel   string        `hcl:"ai_model" env:"AI_MODEL"`
	AITimeout time.Duration `hcl:"ai_timeout" env:"AI_TIMEOUT" default:"5m"`

	CMSAPIKey        string `hcl:"cms_api_key" env:"MICROCMS_API_KEY"`
	CMSServiceDomain string `hcl:"cms_service_domain" env:"MICROCMS_SERVICE_DOMAIN"`
	CMSEndpoint      string `hcl:"cms_endpoint" env:"MICROCMS_ENDPOINT" default:"articles"`

	NCBIAPIKey string `hcl:"ncbi_api_key" env:"NCBI_API_KEY"`
	NCBIEmail  string `hcl:"ncbi_email" env:"NCBI_EMAIL"`

	LookbackDays   int           `hcl:"lookback_days" env:"LOOKBACK_DAYS" default:"14"`
	ScoreThreshold float64       `hcl:"score_threshold" env:"SCORE_THRESHOLD" default:"4.0"`
	SiteURL        string        `hcl:"site_url" env:"SITE_URL" default:"https://no-label.me"`
	Timezone       string        `hcl:"timezone" env:"TIMEZONE" default:"Asia/Tokyo"`
	HTTPTimeout    time.Duration `hcl:"http_timeout" env:"HTTP_TIMEOUT" default:"30s"`

	EvaluateInterval time.Duration `hcl:"evaluate_interval" env:"EVALUATE_INTERVAL" default:"1s"`
	AnnounceInterval time.Duration `hcl:"announce_interval" env:"ANNOUNCE_INTERVAL" default:"2s"`

	// Transport is one of auto, twitter, sheets, webhook, log.
	Transport string `hcl:"transport" env:"ANNOUNCE_TRANSPORT" default:"auto"`

	TwitterAPIKey            string `hcl:"twitter_api_key" env:"TWITTER_API_KEY"`
	TwitterAPISecret         string `hcl:"twitter_api_secret" env:"TWITTER_API_SECRET"`
	TwitterAccessToken       string `hcl:"twitter_access_token" env:"TWITTER_ACCESS_TOKEN"`
	TwitterAccessTokenSecret string `hcl:"twitter_access_token_secret" env:"TWITTER_ACCESS_TOKEN_SECRET"`
	TwitterBaseURL           string `hcl:"twitter_base_url" env:"TWITTER_BASE_URL"`

	GoogleServiceAccountEmail string `hcl:"google_service_account_email" env:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	GooglePrivateKey          string `hcl:"google_private_key" env:"GOOGLE_PRIVATE_KEY"`
	GoogleSpreadsheetID       string `hcl:"google_spreadsheet_id" env:"GOOGLE_SPREADSHEET_ID"`

	WebhookSheetsURL string `hcl:"webhook_sheets_url" env:"WEBHOOK_SHEETS_URL"`

	TelegramBotToken    string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `hcl:"telegram_admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`

	ListenAddr string `hcl:"listen_addr" env:"LISTEN_ADDR" default:"127.0.0.1:8088"`
	LogLevel   string `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
}

var (
	cfg  Config
	once sync.Once
)

func Get() Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("[DEBUG] no .env loaded: %v", err)
		}

		loader := aconfig.LoaderFor(&cfg, aconfig.Config{
			SkipFlags: true,
			Files:     []string{"./config.hcl", "./config.local.hcl", "$HOME/.config/melabel/config.hcl"},
			FileDecoders: map[string]aconfig.FileDecoder{
				".hcl": aconfighcl.New(),
			},
		})

		if err := loader.Load(); err != nil {
			log.Printf("[ERROR] failed to load config: %v", err)
		}
	})

	return cfg
}

func (c Config) HasTwitter() bool {
	return c.TwitterAPIKey != "" && c.TwitterAPISecret != "" &&
		c.TwitterAccessToken != "" && c.TwitterAccessTokenSecret != ""
}

func (c Config) HasSheets() bool {
	return c.GoogleServiceAccountEmail != "" && c.GooglePrivateKey != "" && c.GoogleSpreadsheetID != ""
}

func (c Config) HasWebhook() bool {
	return c.WebhookSheetsURL != ""
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateForRun checks the settings the ingestion pipeline cannot start without.
func (c Config) ValidateForRun() error {
	if err := c.ValidateForCMS(); err != nil {
		return err
	}

	switch c.AIType {
	case "openai", "gemini":
		if c.AIKey == "" {
			return fmt.Errorf("%w: ai_key is required when ai_type is %q", ErrMissingCredentials, c.AIType)
		}
	case "ollama":
		if c.AIBaseURL == "" {
			return fmt.Errorf("%w: ai_base_url is required when ai_type is \"ollama\"", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("unknown ai_type %q", c.AIType)
	}

	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %d", c.LookbackDays)
	}

	if c.ScoreThreshold < 0 || c.ScoreThreshold > 5 {
		return fmt.Errorf("score_threshold %.2f is outside 0..5", c.ScoreThreshold)
	}

	return nil
}

func (c Config) ValidateForCMS() error {
	if strings.TrimSpace(c.CMSAPIKey) == "" || strings.TrimSpace(c.CMSServiceDomain) == "" {
		return fmt.Errorf("%w: cms_api_key and cms_service_domain are required", ErrMissingCredentials)
	}
	return nil
}
