// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/melabel/internal/cms"
	"github.com/0x0BSoD/melabel/internal/config"
	"github.com/0x0BSoD/melabel/internal/evaluator"
	"github.com/0x0BSoD/melabel/internal/generator"
	"github.com/0x0BSoD/melabel/internal/logging"
	"github.com/0x0BSoD/melabel/internal/notifier"
	"github.com/0x0BSoD/melabel/internal/pipeline"
	"github.com/0x0BSoD/melabel/internal/reporter"
	"github.com/0x0BSoD/melabel/internal/server"
	"github.com/0x0BSoD/melabel/internal/source"
	"github.com/0x0BSoD/melabel/internal/summary"
	"github.com/0x0BSoD/melabel/internal/transport"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 10 * time.Second

var (
	verbose bool
	logger  *zap.Logger
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "melabel",
		Short:         "Research bot: PubMed papers to patient-friendly articles and announcements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := logging.New(config.Get().LogLevel, verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(), serveCmd(), transportsCmd(), sheetsCmd(), versionCmd())

	return root
}

func runCmd() *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion pipeline once, or on a schedule with --every",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPipeline(cmd.Context(), config.Get())
			if err != nil {
				logger.Error("failed to set up pipeline", zap.Error(err))
				return err
			}

			if err := p.Start(cmd.Context(), every); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Info("pipeline stopped")
					return nil
				}
				logger.Error("pipeline failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the run on this interval (0 runs once)")

	return cmd
}

func buildPipeline(ctx context.Context, cfg config.Config) (*pipeline.Pipeline, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}

	llm, err := summary.New(ctx, summary.Options{
		Type:    cfg.AIType,
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("language model ready", zap.String("type", cfg.AIType), zap.String("model", summary.ModelFor(cfg.AIType, cfg.AIModel)))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	publisher, err := cms.New(httpClient, cfg.CMSServiceDomain, cfg.CMSEndpoint, cfg.CMSAPIKey, logger)
	if err != nil {
		return nil, err
	}

	sender, err := transport.Resolve(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("announcement transport selected", zap.String("transport", sender.Name()))

	catalogue, err := notifier.DefaultCatalogue()
	if err != nil {
		return nil, err
	}
	logger.Debug("announcement templates loaded", zap.Strings("templates", catalogue.Names()))

	var notifyOpts []notifier.Option
	if sender.Name() == transport.ModeTwitter {
		notifyOpts = append(notifyOpts, notifier.WithCounter(notifier.TwitterLength))
	}

	rep, err := reporter.FromToken(cfg.TelegramBotToken, cfg.TelegramAdminChatID, logger)
	if err != nil {
		logger.Warn("run reports disabled", zap.Error(err))
	}

	var runReporter pipeline.Reporter
	if rep != nil {
		runReporter = rep
	}

	return pipeline.New(
		source.NewPubMed(httpClient, cfg.NCBIAPIKey, cfg.NCBIEmail, logger),
		evaluator.New(llm, cfg.EvaluateInterval, logger),
		generator.New(llm),
		publisher,
		notifier.New(sender, catalogue, cfg.SiteURL, cfg.AnnounceInterval, cfg.Location(), logger, notifyOpts...),
		runReporter,
		pipeline.Options{LookbackDays: cfg.LookbackDays, ScoreThreshold: cfg.ScoreThreshold},
		logger,
	), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the RSS feed, sitemap and research list API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Get()
			if err := cfg.ValidateForCMS(); err != nil {
				logger.Error("cannot serve", zap.Error(err))
				return err
			}

			lister, err := cms.New(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.CMSServiceDomain, cfg.CMSEndpoint, cfg.CMSAPIKey, logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           server.New(lister, cfg.SiteURL, logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				logger.Error("server failed", zap.Error(err))
				return err
			}
			logger.Info("http server stopped")
			return nil
		},
	}
}

func transportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transports",
		Short: "Show which announcement transports the configuration would try, without contacting them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Get()
			modes, err := transport.Plan(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\ntwitter configured: %t\nsheets configured: %t\nwebhook configured: %t\nwould try: %s\n",
				cfg.Transport, cfg.HasTwitter(), cfg.HasSheets(), cfg.HasWebhook(), strings.Join(modes, " -> "))
			return nil
		},
	}
}

func sheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Work through announcement drafts in the Google Sheets queue",
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List drafts that have not been posted yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := transport.SheetsFromConfig(cmd.Context(), config.Get(), logger)
			if err != nil {
				return err
			}
			drafts, err := s.Pending(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range drafts {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", d.Row, d.Status, d.Slug, d.Title)
			}
			logger.Info("pending drafts listed", zap.Int("count", len(drafts)))
			return nil
		},
	}

	mark := &cobra.Command{
		Use:   "mark <row> <pending|posted|error|skipped>",
		Short: "Set the status of a draft row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("row %q is not a number", args[0])
			}
			status, err := transport.ParseStatus(args[1])
			if err != nil {
				return err
			}

			s, err := transport.SheetsFromConfig(cmd.Context(), config.Get(), logger)
			if err != nil {
				return err
			}
			if err := s.UpdateStatus(cmd.Context(), row, status); err != nil {
				return err
			}
			logger.Info("draft status updated", zap.Int("row", row), zap.String("status", status))
			return nil
		},
	}

	cmd.AddCommand(pending, mark)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
