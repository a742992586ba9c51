// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server exposes the read endpoints the web frontend and feed readers use.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0x0BSoD/melabel/internal/cms"
	"github.com/0x0BSoD/melabel/internal/feed"
	"github.com/0x0BSoD/melabel/internal/model"
)

const (
	xmlContentType = "application/xml; charset=utf-8"
	rssContentType = "application/rss+xml; charset=utf-8"

	rssCache     = "public, max-age=1800, s-maxage=1800"
	sitemapCache = "public, max-age=3600, s-maxage=3600"
)

type Lister interface {
	List(ctx context.Context, limit, offset int) (cms.ListResult, error)
}

type Server struct {
	lister  Lister
	siteURL string
	logger  *zap.Logger
	now     func() time.Time
}

func New(lister Lister, siteURL string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{lister: lister, siteURL: siteURL, logger: logger, now: time.Now}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})
	r.GET("/research/rss.xml", s.rss)
	r.GET("/research/sitemap.xml", s.sitemap)
	r.GET("/api/research", s.research)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) rss(c *gin.Context) {
	res, err := s.lister.List(c.Request.Context(), feed.RSSLimit, 0)
	if err != nil {
		s.fail(c, "rss", err)
		return
	}

	out, err := feed.RSS(s.siteURL, res.Contents, s.now())
	if err != nil {
		s.fail(c, "rss", err)
		return
	}

	c.Header("Cache-Control", rssCache)
	c.Data(http.StatusOK, rssContentType, out)
}

func (s *Server) sitemap(c *gin.Context) {
	articles, err := s.collect(c.Request.Context(), feed.SitemapLimit)
	if err != nil {
		s.fail(c, "sitemap", err)
		return
	}

	out, err := feed.Sitemap(s.siteURL, articles, s.now())
	if err != nil {
		s.fail(c, "sitemap", err)
		return
	}

	c.Header("Cache-Control", sitemapCache)
	c.Data(http.StatusOK, xmlContentType, out)
}

// collect pages through the CMS until it runs out of articles or limit is reached.
func (s *Server) collect(ctx context.Context, limit int) ([]model.StoredArticle, error) {
	var all []model.StoredArticle
	for offset := 0; offset < limit; {
		res, err := s.lister.List(ctx, min(cms.DefaultListMax, limit-offset), offset)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Contents...)
		offset += len(res.Contents)

		if len(res.Contents) == 0 || offset >= res.TotalCount {
			break
		}
	}
	return all, nil
}

func (s *Server) research(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, cms.DefaultListMax)
	offset := max(queryInt(c, "offset", 0), 0)

	res, err := s.lister.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, "research list", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) fail(c *gin.Context, what string, err error) {
	s.logger.Error("failed to serve "+what, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch research articles"})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
