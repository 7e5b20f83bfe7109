package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kalambet/bookwise/internal/aladin"
	"github.com/kalambet/bookwise/internal/api"
	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/composer"
	"github.com/kalambet/bookwise/internal/config"
	"github.com/kalambet/bookwise/internal/engine"
	"github.com/kalambet/bookwise/internal/intent"
	"github.com/kalambet/bookwise/internal/pipeline"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
)

// services is everything the server and the in-process commands share.
// recommender and index are nil when initErr is set; the rest of the
// service keeps working.
type services struct {
	cfg         config.Config
	engine      engine.Engine
	store       *storage.Store
	catalog     *catalog.Catalog
	index       *retrieval.IndexManager
	recommender *pipeline.Recommender
	initErr     error
}

// openServices wires the recommendation pipeline. Only failures that make
// the whole process useless (history store, LLM config) are returned;
// a missing catalog or a failed index build is kept in initErr.
func openServices(ctx context.Context, cfg config.Config, progress io.Writer) (*services, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	eng, err := engine.Detect(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("detecting llm engine: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, cfg.LLM.ChatModel, cfg.LLM.EmbedModel, progress); err != nil {
		zap.L().Warn("llm backend not ready; requests may fail", zap.Error(err))
	}

	s := &services{cfg: cfg, engine: eng, store: store}

	cat, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		s.initErr = fmt.Errorf("opening catalog %s: %w", cfg.Catalog.DBPath, err)
		zap.L().Error("recommendation feature disabled", zap.Error(s.initErr))
		return s, nil
	}
	s.catalog = cat

	embedder := retrieval.NewEmbedder(eng, cfg.LLM.EmbedModel)
	mgr := retrieval.NewIndexManager(cat, embedder, cfg.IndexPath())
	if _, err := mgr.EnsureIndex(ctx); err != nil {
		s.initErr = fmt.Errorf("preparing category index: %w", err)
		zap.L().Error("recommendation feature disabled", zap.Error(s.initErr))
		return s, nil
	}
	s.index = mgr

	if cfg.Aladin.TTBKey == "" {
		zap.L().Warn("no Aladin TTB key configured; external search will return no books")
	}
	search := aladin.NewBreaker(aladin.New(cfg.Aladin.BaseURL, cfg.Aladin.TTBKey, cfg.Aladin.MaxResults))

	s.recommender = pipeline.New(pipeline.Deps{
		Gate:      retrieval.NewGate(mgr, embedder, cfg.Recommend.Threshold),
		Books:     cat,
		Search:    search,
		Extractor: intent.NewExtractor(eng, cfg.LLM.ChatModel),
		Composer:  composer.New(eng, cfg.LLM.ChatModel),
		Recorder:  store,
	}, cfg.Recommend.DefaultCategory)

	return s, nil
}

// apiDeps adapts services to the HTTP layer, keeping nil interfaces nil.
func (s *services) apiDeps() api.Deps {
	d := api.Deps{
		InitErr:     s.initErr,
		History:     s.store,
		AdminToken:  s.cfg.Server.AdminToken,
		CORSOrigins: s.cfg.CORSOriginList(),
		RateLimit:   s.cfg.Server.RateLimit,
		Timeout:     s.cfg.RecommendTimeout(),
	}
	if s.recommender != nil {
		d.Recommender = s.recommender
	}
	if s.index != nil {
		d.Index = s.index
	}
	return d
}

func (s *services) mcpDeps() api.MCPDeps {
	d := api.MCPDeps{
		InitErr: s.initErr,
		History: s.store,
		Timeout: s.cfg.RecommendTimeout(),
		Version: version,
	}
	if s.recommender != nil {
		d.Recommender = s.recommender
	}
	if s.index != nil {
		d.Index = s.index
	}
	return d
}

func (s *services) Close() error {
	var errs []error
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}
