// Package calendar keeps the current calendar index alive: it rebuilds the
// index from a fresh page fetch on demand or on a cron schedule and hands out
// the query engine for the latest successful build.
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"campuscal/internal/calindex"
	"campuscal/internal/datetext"
	appLog "campuscal/internal/log"
	"campuscal/internal/metrics"
	"campuscal/internal/query"
	"campuscal/internal/scrape"
)

// ErrNotReady is returned by Engine before the first successful refresh.
var ErrNotReady = errors.New("calendar: index not built yet")

// PageFetcher retrieves the raw calendar page. *scrape.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (scrape.Page, error)
}

// Options configure how pages are turned into an index and how it is queried.
type Options struct {
	URL           string
	Selectors     scrape.Selectors
	Parser        *datetext.Parser
	EngineOptions []query.Option
}

// Service owns the current query engine. Each refresh builds a brand new
// index; the previous one stays in use until the new one is complete.
type Service struct {
	fetcher PageFetcher
	opts    Options

	mu         sync.Mutex // serializes Refresh
	current    atomic.Pointer[query.Engine]
	generation atomic.Uint64
}

func New(fetcher PageFetcher, opts Options) *Service {
	if opts.Selectors == (scrape.Selectors{}) {
		opts.Selectors = scrape.DefaultSelectors
	}
	if opts.Parser == nil {
		opts.Parser = &datetext.Parser{}
	}
	return &Service{fetcher: fetcher, opts: opts}
}

// Refresh fetches the page and swaps in a freshly built index. On failure the
// previous index, if any, stays in place and the error is returned.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	engine, err := s.build(ctx)
	if err != nil {
		metrics.RecordRefreshFailure()
		if s.current.Load() != nil {
			appLog.Error("calendar refresh failed; keeping previous index", err,
				"generation", s.generation.Load(),
			)
		}
		return err
	}

	s.current.Store(engine)
	gen := s.generation.Add(1)

	idx := engine.Index()
	metrics.RecordRefresh(idx.Len(), len(idx.Skipped()), idx.BuiltAt())
	appLog.Info("calendar refreshed",
		"generation", gen,
		"keys", idx.Len(),
		"skipped", len(idx.Skipped()),
	)
	return nil
}

func (s *Service) build(ctx context.Context) (*query.Engine, error) {
	page, err := s.fetcher.Fetch(ctx, s.opts.URL)
	if err != nil {
		return nil, err
	}

	entries, err := scrape.Extract(bytes.NewReader(page.Body), s.opts.Selectors)
	if err != nil {
		return nil, fmt.Errorf("calendar: extract entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("calendar: page contained no calendar entries")
	}

	idx := calindex.Build(entries, s.opts.Parser)
	return query.New(idx, s.opts.EngineOptions...), nil
}

// Engine returns the engine for the latest successful build.
func (s *Service) Engine() (*query.Engine, error) {
	e := s.current.Load()
	if e == nil {
		return nil, ErrNotReady
	}
	return e, nil
}

// Generation counts successful refreshes; it changes whenever Engine would
// return a different index.
func (s *Service) Generation() uint64 {
	return s.generation.Load()
}

// Start schedules Refresh on the given standard cron spec until ctx is done.
// Runs that would overlap a still-running refresh are skipped.
func (s *Service) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		if err := s.Refresh(ctx); err != nil && s.current.Load() == nil {
			appLog.Error("scheduled calendar refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("calendar: invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("calendar refresh scheduled", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("calendar refresh scheduler stopped")
	}()
	return nil
}
