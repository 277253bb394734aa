// Package report serves read-only sales and stock aggregates. Results are
// cached briefly in Redis since dashboards poll them and the queries scan
// invoice history.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Repository is the read-only aggregation port.
type Repository interface {
	SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
	Dashboard(ctx context.Context) (Dashboard, error)
}

// Cache is the caching port, satisfied by platform/cache.Store.
type Cache interface {
	Get(ctx context.Context, key string, target any) error
	Set(ctx context.Context, key string, value any) error
}

type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
}

func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Sales builds the full sales report for the window.
func (s *Service) Sales(ctx context.Context, from, to time.Time) (SalesReport, error) {
	key := fmt.Sprintf("report:sales:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached SalesReport
	if s.cache != nil && s.cache.Get(ctx, key, &cached) == nil {
		return cached, nil
	}

	// The three aggregates are independent scans, so run them together.
	var rep SalesReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.repo.SalesSummary(gctx, from, to)
		if err != nil {
			return fmt.Errorf("sales summary: %w", err)
		}
		rep.Summary = summary
		return nil
	})
	g.Go(func() error {
		top, err := s.repo.TopProducts(gctx, from, to, 10)
		if err != nil {
			return fmt.Errorf("top products: %w", err)
		}
		rep.TopProducts = top
		return nil
	})
	g.Go(func() error {
		daily, err := s.repo.DailySales(gctx, from, to)
		if err != nil {
			return fmt.Errorf("daily sales: %w", err)
		}
		rep.Daily = daily
		return nil
	})
	if err := g.Wait(); err != nil {
		return SalesReport{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rep); err != nil {
			s.logger.Warn("cache sales report failed", "error", err)
		}
	}
	return rep, nil
}

// Dashboard returns the landing-page aggregate.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	const key = "report:dashboard"
	var cached Dashboard
	if s.cache != nil && s.cache.Get(ctx, key, &cached) == nil {
		return cached, nil
	}

	dash, err := s.repo.Dashboard(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dash); err != nil {
			s.logger.Warn("cache dashboard failed", "error", err)
		}
	}
	return dash, nil
}
