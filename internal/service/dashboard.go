package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
)

const (
	dateLayout       = "2006-01-02"
	dashboardTopN    = 5
	bestSellersLimit = 10
)

type window struct {
	from time.Time
	to   time.Time
}

// resolveRange maps a dashboard range onto a half-open [from, to) window in
// UTC. Custom dates are inclusive calendar days.
func (s *Service) resolveRange(rangeName domain.DashboardRange, from string, to string) (window, error) {
	today := startOfDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)

	switch rangeName {
	case "", domain.RangeDaily:
		return window{from: today, to: tomorrow}, nil
	case domain.RangeWeekly:
		return window{from: today.AddDate(0, 0, -6), to: tomorrow}, nil
	case domain.RangeMonthly:
		return window{from: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), to: tomorrow}, nil
	case domain.RangeCustom:
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return window{}, billing.Invalid("range", "custom range needs from and to dates")
		}
		start, err := time.Parse(dateLayout, strings.TrimSpace(from))
		if err != nil {
			return window{}, billing.Invalid("from", "from must be YYYY-MM-DD")
		}
		end, err := time.Parse(dateLayout, strings.TrimSpace(to))
		if err != nil {
			return window{}, billing.Invalid("to", "to must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return window{}, billing.Invalid("to", "to must not be before from")
		}
		return window{from: start, to: end.AddDate(0, 0, 1)}, nil
	default:
		return window{}, billing.Invalid("range", "range must be daily, weekly, monthly or custom")
	}
}

func (s *Service) DashboardStats(ctx context.Context, rangeName domain.DashboardRange, from string, to string) (domain.DashboardStats, error) {
	rangeName = domain.DashboardRange(strings.ToLower(strings.TrimSpace(string(rangeName))))
	if rangeName == "" {
		rangeName = domain.RangeDaily
	}
	win, err := s.resolveRange(rangeName, from, to)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	cacheKey := fmt.Sprintf("stats:%s:%s:%s", rangeName, win.from.Format(dateLayout), win.to.Format(dateLayout))
	var cached domain.DashboardStats
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		s.log.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	totals, err := s.repo.SalesTotals(ctx, win.from, win.to)
	if err != nil {
		return domain.DashboardStats{}, storeErr("load sales totals", err)
	}
	graph, err := s.repo.DailySales(ctx, win.from, win.to)
	if err != nil {
		return domain.DashboardStats{}, storeErr("load daily sales", err)
	}
	lowStock, err := s.repo.LowStock(ctx, domain.LowStockThreshold, dashboardTopN)
	if err != nil {
		return domain.DashboardStats{}, storeErr("load low stock", err)
	}
	topItems, err := s.repo.TopItems(ctx, win.from, win.to, dashboardTopN)
	if err != nil {
		return domain.DashboardStats{}, storeErr("load top items", err)
	}

	stats := domain.DashboardStats{
		Range:      rangeName,
		From:       win.from,
		To:         win.to,
		TotalSales: billing.Round2(totals.TotalSales),
		BillsCount: totals.BillsCount,
		AvgBill:    decimal.Zero,
		ItemsSold:  totals.ItemsSold,
		Profit:     billing.Round2(totals.Profit),
		GraphData:  roundSeries(graph),
		LowStock:   nonNil(lowStock),
		TopItems:   nonNil(topItems),
	}
	if totals.BillsCount > 0 {
		stats.AvgBill = billing.Round2(totals.TotalSales.Div(decimal.NewFromInt(totals.BillsCount)))
	}

	if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return stats, nil
}

// SalesOverview backs the landing dashboard: today's takings, 7 and 30 day
// series and the best sellers of the last 30 days.
func (s *Service) SalesOverview(ctx context.Context) (domain.SalesOverview, error) {
	today := startOfDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -6)
	monthStart := today.AddDate(0, 0, -29)

	cacheKey := "overview:" + today.Format(dateLayout)
	var cached domain.SalesOverview
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		s.log.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	todayTotals, err := s.repo.SalesTotals(ctx, today, tomorrow)
	if err != nil {
		return domain.SalesOverview{}, storeErr("load sales totals", err)
	}
	weekly, err := s.repo.DailySales(ctx, weekStart, tomorrow)
	if err != nil {
		return domain.SalesOverview{}, storeErr("load daily sales", err)
	}
	monthly, err := s.repo.DailySales(ctx, monthStart, tomorrow)
	if err != nil {
		return domain.SalesOverview{}, storeErr("load daily sales", err)
	}
	best, err := s.repo.TopItems(ctx, monthStart, tomorrow, bestSellersLimit)
	if err != nil {
		return domain.SalesOverview{}, storeErr("load best sellers", err)
	}

	overview := domain.SalesOverview{
		TodaySales:  billing.Round2(todayTotals.TotalSales),
		Weekly:      roundSeries(weekly),
		Monthly:     roundSeries(monthly),
		BestSellers: nonNil(best),
	}
	if err := s.cache.Set(ctx, cacheKey, overview, s.cacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return overview, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func roundSeries(points []domain.DailySales) []domain.DailySales {
	out := make([]domain.DailySales, len(points))
	for i, point := range points {
		out[i] = domain.DailySales{Date: point.Date, Sales: billing.Round2(point.Sales)}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
