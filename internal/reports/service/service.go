// Package service shapes the reporting aggregates for the admin API.
package service

import (
	"context"
	"time"

	"leadrouter_backend/internal/reports/repository"
	"leadrouter_backend/internal/reports/transport"

	"golang.org/x/sync/errgroup"
)

// Service provides reporting operations.
type Service struct {
	repo *repository.Repo
}

// New creates a new reports service.
func New(repo *repository.Repo) *Service {
	return &Service{repo: repo}
}

// Dashboard returns the headline counters plus the assignment rate.
func (s *Service) Dashboard(ctx context.Context) (transport.DashboardResponse, error) {
	counts, err := s.repo.Dashboard(ctx)
	if err != nil {
		return transport.DashboardResponse{}, err
	}

	resp := transport.DashboardResponse{
		TotalLeads:       counts.TotalLeads,
		LeadsToday:       counts.LeadsToday,
		PendingLeads:     counts.PendingLeads,
		AssignedLeads:    counts.AssignedLeads,
		FinalizedLeads:   counts.FinalizedLeads,
		OpenInteractions: counts.OpenInteractions,
		ActiveBrokers:    counts.ActiveBrokers,
	}
	if counts.TotalLeads > 0 {
		resp.AssignmentRate = rate(counts.AssignedLeads+counts.FinalizedLeads, counts.TotalLeads)
	}
	return resp, nil
}

// BrokerPerformance returns offer outcome counts and rates per broker.
func (s *Service) BrokerPerformance(ctx context.Context) ([]transport.BrokerPerformanceResponse, error) {
	rows, err := s.repo.BrokerPerformance(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]transport.BrokerPerformanceResponse, 0, len(rows))
	for _, row := range rows {
		resp := transport.BrokerPerformanceResponse{
			BrokerID: row.BrokerID,
			Name:     row.Name,
			Active:   row.Active,
			Offers:   row.Offers,
			Accepted: row.Accepted,
			Declined: row.Declined,
			TimedOut: row.TimedOut,
			Errors:   row.Errors,
		}
		if row.Offers > 0 {
			resp.AcceptRate = rate(row.Accepted, row.Offers)
			resp.TimeoutRate = rate(row.TimedOut, row.Offers)
		}
		out = append(out, resp)
	}
	return out, nil
}

// LeadsByPeriod returns status totals and the daily series for the period.
// The two aggregates are independent, so they run concurrently.
func (s *Service) LeadsByPeriod(ctx context.Context, start, end time.Time) (transport.LeadsByPeriodResponse, error) {
	var (
		statusCounts []repository.StatusCount
		daily        []repository.DailyCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statusCounts, err = s.repo.LeadStatusCounts(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.repo.LeadsPerDay(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.LeadsByPeriodResponse{}, err
	}

	resp := transport.LeadsByPeriodResponse{
		Start:    start.Format(time.RFC3339),
		End:      end.Format(time.RFC3339),
		ByStatus: make(map[string]int, len(statusCounts)),
		PerDay:   make([]transport.DailyCountResponse, 0, len(daily)),
	}
	for _, sc := range statusCounts {
		resp.ByStatus[sc.Status] = sc.Count
		resp.Total += sc.Count
	}
	for _, dc := range daily {
		resp.PerDay = append(resp.PerDay, transport.DailyCountResponse{
			Day:   dc.Day.Format("2006-01-02"),
			Count: dc.Count,
		})
	}
	return resp, nil
}

// Conversion returns offer resolution stats for the period.
func (s *Service) Conversion(ctx context.Context, start, end time.Time) (transport.ConversionResponse, error) {
	stats, err := s.repo.Conversion(ctx, start, end)
	if err != nil {
		return transport.ConversionResponse{}, err
	}

	resp := transport.ConversionResponse{
		Offers:               stats.Offers,
		Accepted:             stats.Accepted,
		Declined:             stats.Declined,
		TimedOut:             stats.TimedOut,
		Errors:               stats.Errors,
		AvgResponseSeconds:   stats.AvgResponseSeconds,
		AcceptedOnFirstOffer: stats.AcceptedWithinFirst,
	}
	if stats.Offers > 0 {
		resp.AcceptRate = rate(stats.Accepted, stats.Offers)
	}
	return resp, nil
}

func rate(part, total int) float64 {
	return float64(part) / float64(total)
}
